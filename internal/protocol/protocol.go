// Package protocol defines the JSON event envelope exchanged over the
// real-time connection. Both the gateway and the client SDK import it so the
// two sides can never drift apart on wire shape.
package protocol

import "time"

type EventType string

// Client → server events.
const (
	EventJoinChat     EventType = "join-chat"
	EventSendMessage  EventType = "send-message"
	EventTyping       EventType = "typing"
	EventReadMessage  EventType = "read-message"
	EventChangeStatus EventType = "change-status"
	EventPing         EventType = "ping"
)

// Server → client events.
const (
	EventNewMessage     EventType = "new-message"
	EventMessageStatus  EventType = "message-status-updated"
	EventUserTyping     EventType = "user-typing"
	EventUserStatus     EventType = "user-status-changed"
	EventMessagesRead   EventType = "messages-read"
	EventUserJoinedChat EventType = "user-joined-chat"
	EventMessageEdited  EventType = "message-edited"
	EventMessageDeleted EventType = "message-deleted"
	EventError          EventType = "error"
	EventPong           EventType = "pong"
)

// Delivery statuses carried by EventMessageStatus.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Attachment describes a file reference attached to a message.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// MessagePayload is the durable message plus author metadata. TempID echoes
// the client-supplied temporary id so the sender can reconcile its optimistic
// entry in place.
type MessagePayload struct {
	MessageID string       `json:"messageId"`
	ChatID    string       `json:"chatId"`
	UserID    string       `json:"userId"`
	UserName  string       `json:"userName,omitempty"`
	Content   string       `json:"content"`
	ReplyToID string       `json:"replyToId,omitempty"`
	Files     []Attachment `json:"files,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	TempID    string       `json:"tempId,omitempty"`
}

// ErrorPayload is the scoped error event sent only to the originating
// connection.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// Envelope is the single wire frame for every event type. Fields irrelevant
// to a given type are omitted from the JSON.
type Envelope struct {
	Type      EventType       `json:"type"`
	TempID    string          `json:"tempId,omitempty"`
	ChatID    string          `json:"chatId,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	UserName  string          `json:"userName,omitempty"`
	Content   string          `json:"content,omitempty"`
	ReplyToID string          `json:"replyToId,omitempty"`
	Files     []Attachment    `json:"files,omitempty"`
	Status    string          `json:"status,omitempty"`
	IsTyping  bool            `json:"isTyping,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
	LastSeen  *time.Time      `json:"lastSeen,omitempty"`
	Message   *MessagePayload `json:"message,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
	Payload   map[string]any  `json:"payload,omitempty"`
}
