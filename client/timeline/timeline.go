// Package timeline keeps the locally rendered message list consistent with
// the realtime stream: optimistic entries reconcile in place against their
// delivery acknowledgments, remote messages merge idempotently, and the list
// stays sorted by the durable timestamp rather than arrival order.
package timeline

import (
	"sort"
	"sync"
	"time"

	"chat-gateway/internal/protocol"
)

// Entry is one rendered message. An optimistic entry is keyed by its
// temporary id until the delivery envelope confirms it with a durable id.
type Entry struct {
	MessageID string
	TempID    string
	ChatID    string
	UserID    string
	UserName  string
	Content   string
	Files     []protocol.Attachment
	ReplyToID string
	CreatedAt time.Time
	Confirmed bool
	Failed    bool
}

// key is the durable id once confirmed, the temporary id before.
func (e *Entry) key() string {
	if e.MessageID != "" {
		return e.MessageID
	}
	return e.TempID
}

// Timeline is the reconciler for one chat's message list.
type Timeline struct {
	mu      sync.Mutex
	entries []*Entry
	byKey   map[string]*Entry
	byTemp  map[string]*Entry

	// atBottom tracks whether the user is pinned to the newest message.
	// Appends only auto-scroll while pinned.
	atBottom bool
	now      func() time.Time
}

func New() *Timeline {
	return &Timeline{
		byKey:    make(map[string]*Entry),
		byTemp:   make(map[string]*Entry),
		atBottom: true,
		now:      time.Now,
	}
}

// AddOptimistic appends a locally authored entry before the server has
// acknowledged it.
func (t *Timeline) AddOptimistic(tempID, chatID, userID, userName, content string) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := &Entry{
		TempID:    tempID,
		ChatID:    chatID,
		UserID:    userID,
		UserName:  userName,
		Content:   content,
		CreatedAt: t.now(),
	}
	t.entries = append(t.entries, e)
	t.byKey[tempID] = e
	t.byTemp[tempID] = e
	return e
}

// ApplyMessage merges a delivery envelope. A payload whose temporary id
// matches an optimistic entry replaces it in place; otherwise the message is
// appended unless the durable id is already present. Returns true when the
// visible list changed.
func (t *Timeline) ApplyMessage(msg *protocol.MessagePayload) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.TempID != "" {
		if e, ok := t.byTemp[msg.TempID]; ok {
			t.confirm(e, msg.MessageID, msg.CreatedAt)
			e.Content = msg.Content
			e.Files = msg.Files
			t.resort()
			return true
		}
	}
	if _, ok := t.byKey[msg.MessageID]; ok {
		return false
	}

	e := &Entry{
		MessageID: msg.MessageID,
		ChatID:    msg.ChatID,
		UserID:    msg.UserID,
		UserName:  msg.UserName,
		Content:   msg.Content,
		Files:     msg.Files,
		ReplyToID: msg.ReplyToID,
		CreatedAt: msg.CreatedAt,
		Confirmed: true,
	}
	t.entries = append(t.entries, e)
	t.byKey[msg.MessageID] = e
	t.resort()
	return true
}

// ApplyStatus handles a delivery acknowledgment or failure addressed to this
// client's own submission.
func (t *Timeline) ApplyStatus(env *protocol.Envelope) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byTemp[env.TempID]
	if !ok {
		return
	}
	if env.Status == protocol.DeliveryFailed {
		e.Failed = true
		return
	}
	t.confirm(e, env.MessageID, env.Timestamp)
	t.resort()
}

// ApplyEdit rewrites a confirmed entry's content.
func (t *Timeline) ApplyEdit(messageID, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byKey[messageID]; ok {
		e.Content = content
	}
}

// ApplyDelete removes an entry by durable id.
func (t *Timeline) ApplyDelete(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byKey[messageID]
	if !ok {
		return
	}
	delete(t.byKey, messageID)
	if e.TempID != "" {
		delete(t.byTemp, e.TempID)
	}
	for i, cur := range t.entries {
		if cur == e {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			break
		}
	}
}

// Entries returns the rendered list, oldest first.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}

// SetAtBottom records whether the user is scrolled to the newest message.
func (t *Timeline) SetAtBottom(atBottom bool) {
	t.mu.Lock()
	t.atBottom = atBottom
	t.mu.Unlock()
}

// ShouldAutoScroll reports whether a new entry should scroll into view.
func (t *Timeline) ShouldAutoScroll() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.atBottom
}

// confirm rekeys an optimistic entry under its durable id. The entry keeps
// its position in the slice; resort happens afterwards using the durable
// timestamp.
func (t *Timeline) confirm(e *Entry, messageID string, createdAt time.Time) {
	if e.TempID != "" {
		delete(t.byKey, e.TempID)
	}
	e.MessageID = messageID
	e.Confirmed = true
	e.Failed = false
	if !createdAt.IsZero() {
		e.CreatedAt = createdAt
	}
	t.byKey[e.key()] = e
}

func (t *Timeline) resort() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].CreatedAt.Before(t.entries[j].CreatedAt)
	})
}
