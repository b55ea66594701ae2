package gateway

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-gateway/internal/protocol"
)

const sendBufferSize = 256

// Session is the per-connection state: the authenticated identity and the set
// of rooms the connection has joined. It belongs exclusively to its
// connection and is never shared.
type Session struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	UserName string

	conn *websocket.Conn
	send chan []byte

	mu    sync.RWMutex
	rooms map[uuid.UUID]bool

	closeOnce sync.Once
}

// NewSession binds an upgraded connection to an authenticated user. conn may
// be nil in tests; only the pumps touch it.
func NewSession(conn *websocket.Conn, userID uuid.UUID, userName string) *Session {
	return &Session{
		ID:       uuid.New(),
		UserID:   userID,
		UserName: userName,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		rooms:    make(map[uuid.UUID]bool),
	}
}

func (s *Session) Join(chatID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[chatID] = true
}

func (s *Session) Leave(chatID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, chatID)
}

func (s *Session) InRoom(chatID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[chatID]
}

func (s *Session) Rooms() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]uuid.UUID, 0, len(s.rooms))
	for chatID := range s.rooms {
		rooms = append(rooms, chatID)
	}
	return rooms
}

// Enqueue queues a frame for the write pump without blocking. A full buffer
// drops the frame and reports false.
func (s *Session) Enqueue(data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// SendEvent marshals and queues an event for this connection only.
func (s *Session) SendEvent(env *protocol.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		return false
	}
	return s.Enqueue(data)
}

// Outbound exposes the send queue to the write pump and to tests.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}
