package gateway

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub tracks live sessions and their room subscriptions for this process.
// Broadcasts are fire-and-forget: a session with a full send buffer misses
// the frame rather than stalling the room.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]bool
	rooms    map[uuid.UUID]map[*Session]bool
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]bool),
		rooms:    make(map[uuid.UUID]map[*Session]bool),
		logger:   logger,
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = true
}

// Unregister drops the session and every room subscription it held.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
	for chatID, members := range h.rooms {
		if members[s] {
			delete(members, s)
			if len(members) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
}

func (h *Hub) JoinRoom(chatID uuid.UUID, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[chatID] == nil {
		h.rooms[chatID] = make(map[*Session]bool)
	}
	h.rooms[chatID][s] = true
}

func (h *Hub) LeaveRoom(chatID uuid.UUID, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[chatID]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// BroadcastRoom fans a frame out to every session in the room. except, when
// non-nil, is skipped (sender exclusion).
func (h *Hub) BroadcastRoom(chatID uuid.UUID, data []byte, except *Session) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[chatID] {
		if s == except {
			continue
		}
		if !s.Enqueue(data) {
			h.logger.Warn("dropped frame for slow session",
				zap.String("userId", s.UserID.String()),
				zap.String("chatId", chatID.String()))
		}
	}
}

// BroadcastAll fans a frame out process-wide (status changes are not
// chat-scoped).
func (h *Hub) BroadcastAll(data []byte, except *Session) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		if s == except {
			continue
		}
		if !s.Enqueue(data) {
			h.logger.Warn("dropped frame for slow session",
				zap.String("userId", s.UserID.String()))
		}
	}
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
