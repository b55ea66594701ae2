package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/domain"
)

// MemoryRegistry keeps everything in process. Room membership is held in a
// dual index (room → users and user → rooms) so removal on disconnect does
// not scan every room. Typing expiry is enforced at read time.
type MemoryRegistry struct {
	mu       sync.RWMutex
	statuses map[uuid.UUID]Status
	typing   map[uuid.UUID]map[uuid.UUID]time.Time // chatID → userID → set time
	rooms    map[uuid.UUID]map[uuid.UUID]bool      // chatID → users
	byUser   map[uuid.UUID]map[uuid.UUID]bool      // userID → rooms

	now func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		statuses: make(map[uuid.UUID]Status),
		typing:   make(map[uuid.UUID]map[uuid.UUID]time.Time),
		rooms:    make(map[uuid.UUID]map[uuid.UUID]bool),
		byUser:   make(map[uuid.UUID]map[uuid.UUID]bool),
		now:      time.Now,
	}
}

func (r *MemoryRegistry) SetStatus(_ context.Context, userID uuid.UUID, status domain.PresenceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[userID] = Status{Status: status, ChangedAt: r.now()}
	return nil
}

func (r *MemoryRegistry) GetStatus(_ context.Context, userID uuid.UUID) (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st, ok := r.statuses[userID]; ok {
		return st, nil
	}
	return Status{Status: domain.StatusOffline}, nil
}

func (r *MemoryRegistry) SetTyping(_ context.Context, chatID, userID uuid.UUID, isTyping bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !isTyping {
		if entries, ok := r.typing[chatID]; ok {
			delete(entries, userID)
			if len(entries) == 0 {
				delete(r.typing, chatID)
			}
		}
		return nil
	}
	if r.typing[chatID] == nil {
		r.typing[chatID] = make(map[uuid.UUID]time.Time)
	}
	r.typing[chatID][userID] = r.now()
	return nil
}

func (r *MemoryRegistry) ListTyping(_ context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.typing[chatID]
	if len(entries) == 0 {
		return nil, nil
	}
	cutoff := r.now().Add(-TypingTTL)
	users := make([]uuid.UUID, 0, len(entries))
	for userID, setAt := range entries {
		if setAt.Before(cutoff) {
			delete(entries, userID)
			continue
		}
		users = append(users, userID)
	}
	if len(entries) == 0 {
		delete(r.typing, chatID)
	}
	return users, nil
}

func (r *MemoryRegistry) AddToRoom(_ context.Context, chatID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[chatID] == nil {
		r.rooms[chatID] = make(map[uuid.UUID]bool)
	}
	r.rooms[chatID][userID] = true
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[uuid.UUID]bool)
	}
	r.byUser[userID][chatID] = true
	return nil
}

func (r *MemoryRegistry) RemoveFromRoom(_ context.Context, chatID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.rooms[chatID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.rooms, chatID)
		}
	}
	if rooms, ok := r.byUser[userID]; ok {
		delete(rooms, chatID)
		if len(rooms) == 0 {
			delete(r.byUser, userID)
		}
	}
	return nil
}

func (r *MemoryRegistry) ListRoomMembers(_ context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[chatID]
	if len(members) == 0 {
		return nil, nil
	}
	users := make([]uuid.UUID, 0, len(members))
	for userID := range members {
		users = append(users, userID)
	}
	return users, nil
}
