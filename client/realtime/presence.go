package realtime

import (
	"context"
	"sync"
	"time"
)

// presenceRefreshInterval is how often an open chat re-requests the status of
// its participants, covering broadcasts missed before subscribing.
const presenceRefreshInterval = 30 * time.Second

// UserStatus is one cached presence record.
type UserStatus struct {
	Status   string
	LastSeen *time.Time
	SeenAt   time.Time
}

// RequestFunc asks the gateway for a user's current status; the answer comes
// back through the normal status-changed event flow.
type RequestFunc func(ctx context.Context, userID string)

// PresenceCache folds global status broadcasts into a per-user lookup and
// keeps open chats fresh with periodic explicit requests.
type PresenceCache struct {
	mu       sync.Mutex
	statuses map[string]UserStatus
	request  RequestFunc
	now      func() time.Time
}

func NewPresenceCache(request RequestFunc) *PresenceCache {
	return &PresenceCache{
		statuses: make(map[string]UserStatus),
		request:  request,
		now:      time.Now,
	}
}

// Apply folds one status-changed broadcast into the cache.
func (p *PresenceCache) Apply(userID, status string, lastSeen *time.Time) {
	p.mu.Lock()
	p.statuses[userID] = UserStatus{Status: status, LastSeen: lastSeen, SeenAt: p.now()}
	p.mu.Unlock()
}

// Get returns the cached record. Unknown users read as offline.
func (p *PresenceCache) Get(userID string) UserStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.statuses[userID]; ok {
		return s
	}
	return UserStatus{Status: "offline"}
}

// WatchChat requests the given users' statuses immediately and again every
// refresh interval until ctx is cancelled. Call when a chat opens, cancel
// when it closes.
func (p *PresenceCache) WatchChat(ctx context.Context, userIDs []string) {
	refresh := func() {
		for _, id := range userIDs {
			p.request(ctx, id)
		}
	}
	refresh()

	ticker := time.NewTicker(presenceRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
