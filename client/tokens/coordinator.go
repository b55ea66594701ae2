// Package tokens owns the client's credential pair: a short-lived access
// token and a long-lived refresh token. At most one refresh exchange is in
// flight per process, and credential changes made by one tab propagate to
// sibling tabs through storage change notifications.
package tokens

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-gateway/client/storage"
)

// Storage keys shared by every tab on the origin.
const (
	KeyAccessToken  = "auth.accessToken"
	KeyRefreshToken = "auth.refreshToken"
	KeyUserID       = "auth.userId"
)

// DefaultExpiryMargin is the safety window before expiry within which the
// access token counts as expiring soon.
const DefaultExpiryMargin = 60 * time.Second

type Coordinator struct {
	store  storage.Storage
	api    AuthAPI
	margin time.Duration
	now    func() time.Time

	// Guards the single-flight refresh. TryLock, never Lock: a caller that
	// loses the race returns immediately instead of queueing.
	refreshing atomic.Bool

	mu          sync.Mutex
	onLoggedOut func()
	onAdopted   func(accessToken string)
	unsubscribe func()
}

func NewCoordinator(store storage.Storage, api AuthAPI) *Coordinator {
	return &Coordinator{
		store:  store,
		api:    api,
		margin: DefaultExpiryMargin,
		now:    time.Now,
	}
}

// OnLoggedOut registers the session-invalidation callback: fired when a
// refresh fails or when another tab removes the credentials.
func (c *Coordinator) OnLoggedOut(fn func()) {
	c.mu.Lock()
	c.onLoggedOut = fn
	c.mu.Unlock()
}

// OnAdopted registers the callback fired when another tab stores a new access
// token while this tab held none or a different one.
func (c *Coordinator) OnAdopted(fn func(accessToken string)) {
	c.mu.Lock()
	c.onAdopted = fn
	c.mu.Unlock()
}

// Watch subscribes to storage changes from sibling tabs. Call Close to stop.
func (c *Coordinator) Watch() {
	unsub := c.store.Subscribe(func(ch storage.Change) {
		if ch.Key != KeyAccessToken {
			return
		}
		switch {
		case ch.NewValue == "" && ch.OldValue != "":
			// Another tab logged out while this one still held a session.
			c.fireLoggedOut()
		case ch.NewValue != "" && ch.NewValue != ch.OldValue:
			c.fireAdopted(ch.NewValue)
		}
	})
	c.mu.Lock()
	c.unsubscribe = unsub
	c.mu.Unlock()
}

func (c *Coordinator) Close() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// SetSession stores a fresh credential pair for the given user.
func (c *Coordinator) SetSession(userID string, pair *Pair) {
	c.store.Set(KeyUserID, userID)
	c.store.Set(KeyRefreshToken, pair.RefreshToken)
	c.store.Set(KeyAccessToken, pair.AccessToken)
}

// ClearSession removes the stored credentials. Sibling tabs observe the
// removal and log out too.
func (c *Coordinator) ClearSession() {
	c.store.Delete(KeyAccessToken)
	c.store.Delete(KeyRefreshToken)
	c.store.Delete(KeyUserID)
}

// AccessToken returns the current access token, which may be one a sibling
// tab refreshed.
func (c *Coordinator) AccessToken() string {
	v, _ := c.store.Get(KeyAccessToken)
	return v
}

// IsExpiringSoon reports whether the token's remaining validity is below the
// safety margin. Unparseable tokens count as expiring.
func (c *Coordinator) IsExpiringSoon(token string) bool {
	if token == "" {
		return true
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Sub(c.now()) < c.margin
}

// RefreshIfNeeded performs the refresh exchange when forced or when the
// access token is expiring soon. It returns true only when a new pair was
// stored. If another refresh is already in flight it returns false
// immediately without queueing. On exchange failure the stored credentials
// are cleared and the logged-out callback fires.
func (c *Coordinator) RefreshIfNeeded(ctx context.Context, force bool) bool {
	if !c.refreshing.CompareAndSwap(false, true) {
		return false
	}
	defer c.refreshing.Store(false)

	access := c.AccessToken()
	if !force && !c.IsExpiringSoon(access) {
		return false
	}

	userID, _ := c.store.Get(KeyUserID)
	refresh, _ := c.store.Get(KeyRefreshToken)
	if userID == "" || refresh == "" {
		c.invalidate()
		return false
	}

	pair, err := c.api.Refresh(ctx, userID, refresh)
	if err != nil {
		c.invalidate()
		return false
	}

	// Both tokens replace together; a failed exchange above left the old
	// pair untouched in storage.
	c.store.Set(KeyRefreshToken, pair.RefreshToken)
	c.store.Set(KeyAccessToken, pair.AccessToken)
	return true
}

func (c *Coordinator) invalidate() {
	c.ClearSession()
	c.fireLoggedOut()
}

func (c *Coordinator) fireLoggedOut() {
	c.mu.Lock()
	fn := c.onLoggedOut
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Coordinator) fireAdopted(token string) {
	c.mu.Lock()
	fn := c.onAdopted
	c.mu.Unlock()
	if fn != nil {
		fn(token)
	}
}
