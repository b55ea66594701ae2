package tokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-gateway/client/storage"
)

// fakeAPI counts refresh calls and can block to hold an exchange in flight.
type fakeAPI struct {
	mu      sync.Mutex
	calls   int
	pair    *Pair
	err     error
	release chan struct{}
}

func (f *fakeAPI) Refresh(ctx context.Context, userID, refreshToken string) (*Pair, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pair, nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

func seededCoordinator(api AuthAPI) (*Coordinator, *storage.MemoryStorage) {
	store := storage.NewMemoryStorage()
	c := NewCoordinator(store, api)
	store.Set(KeyUserID, "user-1")
	store.Set(KeyRefreshToken, "refresh-1")
	return c, store
}

func TestIsExpiringSoon(t *testing.T) {
	c := NewCoordinator(storage.NewMemoryStorage(), &fakeAPI{})

	tests := []struct {
		name     string
		token    string
		expiring bool
	}{
		{"plenty of validity left", signedToken(t, 10 * time.Minute), false},
		{"inside the safety margin", signedToken(t, 30 * time.Second), true},
		{"already expired", signedToken(t, -time.Minute), true},
		{"empty token", "", true},
		{"unparseable token", "not.a.jwt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsExpiringSoon(tt.token); got != tt.expiring {
				t.Errorf("IsExpiringSoon = %v, want %v", got, tt.expiring)
			}
		})
	}
}

func TestRefreshIfNeededSkipsFreshToken(t *testing.T) {
	api := &fakeAPI{pair: &Pair{AccessToken: "new-access", RefreshToken: "new-refresh"}}
	c, store := seededCoordinator(api)
	store.Set(KeyAccessToken, signedToken(t, 10*time.Minute))

	if c.RefreshIfNeeded(context.Background(), false) {
		t.Error("a fresh token must not trigger a refresh")
	}
	if api.callCount() != 0 {
		t.Errorf("expected no exchange, got %d", api.callCount())
	}
}

func TestRefreshIfNeededRotatesExpiringToken(t *testing.T) {
	api := &fakeAPI{pair: &Pair{AccessToken: "new-access", RefreshToken: "new-refresh"}}
	c, store := seededCoordinator(api)
	store.Set(KeyAccessToken, signedToken(t, 10*time.Second))

	if !c.RefreshIfNeeded(context.Background(), false) {
		t.Fatal("expected an expiring token to be refreshed")
	}
	if access, _ := store.Get(KeyAccessToken); access != "new-access" {
		t.Errorf("access token not stored, got %q", access)
	}
	if refresh, _ := store.Get(KeyRefreshToken); refresh != "new-refresh" {
		t.Errorf("refresh token not stored, got %q", refresh)
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	api := &fakeAPI{
		pair:    &Pair{AccessToken: "new-access", RefreshToken: "new-refresh"},
		release: make(chan struct{}),
	}
	c, _ := seededCoordinator(api)

	done := make(chan bool, 1)
	go func() { done <- c.RefreshIfNeeded(context.Background(), true) }()

	// Wait for the first exchange to be in flight.
	for i := 0; i < 100 && api.callCount() == 0; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if api.callCount() != 1 {
		t.Fatalf("expected the first exchange in flight, calls=%d", api.callCount())
	}

	// A concurrent caller loses the race and returns immediately.
	if c.RefreshIfNeeded(context.Background(), true) {
		t.Error("a second concurrent refresh must return false, not queue")
	}

	close(api.release)
	if !<-done {
		t.Fatal("the winning refresh should report success")
	}
	if api.callCount() != 1 {
		t.Errorf("expected exactly one exchange, got %d", api.callCount())
	}
}

func TestRefreshFailureInvalidatesSession(t *testing.T) {
	api := &fakeAPI{err: errors.New("rejected")}
	c, store := seededCoordinator(api)
	store.Set(KeyAccessToken, signedToken(t, -time.Minute))

	loggedOut := false
	c.OnLoggedOut(func() { loggedOut = true })

	if c.RefreshIfNeeded(context.Background(), true) {
		t.Fatal("a failed refresh must not report success")
	}
	if !loggedOut {
		t.Error("a failed refresh must fire the logged-out callback")
	}
	if access, _ := store.Get(KeyAccessToken); access != "" {
		t.Error("a failed refresh must clear the stale credentials")
	}
}

func TestCrossTabPropagation(t *testing.T) {
	shared := storage.NewMemoryStorage()
	api := &fakeAPI{}

	tabA := NewCoordinator(shared, api)
	tabB := NewCoordinator(shared, api)

	var mu sync.Mutex
	var adopted string
	loggedOut := false
	tabB.OnAdopted(func(token string) {
		mu.Lock()
		adopted = token
		mu.Unlock()
	})
	tabB.OnLoggedOut(func() {
		mu.Lock()
		loggedOut = true
		mu.Unlock()
	})
	tabB.Watch()
	defer tabB.Close()

	// Tab A logs in; tab B adopts the new token.
	tabA.SetSession("user-1", &Pair{AccessToken: "access-1", RefreshToken: "refresh-1"})
	mu.Lock()
	if adopted != "access-1" {
		t.Errorf("expected tab B to adopt access-1, got %q", adopted)
	}
	mu.Unlock()
	if tabB.AccessToken() != "access-1" {
		t.Error("tab B should read the shared token")
	}

	// Tab A logs out; tab B is forced out too.
	tabA.ClearSession()
	mu.Lock()
	if !loggedOut {
		t.Error("expected tab B to observe the logout")
	}
	mu.Unlock()
}
