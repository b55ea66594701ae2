package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/store"
)

// tokenStore implements only the refresh-token slice of store.Store that the
// auth service touches.
type tokenStore struct {
	store.Store
	tokens  map[string]store.RefreshToken
	saveErr error
}

func newTokenStore() *tokenStore {
	return &tokenStore{tokens: make(map[string]store.RefreshToken)}
}

func (s *tokenStore) SaveRefreshToken(ctx context.Context, token *store.RefreshToken) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tokens[token.Token] = *token
	return nil
}

func (s *tokenStore) ValidateRefreshToken(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	t, ok := s.tokens[token]
	if !ok || t.UserID != userID {
		return false, nil
	}
	return t.ExpiresAt.After(time.Now()), nil
}

func (s *tokenStore) DeleteRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	delete(s.tokens, token)
	return nil
}

func (s *tokenStore) RevokeRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	for token, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, token)
		}
	}
	return nil
}

func newTestService(st store.Store) *Service {
	return NewService(st, NewMemoryRevocationList(), "test-secret", 15*time.Minute, 14*24*time.Hour, zap.NewNop())
}

func TestIssueAndValidate(t *testing.T) {
	st := newTokenStore()
	svc := newTestService(st)
	userID := uuid.New()

	pair, err := svc.IssuePair(context.Background(), userID, "alice")
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens issued")
	}
	if !pair.AccessExpiresAt.Before(pair.RefreshExpiresAt) {
		t.Error("access token must expire before the refresh token")
	}

	identity, err := svc.ValidateAccess(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess returned error: %v", err)
	}
	if identity.UserID != userID || identity.Name != "alice" {
		t.Errorf("unexpected identity: %+v", identity)
	}
}

func TestValidateAccessRejections(t *testing.T) {
	st := newTokenStore()
	svc := newTestService(st)
	other := newTestService(newTokenStore())

	pair, err := other.IssuePair(context.Background(), uuid.New(), "mallory")
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}
	// Same secret, different instance: still valid. Force a bad signature by
	// corrupting the token instead.
	corrupted := pair.AccessToken[:len(pair.AccessToken)-4] + "XXXX"

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage token", "not.a.jwt"},
		{"corrupted signature", corrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccess(context.Background(), tt.token)
			var authErr *domain.AuthenticationError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected authentication error, got %v", err)
			}
		})
	}
}

func TestValidateAccessExpired(t *testing.T) {
	st := newTokenStore()
	svc := newTestService(st)
	userID := uuid.New()

	issued := time.Now()
	svc.now = func() time.Time { return issued }
	pair, err := svc.IssuePair(context.Background(), userID, "alice")
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(16 * time.Minute) }
	if _, err := svc.ValidateAccess(context.Background(), pair.AccessToken); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	st := newTokenStore()
	svc := newTestService(st)
	userID := uuid.New()

	pair, err := svc.IssuePair(context.Background(), userID, "alice")
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), userID, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Error("refresh must rotate the refresh token")
	}

	// The consumed token is gone; replaying it fails.
	if _, err := svc.Refresh(context.Background(), userID, pair.RefreshToken); err == nil {
		t.Fatal("expected replay of a consumed refresh token to fail")
	}

	// The rotated token works.
	if _, err := svc.Refresh(context.Background(), userID, rotated.RefreshToken); err != nil {
		t.Fatalf("rotated token should be valid: %v", err)
	}
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	st := newTokenStore()
	svc := newTestService(st)

	_, err := svc.Refresh(context.Background(), uuid.New(), "never-issued")
	var authErr *domain.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestRefreshFailureLeavesOldTokenIntact(t *testing.T) {
	st := newTokenStore()
	svc := newTestService(st)
	userID := uuid.New()

	pair, err := svc.IssuePair(context.Background(), userID, "alice")
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}

	// The exchange fails at the save step; the old token must survive.
	st.saveErr = errors.New("db down")
	if _, err := svc.Refresh(context.Background(), userID, pair.RefreshToken); err == nil {
		t.Fatal("expected refresh failure")
	}
	st.saveErr = nil

	if _, err := svc.Refresh(context.Background(), userID, pair.RefreshToken); err != nil {
		t.Fatalf("old refresh token should remain usable after a failed exchange: %v", err)
	}
}

func TestRevokeBlocksAccessToken(t *testing.T) {
	st := newTokenStore()
	svc := newTestService(st)
	userID := uuid.New()

	pair, err := svc.IssuePair(context.Background(), userID, "alice")
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}
	if err := svc.Revoke(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	_, err = svc.ValidateAccess(context.Background(), pair.AccessToken)
	var authErr *domain.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}
