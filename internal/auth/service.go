// Package auth validates access tokens presented at the real-time handshake
// and rotates access/refresh pairs. Credential issuance beyond the refresh
// exchange lives elsewhere; this package only signs and verifies.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/store"
)

// Identity is the authenticated principal bound to a connection.
type Identity struct {
	UserID uuid.UUID
	Name   string
}

// TokenPair is an access token (short-lived) plus refresh token (long-lived).
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Validator is the slice of Service the gateway needs; fakes implement it in
// tests.
type Validator interface {
	ValidateAccess(ctx context.Context, token string) (*Identity, error)
}

type Service struct {
	store      store.Store
	revocation RevocationList
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(st store.Store, revocation RevocationList, secret string, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		store:      st,
		revocation: revocation,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        time.Now,
	}
}

type accessClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssuePair signs a fresh access token and persists a new refresh token.
func (s *Service) IssuePair(ctx context.Context, userID uuid.UUID, name string) (*TokenPair, error) {
	accessExpiry := s.now().Add(s.accessTTL)
	claims := accessClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			ID:        uuid.NewString(),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshExpiry := s.now().Add(s.refreshTTL)
	refresh := uuid.NewString()
	if err := s.store.SaveRefreshToken(ctx, &store.RefreshToken{
		UserID:    userID,
		Token:     refresh,
		ExpiresAt: refreshExpiry,
	}); err != nil {
		return nil, &domain.PersistenceError{Op: "save refresh token", Err: err}
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The old refresh
// token is consumed; a failed exchange leaves it intact.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID, refreshToken string) (*TokenPair, error) {
	ok, err := s.store.ValidateRefreshToken(ctx, userID, refreshToken)
	if err != nil {
		refreshExchangesTotal.WithLabelValues("error").Inc()
		return nil, &domain.PersistenceError{Op: "validate refresh token", Err: err}
	}
	if !ok {
		refreshExchangesTotal.WithLabelValues("rejected").Inc()
		return nil, &domain.AuthenticationError{Reason: "invalid refresh token"}
	}

	pair, err := s.IssuePair(ctx, userID, "")
	if err != nil {
		refreshExchangesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	refreshExchangesTotal.WithLabelValues("success").Inc()
	if err := s.store.DeleteRefreshToken(ctx, userID, refreshToken); err != nil {
		s.logger.Warn("failed to delete rotated refresh token", zap.Error(err))
	}
	return pair, nil
}

// ValidateAccess checks revocation, signature, and expiry. Callers treat any
// error as connection-fatal at handshake time.
func (s *Service) ValidateAccess(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, &domain.AuthenticationError{Reason: "missing credential"}
	}

	revoked, err := s.revocation.IsRevoked(ctx, tokenString)
	if err != nil {
		s.logger.Warn("revocation check failed", zap.Error(err))
	} else if revoked {
		return nil, &domain.AuthenticationError{Reason: "credential revoked"}
	}

	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, &domain.AuthenticationError{Reason: "invalid token"}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, &domain.AuthenticationError{Reason: "invalid subject claim"}
	}

	return &Identity{UserID: userID, Name: claims.Name}, nil
}

// RevokeRefreshTokens invalidates every refresh token the user holds.
func (s *Service) RevokeRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.RevokeRefreshTokens(ctx, userID); err != nil {
		return &domain.PersistenceError{Op: "revoke refresh tokens", Err: err}
	}
	return nil
}

// Revoke places an access token on the revocation list for its remaining
// lifetime.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	ttl := s.accessTTL
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err == nil && claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	return s.revocation.Revoke(ctx, tokenString, ttl)
}
