package domain

import "fmt"

// Error kinds carried in scoped error events. Handshake authentication
// failures terminate the connection; everything else is converted at the
// handler boundary into an error event for the originating connection only.
const (
	ErrKindAuthentication = "authentication"
	ErrKindAuthorization  = "authorization"
	ErrKindPersistence    = "persistence"
	ErrKindValidation     = "validation"
)

// AuthenticationError means the credential is missing, revoked, or failed
// signature/expiry validation.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// AuthorizationError means the user is not a participant of the target chat.
type AuthorizationError struct {
	ChatID string
	UserID string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %s is not a participant of chat %s", e.UserID, e.ChatID)
}

// PersistenceError wraps a downstream storage failure. It is surfaced to the
// sender, never broadcast.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError means the request payload itself is malformed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Reason }
