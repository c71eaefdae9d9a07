package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session exists for a token hash.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned by Create when the token hash was already used.
	ErrConflict = errors.New("session token hash already exists")
	// ErrUnavailable wraps backend failures (network, timeouts, driver errors).
	ErrUnavailable = errors.New("session store unavailable")
)

// Repository persists sessions. Implementations serialize conflicting writes at the
// store boundary: Create is create-if-absent, and Revoke/RevokeAllForUser are single
// atomic operations so a concurrent Get observes either the old or the new state.
type Repository interface {
	// Create inserts s, failing with ErrConflict when s.TokenHash was seen before.
	// The Postgres repository remembers every hash, purged ones included. The
	// Redis repository remembers a hash until the session's absolute deadline, or
	// for TombstoneTTL once revoked; past that a repeat needs a collision of
	// tokens that embed a fresh uuid v7 session id.
	Create(ctx context.Context, s *Session) error
	// Get returns the session for tokenHash, including revoked ones.
	Get(ctx context.Context, tokenHash [32]byte) (*Session, error)
	// Touch records activity and moves ExpiresAt forward to expiresAt. It never
	// shortens the deadline and is a no-op for revoked or expired sessions.
	Touch(ctx context.Context, tokenHash [32]byte, lastActive, expiresAt time.Time) error
	// SetCSRF replaces the CSRF binding of a live session.
	SetCSRF(ctx context.Context, tokenHash, csrfHash [32]byte) error
	// Revoke marks one session revoked. Unknown or already revoked hashes succeed.
	Revoke(ctx context.Context, tokenHash [32]byte) error
	// RevokeAllForUser revokes every live session of userID and returns their hashes.
	RevokeAllForUser(ctx context.Context, userID string) ([][32]byte, error)
	// ListForUser returns the user's live sessions.
	ListForUser(ctx context.Context, userID string, now time.Time) ([]*Session, error)
	// PurgeExpired physically removes sessions whose absolute deadline passed before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
