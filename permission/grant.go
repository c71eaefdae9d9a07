package permission

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Effect is the outcome a grant asserts for its permission.
type Effect uint8

const (
	Allow Effect = iota + 1
	Deny
)

func (e Effect) String() string {
	switch e {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("effect(%d)", uint8(e))
	}
}

// ParseEffect maps "allow" or "deny" to its Effect.
func ParseEffect(s string) (Effect, error) {
	switch s {
	case "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	default:
		return 0, fmt.Errorf("%w: effect %q", ErrInvalidGrant, s)
	}
}

// Grant is a runtime overlay on role defaults for a user or a group.
// A zero ExpiresAt never expires.
type Grant struct {
	SubjectID  string
	Permission Permission
	Effect     Effect
	ExpiresAt  time.Time
}

// UserSubject returns the grant subject id for a user.
func UserSubject(userID string) string {
	return "user:" + userID
}

// GroupSubject returns the grant subject id for a group.
func GroupSubject(group string) string {
	return "group:" + group
}

// Active reports whether g applies at now.
func (g Grant) Active(now time.Time) bool {
	return g.ExpiresAt.IsZero() || now.Before(g.ExpiresAt)
}

// Validate checks that g names a subject, a known permission and an effect.
func (g Grant) Validate() error {
	if strings.TrimSpace(g.SubjectID) == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidGrant)
	}
	if !g.Permission.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidGrant, g.Permission)
	}
	if g.Effect != Allow && g.Effect != Deny {
		return fmt.Errorf("%w: %s", ErrInvalidGrant, g.Effect)
	}
	return nil
}

// GrantStore persists grants. GrantsFor returns every grant, active or not, whose
// subject is one of subjectIDs, in no particular order.
type GrantStore interface {
	GrantsFor(ctx context.Context, subjectIDs []string) ([]Grant, error)
	Put(ctx context.Context, g Grant) error
	Delete(ctx context.Context, subjectID string, p Permission, e Effect) error
}
