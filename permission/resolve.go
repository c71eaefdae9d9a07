package permission

import (
	"context"
	"time"
)

// Decision is the outcome of resolving one permission for one subject.
type Decision uint8

const (
	// Denied means nothing granted the permission.
	Denied Decision = iota
	// DeniedExplicit means a Deny grant matched. No override can lift it.
	DeniedExplicit
	// AllowedOwner means the subject owns the resource and the permission is owner scoped.
	AllowedOwner
	// AllowedGrant means an Allow grant matched.
	AllowedGrant
	// AllowedRole means the subject's role carries the permission by default.
	AllowedRole
	// AllowedOverride means an administrative override lifted the check.
	AllowedOverride
)

// Allowed reports whether d permits the action.
func (d Decision) Allowed() bool {
	return d >= AllowedOwner
}

func (d Decision) String() string {
	switch d {
	case DeniedExplicit:
		return "denied_explicit"
	case AllowedOwner:
		return "allowed_owner"
	case AllowedGrant:
		return "allowed_grant"
	case AllowedRole:
		return "allowed_role"
	case AllowedOverride:
		return "allowed_override"
	default:
		return "denied"
	}
}

// Subject is the principal a permission is resolved for.
type Subject struct {
	UserID string
	Role   Role
	Groups []string
}

// SubjectIDs returns the grant subject ids that apply to s: the user and each group.
func (s Subject) SubjectIDs() []string {
	ids := make([]string, 0, len(s.Groups)+1)
	ids = append(ids, UserSubject(s.UserID))
	for _, g := range s.Groups {
		ids = append(ids, GroupSubject(g))
	}
	return ids
}

// Resource identifies the target of an action.
type Resource struct {
	Kind string
	ID   string
}

// OwnershipResolver reports who owns a resource. It returns ErrResourceNotFound for
// resources that do not exist.
type OwnershipResolver interface {
	OwnerOf(ctx context.Context, r Resource) (string, error)
}

// OwnershipFunc adapts a function to OwnershipResolver.
type OwnershipFunc func(ctx context.Context, r Resource) (string, error)

// OwnerOf implements OwnershipResolver.
func (f OwnershipFunc) OwnerOf(ctx context.Context, r Resource) (string, error) {
	return f(ctx, r)
}

// Input is everything Resolve needs. Grants may contain entries for other subjects,
// expired entries and duplicates; Resolve filters them.
type Input struct {
	Subject    Subject
	Permission Permission
	Grants     []Grant
	// Owner is true when the target resource exists and is owned by Subject.
	Owner bool
	Now   time.Time
}

// Resolve applies deny, ownership, allow grants and role defaults in that order.
// It is pure and never blocks.
func Resolve(in Input) Decision {
	if !in.Permission.Valid() {
		return Denied
	}

	denied, allowed := matchGrants(in)
	if denied {
		return DeniedExplicit
	}
	if in.Owner && in.Permission.OwnerScoped() {
		return AllowedOwner
	}
	if allowed {
		return AllowedGrant
	}
	if in.Subject.Role.Defaults().Has(in.Permission) {
		return AllowedRole
	}
	return Denied
}

// ResolveOverride is Resolve for a caller already cleared to override: only an
// explicit deny still applies.
func ResolveOverride(in Input) Decision {
	if !in.Permission.Valid() {
		return Denied
	}
	if denied, _ := matchGrants(in); denied {
		return DeniedExplicit
	}
	return AllowedOverride
}

func matchGrants(in Input) (denied, allowed bool) {
	ids := in.Subject.SubjectIDs()
	for _, g := range in.Grants {
		if g.Permission != in.Permission || !g.Active(in.Now) || !containsString(ids, g.SubjectID) {
			continue
		}
		switch g.Effect {
		case Deny:
			denied = true
		case Allow:
			allowed = true
		}
	}
	return denied, allowed
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
