package permission

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPermission is returned when a permission name is not part of the closed set.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrUnknownRole is returned when a role name is not part of the closed set.
	ErrUnknownRole = errors.New("unknown role")
	// ErrInvalidGrant is returned by grant stores for malformed grants.
	ErrInvalidGrant = errors.New("invalid permission grant")
	// ErrStoreUnavailable wraps grant store backend failures.
	ErrStoreUnavailable = errors.New("permission grant store unavailable")
	// ErrResourceNotFound is returned by an OwnershipResolver for unknown resources.
	ErrResourceNotFound = errors.New("resource not found")
)

// Permission is one action in the closed permission set.
type Permission uint8

const (
	MediaRead Permission = iota
	MediaCreate
	MediaUpdate
	MediaDelete
	RequestsApprove
	UsersManage
	SessionsManage
	AdminOverride

	permissionCount
)

// Set can hold at most 64 permissions.
var _ = [1]struct{}{}[permissionCount/65]

var permissionNames = [...]string{
	MediaRead:       "media:read",
	MediaCreate:     "media:create",
	MediaUpdate:     "media:update",
	MediaDelete:     "media:delete",
	RequestsApprove: "requests:approve",
	UsersManage:     "users:manage",
	SessionsManage:  "sessions:manage",
	AdminOverride:   "admin:override",
}

// Every permission must have a name.
var _ = [1]struct{}{}[len(permissionNames)-int(permissionCount)]

// ownerScoped permissions are granted to the owner of the target resource.
var ownerScoped = Of(MediaRead, MediaUpdate, MediaDelete)

// Valid reports whether p belongs to the closed permission set.
func (p Permission) Valid() bool {
	return p < permissionCount
}

func (p Permission) String() string {
	if !p.Valid() {
		return fmt.Sprintf("permission(%d)", uint8(p))
	}
	return permissionNames[p]
}

// OwnerScoped reports whether owning a resource is sufficient for p on that resource.
func (p Permission) OwnerScoped() bool {
	return ownerScoped.Has(p)
}

// ParsePermission maps a "resource:action" name to its Permission.
func ParsePermission(name string) (Permission, error) {
	for i, n := range permissionNames {
		if n == name {
			return Permission(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPermission, name)
}

// All returns every permission in declaration order.
func All() []Permission {
	out := make([]Permission, 0, permissionCount)
	for p := Permission(0); p < permissionCount; p++ {
		out = append(out, p)
	}
	return out
}
