package permission

import "fmt"

// Role is a principal's role. Roles are a closed set; there is no runtime registration.
type Role uint8

const (
	RoleUser Role = iota
	RoleAdmin

	roleCount
)

var roleNames = [...]string{
	RoleUser:  "user",
	RoleAdmin: "admin",
}

// roleDefaults is total over Role. Adding a role without a row fails to compile.
var roleDefaults = [...]Set{
	RoleUser: Of(MediaRead, MediaCreate),
	RoleAdmin: Of(
		MediaRead,
		MediaCreate,
		MediaUpdate,
		MediaDelete,
		RequestsApprove,
		UsersManage,
		SessionsManage,
		AdminOverride,
	),
}

var (
	_ = [1]struct{}{}[len(roleNames)-int(roleCount)]
	_ = [1]struct{}{}[len(roleDefaults)-int(roleCount)]
)

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	return r < roleCount
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return roleNames[r]
}

// Defaults returns the static permission set of r. Unknown roles get the empty set.
func (r Role) Defaults() Set {
	if !r.Valid() {
		return 0
	}
	return roleDefaults[r]
}

// ParseRole maps a role name to its Role.
func ParseRole(name string) (Role, error) {
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// Roles returns every role in declaration order.
func Roles() []Role {
	out := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		out = append(out, r)
	}
	return out
}
