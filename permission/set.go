package permission

// Set is a bitmask of permissions. The zero value is the empty set.
type Set uint64

// Of returns a Set containing perms. Unknown permissions are ignored.
func Of(perms ...Permission) Set {
	var s Set
	for _, p := range perms {
		s = s.Add(p)
	}
	return s
}

// Has reports whether p is in the set.
func (s Set) Has(p Permission) bool {
	if !p.Valid() {
		return false
	}
	return s&(1<<p) != 0
}

// Add returns s with p included.
func (s Set) Add(p Permission) Set {
	if !p.Valid() {
		return s
	}
	return s | (1 << p)
}

// Remove returns s with p cleared.
func (s Set) Remove(p Permission) Set {
	if !p.Valid() {
		return s
	}
	return s &^ (1 << p)
}

// Permissions lists the members of s in declaration order.
func (s Set) Permissions() []Permission {
	var out []Permission
	for p := Permission(0); p < permissionCount; p++ {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s Set) Raw() uint64 {
	return uint64(s)
}
