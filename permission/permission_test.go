package permission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionNamesAreTotalAndUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range All() {
		name := p.String()
		require.NotEmpty(t, name, "permission %d has no name", uint8(p))
		require.False(t, seen[name], "duplicate permission name %q", name)
		seen[name] = true

		parsed, err := ParsePermission(name)
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	assert.Len(t, seen, int(permissionCount))

	_, err := ParsePermission("media:nuke")
	assert.ErrorIs(t, err, ErrUnknownPermission)
}

func TestRoleTableIsTotal(t *testing.T) {
	for _, r := range Roles() {
		require.NotEmpty(t, r.String())
		assert.NotZero(t, r.Defaults(), "role %s has no default permissions", r)

		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	assert.Zero(t, roleCount.Defaults())
	_, err := ParseRole("superuser")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestOnlyAdminCanOverride(t *testing.T) {
	assert.True(t, RoleAdmin.Defaults().Has(AdminOverride))
	assert.False(t, RoleUser.Defaults().Has(AdminOverride))
}

func TestSet(t *testing.T) {
	s := Of(MediaRead, MediaDelete)
	assert.True(t, s.Has(MediaRead))
	assert.False(t, s.Has(MediaUpdate))
	assert.Equal(t, []Permission{MediaRead, MediaDelete}, s.Permissions())

	s = s.Remove(MediaRead).Add(UsersManage)
	assert.Equal(t, []Permission{MediaDelete, UsersManage}, s.Permissions())

	assert.Equal(t, s, s.Add(permissionCount))
	assert.False(t, s.Has(Permission(63)))
}

func TestGrantValidate(t *testing.T) {
	assert.NoError(t, Grant{SubjectID: "user:u1", Permission: MediaRead, Effect: Allow}.Validate())
	assert.ErrorIs(t, Grant{Permission: MediaRead, Effect: Allow}.Validate(), ErrInvalidGrant)
	assert.ErrorIs(t, Grant{SubjectID: "user:u1", Permission: permissionCount, Effect: Allow}.Validate(), ErrInvalidGrant)
	assert.ErrorIs(t, Grant{SubjectID: "user:u1", Permission: MediaRead}.Validate(), ErrInvalidGrant)

	e, err := ParseEffect("deny")
	require.NoError(t, err)
	assert.Equal(t, Deny, e)
	_, err = ParseEffect("maybe")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestMemoryGrantStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGrantStore()

	require.NoError(t, store.Put(ctx, Grant{SubjectID: UserSubject("u1"), Permission: MediaDelete, Effect: Deny}))
	require.NoError(t, store.Put(ctx, Grant{SubjectID: GroupSubject("ops"), Permission: UsersManage, Effect: Allow}))
	require.NoError(t, store.Put(ctx, Grant{SubjectID: UserSubject("u2"), Permission: MediaRead, Effect: Allow}))
	assert.ErrorIs(t, store.Put(ctx, Grant{Permission: MediaRead, Effect: Allow}), ErrInvalidGrant)

	expiry := now.Add(time.Hour)
	require.NoError(t, store.Put(ctx, Grant{SubjectID: UserSubject("u1"), Permission: MediaDelete, Effect: Deny, ExpiresAt: expiry}))

	s := Subject{UserID: "u1", Groups: []string{"ops"}}
	grants, err := store.GrantsFor(ctx, s.SubjectIDs())
	require.NoError(t, err)
	require.Len(t, grants, 2)

	require.NoError(t, store.Delete(ctx, UserSubject("u1"), MediaDelete, Deny))
	require.NoError(t, store.Delete(ctx, UserSubject("u1"), MediaDelete, Deny))

	grants, err = store.GrantsFor(ctx, s.SubjectIDs())
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, UsersManage, grants[0].Permission)
}
