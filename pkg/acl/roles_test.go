package acl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

func TestRoles_MembershipChangesNotifyHooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var changes []acl.Change
	f := newFixture(t, newTree([2]string{"f1", ""}), acl.WithChangeHook(func(_ context.Context, c acl.Change) {
		changes = append(changes, c)
	}))

	require.NoError(t, f.engine.CreateRole(ctx, acl.RoleInfo{ID: "r1", Code: "editors", Active: true}))
	require.NoError(t, f.engine.AddRoleMember(ctx, "u1", "r1"))
	require.NoError(t, f.engine.GrantToRole(ctx, permission.Read, folder, "f1", "r1"))
	changes = nil

	ok, err := f.engine.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.engine.SetRoleMemberBanned(ctx, "u1", "r1", true))
	ok, err = f.engine.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.engine.RemoveRoleMember(ctx, "u1", "r1"))
	require.NoError(t, f.engine.DeleteRole(ctx, "r1"))

	assert.Equal(t, []acl.Change{
		{Subject: acl.User("u1")},
		{Subject: acl.User("u1")},
		{Subject: acl.Role("r1")},
	}, changes)
	assert.Empty(t, f.store.Grants())
}

func TestRoles_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var changes int
	f := newFixture(t, newTree(), acl.WithChangeHook(func(context.Context, acl.Change) { changes++ }))

	err := f.engine.CreateRole(ctx, acl.RoleInfo{})
	assert.ErrorIs(t, err, acl.ErrInvalidArgument)
	assert.ErrorIs(t, err, acl.ErrRoleRequired)

	err = f.engine.AddRoleMember(ctx, "", "r1")
	assert.ErrorIs(t, err, acl.ErrSubjectRequired)

	err = f.engine.AddRoleMember(ctx, "u1", "missing")
	assert.ErrorIs(t, err, acl.ErrNotFound)
	assert.ErrorIs(t, err, acl.ErrRoleNotFound)

	err = f.engine.SetRoleMemberBanned(ctx, "u1", "missing", true)
	assert.ErrorIs(t, err, acl.ErrMemberNotFound)

	err = f.engine.DeleteRole(ctx, "missing")
	assert.ErrorIs(t, err, acl.ErrRoleNotFound)

	assert.Zero(t, changes)
}

// grantsOnly hides the role methods of the wrapped store.
type grantsOnly struct {
	acl.Store
}

func TestRoles_StoreWithoutRoles(t *testing.T) {
	t.Parallel()
	e := acl.New(grantsOnly{acl.NewMemoryStore()}, nil)
	err := e.AddRoleMember(context.Background(), "u1", "r1")
	assert.ErrorIs(t, err, acl.ErrRolesUnsupported)
}
