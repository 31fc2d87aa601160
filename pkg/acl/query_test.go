package acl_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

func TestHasPermission_Roles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, folderTree())

	require.NoError(t, f.store.CreateRole(ctx, acl.RoleInfo{ID: "r1", Code: "viewers", Active: true}))
	require.NoError(t, f.store.AddMember(ctx, "u1", "r1"))
	require.NoError(t, f.engine.GrantToRole(ctx, permission.Read, folder, "f1", "r1"))

	assert.True(t, f.has(t, "u1", permission.Read, "f1"))
	assert.False(t, f.has(t, "u2", permission.Read, "f1"))
	assert.False(t, f.has(t, "u1", permission.Read, "c1"), "role grants stay on their entity")

	require.NoError(t, f.store.SetMemberBanned(ctx, "u1", "r1", true))
	assert.False(t, f.has(t, "u1", permission.Read, "f1"))

	require.NoError(t, f.store.SetMemberBanned(ctx, "u1", "r1", false))
	assert.True(t, f.has(t, "u1", permission.Read, "f1"))

	require.NoError(t, f.store.RemoveMember(ctx, "u1", "r1"))
	assert.False(t, f.has(t, "u1", permission.Read, "f1"))
}

func TestHasPermission_Edges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, folderTree())
	require.NoError(t, f.engine.GrantToUser(ctx, permission.ReadUpdate, folder, "f1", "u1"))

	assert.True(t, f.has(t, "u1", permission.Read, "f1"))
	assert.True(t, f.has(t, "u1", permission.Read|permission.Delete, "f1"), "any bit of the mask matches")
	assert.False(t, f.has(t, "u1", permission.Delete, "f1"))
	assert.False(t, f.has(t, "", permission.Read, "f1"))
	assert.False(t, f.has(t, "u1", permission.None, "f1"))
	assert.False(t, f.has(t, "u1", permission.Read, acl.Global), "entity id must match exactly")
}

func TestCheckMany(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, folderTree(), acl.WithCheckConcurrency(2))

	require.NoError(t, f.engine.GrantToUser(ctx, permission.Read, folder, "f1", "u2"))
	require.NoError(t, f.engine.GrantToUser(ctx, permission.Read, folder, "f1", "u4"))

	ids := []string{"u1", "u2", "u3", "u4", "u5"}
	res, err := f.engine.CheckMany(ctx, ids, permission.Read, folder, "c1")
	require.NoError(t, err)

	want := []acl.CheckResult{
		{ID: "u1", Value: false},
		{ID: "u2", Value: true},
		{ID: "u3", Value: false},
		{ID: "u4", Value: true},
		{ID: "u5", Value: false},
	}
	assert.Equal(t, want, res)

	empty, err := f.engine.CheckMany(ctx, nil, permission.Read, folder, "c1")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

type checkerFunc func(ctx context.Context, userID string, mask permission.Mask, entityType acl.EntityType, entityID string) (bool, error)

func (fn checkerFunc) HasPermission(ctx context.Context, userID string, mask permission.Mask, entityType acl.EntityType, entityID string) (bool, error) {
	return fn(ctx, userID, mask, entityType, entityID)
}

func TestCheckMany_Error(t *testing.T) {
	t.Parallel()
	errBackend := errors.New("backend down")
	c := checkerFunc(func(_ context.Context, userID string, _ permission.Mask, _ acl.EntityType, _ string) (bool, error) {
		if userID == "bad" {
			return false, errBackend
		}
		return true, nil
	})

	res, err := acl.CheckMany(context.Background(), c, 1, []string{"a", "bad", "b"}, permission.Read, folder, "f1")
	require.ErrorIs(t, err, errBackend)
	assert.Nil(t, res)
}

func TestFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, newTree(
		[2]string{"f1", ""},
		[2]string{"f2", ""},
		[2]string{"c1", "f1"},
		[2]string{"c2", "f2"},
	))

	require.NoError(t, f.engine.GrantToUser(ctx, permission.Read, folder, "f1", "u1"))
	require.NoError(t, f.engine.GrantToUser(ctx, permission.Read, folder, "c2", "u1"))

	t.Run("ids", func(t *testing.T) {
		got, err := f.engine.FilterIDs(ctx, []string{"c2", "f2", "c1", "f1", "zz"}, "u1", folder, permission.Read)
		require.NoError(t, err)
		assert.Equal(t, []string{"c2", "c1", "f1"}, got)
	})

	t.Run("items", func(t *testing.T) {
		type doc struct {
			ID    string
			Title string
		}
		docs := []doc{{"f2", "two"}, {"c1", "child"}, {"f1", "one"}}
		got, err := acl.Filter(ctx, f.engine, docs, func(d doc) string { return d.ID }, "u1", folder, permission.Read)
		require.NoError(t, err)
		assert.Equal(t, []doc{{"c1", "child"}, {"f1", "one"}}, got)
	})

	t.Run("recursive ids under a root", func(t *testing.T) {
		got, err := f.engine.RecursiveIDsForUser(ctx, "u1", folder, permission.Read, "f2")
		require.NoError(t, err)
		assert.Equal(t, []string{"c2"}, got)
	})

	t.Run("unregistered type", func(t *testing.T) {
		got, err := f.engine.FilterIDs(ctx, []string{"f1"}, "u1", "task", permission.Read)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEngine_ConcurrentGrants(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, folderTree())

	bits := []permission.Mask{permission.Login, permission.Create, permission.Delete, permission.Update, permission.Read}
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i%4)
			assert.NoError(t, f.engine.GrantToUser(ctx, bits[i%len(bits)], folder, "f1", userID))
			_, err := f.engine.HasPermission(ctx, userID, permission.Read, folder, "g1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for u := range 4 {
		userID := fmt.Sprintf("u%d", u)
		var want permission.Mask
		for i := u; i < 20; i += 4 {
			want |= bits[i%len(bits)]
		}
		assert.Equal(t, want, f.mask(t, direct("f1", userID)), userID)
		assert.Equal(t, want, f.mask(t, inherited("c1", userID)), userID)
		assert.Equal(t, want, f.mask(t, inherited("g1", userID)), userID)
	}
}
