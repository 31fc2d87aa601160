package aclcache_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/aclcache"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

const folder acl.EntityType = "folder"

// countingChecker counts calls to the wrapped checker.
type countingChecker struct {
	next  acl.Checker
	calls atomic.Int32
	err   error
}

func (c *countingChecker) HasPermission(ctx context.Context, userID string, mask permission.Mask, entityType acl.EntityType, entityID string) (bool, error) {
	c.calls.Add(1)
	if c.err != nil {
		return false, c.err
	}
	return c.next.HasPermission(ctx, userID, mask, entityType, entityID)
}

type setup struct {
	mr      *miniredis.Miniredis
	engine  *acl.Engine
	counter *countingChecker
	cache   *aclcache.Checker
}

func newSetup(t *testing.T, cfg aclcache.Config) *setup {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := &setup{mr: mr}
	s.engine = acl.New(acl.NewMemoryStore(), nil, acl.WithChangeHook(func(ctx context.Context, c acl.Change) {
		s.cache.OnChange(ctx, c)
	}))
	s.counter = &countingChecker{next: s.engine}
	s.cache = aclcache.New(s.counter, client, aclcache.WithConfig(cfg))
	return s
}

func TestChecker_CachesDecisions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSetup(t, aclcache.Config{TTL: time.Minute, Prefix: "test"})

	require.NoError(t, s.engine.GrantToUser(ctx, permission.Read, folder, "f1", "u1"))

	for range 3 {
		ok, err := s.cache.HasPermission(ctx, "u1", permission.Read, folder, "f1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), s.counter.calls.Load())

	// Negative answers are cached too.
	for range 2 {
		ok, err := s.cache.HasPermission(ctx, "u2", permission.Read, folder, "f1")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, int32(2), s.counter.calls.Load())

	// Trivial requests never reach the store.
	ok, err := s.cache.HasPermission(ctx, "", permission.Read, folder, "f1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(2), s.counter.calls.Load())
}

func TestChecker_InvalidatedByEngineChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSetup(t, aclcache.Config{TTL: time.Minute, Prefix: "test", LocalSize: 16, LocalTTL: time.Minute})

	ok, err := s.cache.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.engine.GrantToUser(ctx, permission.Read, folder, "f1", "u1"))

	ok, err = s.cache.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)
	assert.True(t, ok)

	gen, err := s.mr.Get("test:gen:folder")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)

	require.NoError(t, s.engine.RevokeFromUser(ctx, permission.Read, folder, "f1", "u1"))
	ok, err = s.cache.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChecker_ColonIDsDoNotShareEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSetup(t, aclcache.Config{TTL: time.Minute, Prefix: "test", LocalSize: 16, LocalTTL: time.Minute})

	require.NoError(t, s.engine.GrantToUser(ctx, permission.Read, folder, "x:u2", "u1"))

	ok, err := s.cache.HasPermission(ctx, "u1", permission.Read, folder, "x:u2")
	require.NoError(t, err)
	assert.True(t, ok)

	// Same joined text, different tuple.
	ok, err = s.cache.HasPermission(ctx, "u2:u1", permission.Read, folder, "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(2), s.counter.calls.Load())
}

func TestChecker_InvalidatedByMembershipChanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSetup(t, aclcache.Config{TTL: time.Minute, Prefix: "test", LocalSize: 16, LocalTTL: time.Minute})

	require.NoError(t, s.engine.CreateRole(ctx, acl.RoleInfo{ID: "r1", Code: "editors", Active: true}))
	require.NoError(t, s.engine.AddRoleMember(ctx, "u1", "r1"))
	require.NoError(t, s.engine.AddRoleMember(ctx, "u2", "r1"))
	require.NoError(t, s.engine.GrantToRole(ctx, permission.Read, folder, "f1", "r1"))
	require.NoError(t, s.engine.GrantToRole(ctx, permission.Read, "task", "t1", "r1"))

	check := func(userID string, entityType acl.EntityType, entityID string) bool {
		ok, err := s.cache.HasPermission(ctx, userID, permission.Read, entityType, entityID)
		require.NoError(t, err)
		return ok
	}
	require.True(t, check("u1", folder, "f1"))
	require.True(t, check("u1", "task", "t1"))
	require.True(t, check("u2", folder, "f1"))

	require.NoError(t, s.engine.SetRoleMemberBanned(ctx, "u1", "r1", true))
	assert.False(t, check("u1", folder, "f1"))
	assert.False(t, check("u1", "task", "t1"))

	gen, err := s.mr.Get("test:gen")
	require.NoError(t, err)
	assert.NotEqual(t, "0", gen)

	require.NoError(t, s.engine.RemoveRoleMember(ctx, "u2", "r1"))
	assert.False(t, check("u2", folder, "f1"))

	require.NoError(t, s.engine.SetRoleMemberBanned(ctx, "u1", "r1", false))
	require.True(t, check("u1", folder, "f1"))
	require.NoError(t, s.engine.DeleteRole(ctx, "r1"))
	assert.False(t, check("u1", folder, "f1"))
}

func TestChecker_OtherTypesSurviveInvalidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSetup(t, aclcache.Config{TTL: time.Minute, Prefix: "test"})

	_, err := s.cache.HasPermission(ctx, "u1", permission.Read, "task", "t1")
	require.NoError(t, err)
	require.NoError(t, s.cache.Invalidate(ctx, folder))

	_, err = s.cache.HasPermission(ctx, "u1", permission.Read, "task", "t1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), s.counter.calls.Load())
}

func TestChecker_TTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSetup(t, aclcache.Config{TTL: 10 * time.Second, Prefix: "test"})

	_, err := s.cache.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)
	s.mr.FastForward(11 * time.Second)
	_, err = s.cache.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), s.counter.calls.Load())
}

func TestChecker_RedisDown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSetup(t, aclcache.Config{TTL: time.Minute, Prefix: "test"})
	require.NoError(t, s.engine.GrantToUser(ctx, permission.Read, folder, "f1", "u1"))

	s.mr.Close()

	ok, err := s.cache.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Error(t, s.cache.Invalidate(ctx, folder))
}

func TestChecker_DegradedWarningNamesComponent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	c := aclcache.New(acl.New(acl.NewMemoryStore(), nil), client, aclcache.WithLogger(log))

	mr.Close()
	_, err := c.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0], &entry))
	assert.Equal(t, "aclcache", entry["component"])
	assert.Equal(t, "generation", entry["op"])
}

func TestChecker_StoreError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSetup(t, aclcache.Config{TTL: time.Minute, Prefix: "test"})
	errStore := errors.New("store down")
	s.counter.err = errStore

	_, err := s.cache.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.ErrorIs(t, err, errStore)

	// Errors are not cached.
	s.counter.err = nil
	ok, err := s.cache.HasPermission(ctx, "u1", permission.Read, folder, "f1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChecker_CheckMany(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSetup(t, aclcache.Config{TTL: time.Minute, Prefix: "test"})
	require.NoError(t, s.engine.GrantToUser(ctx, permission.Update, folder, "f1", "u2"))

	res, err := s.cache.CheckMany(ctx, 2, []string{"u1", "u2", "u3"}, permission.Update, folder, "f1")
	require.NoError(t, err)
	assert.Equal(t, []acl.CheckResult{{ID: "u1"}, {ID: "u2", Value: true}, {ID: "u3"}}, res)
}

func TestChecker_Listen(t *testing.T) {
	t.Parallel()
	s := newSetup(t, aclcache.Config{TTL: time.Minute, Prefix: "test", LocalSize: 8, LocalTTL: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.cache.Listen(ctx) }()

	require.Eventually(t, func() bool {
		return len(s.mr.PubSubChannels("test:invalidate")) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.cache.Invalidate(context.Background(), folder))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
