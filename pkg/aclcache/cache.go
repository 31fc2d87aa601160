package aclcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/cache"
	"github.com/dmitrymomot/entityacl/pkg/logger"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

// Checker caches access decisions of another acl.Checker in Redis.
//
// Keys carry a global and a per entity type generation. Invalidate bumps the
// type one, InvalidateAll the global one; either makes the affected cached
// decisions unreachable. Redis failures never fail a check: the wrapped
// checker answers instead.
type Checker struct {
	next   acl.Checker
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	local  *cache.LRU[string, bool]
	logger *slog.Logger
}

var _ acl.Checker = (*Checker)(nil)

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger used for degraded-mode warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l.With(logger.Component("aclcache"))
		}
	}
}

// WithConfig applies cfg.
func WithConfig(cfg Config) Option {
	return func(c *Checker) {
		if cfg.TTL > 0 {
			c.ttl = cfg.TTL
		}
		if cfg.Prefix != "" {
			c.prefix = cfg.Prefix
		}
		c.local = nil
		if cfg.LocalSize > 0 {
			c.local = cache.NewLRU[string, bool](cfg.LocalSize, cache.WithTTL(cfg.LocalTTL))
		}
	}
}

// New wraps next. Without WithConfig decisions live one minute in Redis and
// there is no in-process layer.
func New(next acl.Checker, client redis.UniversalClient, opts ...Option) *Checker {
	if next == nil || client == nil {
		panic("aclcache: checker and redis client are required")
	}
	c := &Checker{
		next:   next,
		client: client,
		ttl:    time.Minute,
		prefix: "acl",
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasPermission answers from the cache, falling back to the wrapped checker.
func (c *Checker) HasPermission(ctx context.Context, userID string, mask permission.Mask, entityType acl.EntityType, entityID string) (bool, error) {
	if userID == "" || mask.IsNone() {
		return false, nil
	}

	gen, err := c.generation(ctx, entityType)
	if err != nil {
		c.degraded(ctx, "generation", err)
		return c.next.HasPermission(ctx, userID, mask, entityType, entityID)
	}
	key := c.decisionKey(entityType, gen, entityID, userID, mask)

	if c.local != nil {
		if v, ok := c.local.Get(key); ok {
			return v, nil
		}
	}

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		v := raw == "1"
		c.remember(key, v)
		return v, nil
	case !errors.Is(err, redis.Nil):
		c.degraded(ctx, "get", err)
		return c.next.HasPermission(ctx, userID, mask, entityType, entityID)
	}

	v, err := c.next.HasPermission(ctx, userID, mask, entityType, entityID)
	if err != nil {
		return false, err
	}
	if err := c.client.Set(ctx, key, encode(v), c.ttl).Err(); err != nil {
		c.degraded(ctx, "set", err)
	}
	c.remember(key, v)
	return v, nil
}

// CheckMany runs cached checks for every user id, preserving input order.
func (c *Checker) CheckMany(ctx context.Context, limit int, userIDs []string, mask permission.Mask, entityType acl.EntityType, entityID string) ([]acl.CheckResult, error) {
	return acl.CheckMany(ctx, c, limit, userIDs, mask, entityType, entityID)
}

// Invalidate drops every cached decision of an entity type and announces the
// new generation to other processes.
func (c *Checker) Invalidate(ctx context.Context, entityType acl.EntityType) error {
	if entityType == "" {
		return c.InvalidateAll(ctx)
	}
	return c.bump(ctx, c.generationKey(entityType), string(entityType))
}

// InvalidateAll drops every cached decision. Role and membership changes need
// it since they can affect any entity type.
func (c *Checker) InvalidateAll(ctx context.Context) error {
	return c.bump(ctx, c.globalKey(), "*")
}

// OnChange adapts Invalidate to acl.WithChangeHook. Changes without an entity
// type invalidate everything. Failures are logged; the TTL bounds how long a
// stale decision can survive them.
func (c *Checker) OnChange(ctx context.Context, change acl.Change) {
	if err := c.Invalidate(ctx, change.EntityType); err != nil {
		c.logger.WarnContext(ctx, "aclcache: invalidation failed",
			logger.EntityType(change.EntityType),
			logger.Error(err),
		)
	}
}

// Listen drops the in-process layer whenever another process invalidates.
// It blocks until ctx is done.
func (c *Checker) Listen(ctx context.Context) error {
	sub := c.client.Subscribe(ctx, c.channel())
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("aclcache: subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if c.local != nil {
				c.local.Purge()
			}
			c.logger.DebugContext(ctx, "aclcache: invalidated", slog.String("payload", msg.Payload))
		}
	}
}

func (c *Checker) bump(ctx context.Context, key, scope string) error {
	gen, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("aclcache: bump generation: %w", err)
	}
	if c.local != nil {
		c.local.Purge()
	}
	payload := scope + ":" + strconv.FormatInt(gen, 10)
	if err := c.client.Publish(ctx, c.channel(), payload).Err(); err != nil {
		return fmt.Errorf("aclcache: publish: %w", err)
	}
	return nil
}

// generation reads the global and the type generation in one round trip.
func (c *Checker) generation(ctx context.Context, entityType acl.EntityType) ([2]int64, error) {
	var gen [2]int64
	vals, err := c.client.MGet(ctx, c.globalKey(), c.generationKey(entityType)).Result()
	if err != nil {
		return gen, err
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return gen, fmt.Errorf("aclcache: unexpected generation %T", v)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return gen, fmt.Errorf("aclcache: parse generation: %w", err)
		}
		gen[i] = n
	}
	return gen, nil
}

func (c *Checker) remember(key string, v bool) {
	if c.local != nil {
		c.local.Put(key, v)
	}
}

func (c *Checker) degraded(ctx context.Context, op string, err error) {
	c.logger.WarnContext(ctx, "aclcache: redis unavailable, checking store",
		slog.String("op", op),
		logger.Error(err),
	)
}

func (c *Checker) globalKey() string {
	return c.prefix + ":gen"
}

func (c *Checker) generationKey(entityType acl.EntityType) string {
	return c.prefix + ":gen:" + string(entityType)
}

// decisionKey length-prefixes the caller supplied fields so ids containing
// ':' cannot collide.
func (c *Checker) decisionKey(entityType acl.EntityType, gen [2]int64, entityID, userID string, mask permission.Mask) string {
	return fmt.Sprintf("%s:chk:%d:%s:%d.%d:%d:%s:%d:%s:%d",
		c.prefix,
		len(entityType), entityType,
		gen[0], gen[1],
		len(entityID), entityID,
		len(userID), userID,
		uint32(mask),
	)
}

func (c *Checker) channel() string {
	return c.prefix + ":invalidate"
}

func encode(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
