// Package aclcache puts a Redis cache in front of permission checks.
//
// Decisions are keyed by entity type generation, so a single INCR invalidates
// every decision of a type. Wire the invalidation into the engine:
//
//	var checker *aclcache.Checker
//	engine := acl.New(store, registry, acl.WithChangeHook(func(ctx context.Context, c acl.Change) {
//		checker.OnChange(ctx, c)
//	}))
//	checker = aclcache.New(engine, client, aclcache.WithConfig(cfg))
//	go checker.Listen(ctx)
package aclcache
