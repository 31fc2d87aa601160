// Package cache provides a small generic LRU with optional per-entry TTL.
// The permission check cache keeps recent decisions in it in front of Redis.
//
//	local := cache.NewLRU[string, bool](1024, cache.WithTTL(5*time.Second))
//	local.Put("folder:f1:u1:16", true)
//	allowed, ok := local.Get("folder:f1:u1:16")
package cache
