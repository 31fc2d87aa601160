package aclcache

import "time"

// Config holds the cache settings.
type Config struct {
	TTL       time.Duration `env:"ACL_CACHE_TTL" envDefault:"1m"`
	Prefix    string        `env:"ACL_CACHE_PREFIX" envDefault:"acl"`
	LocalSize int           `env:"ACL_CACHE_LOCAL_SIZE" envDefault:"1024"` // 0 disables the in-process layer
	LocalTTL  time.Duration `env:"ACL_CACHE_LOCAL_TTL" envDefault:"5s"`
}
