// Package redis connects the go-redis client used by the permission check
// cache. Connect retries until the server answers a PING, Healthcheck wraps
// the same PING for readiness checks.
//
//	var cfg redis.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
