package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ping measures one PING round trip.
func Ping(ctx context.Context, client redis.UniversalClient) (time.Duration, error) {
	start := time.Now()
	if err := client.Ping(ctx).Err(); err != nil {
		return 0, errors.Join(ErrHealthcheckFailed, err)
	}
	return time.Since(start), nil
}

// Healthcheck binds Ping to client for health checks shaped as func(context.Context) error.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := Ping(ctx, client)
		return err
	}
}
