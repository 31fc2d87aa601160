package pg

import (
	"context"
	"errors"
)

// Pinger is the part of *pgxpool.Pool a health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that the database answers.
func Ping(ctx context.Context, db Pinger) error {
	if err := db.Ping(ctx); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}

// Healthcheck binds Ping to db for health checks shaped as func(context.Context) error.
func Healthcheck(db Pinger) func(context.Context) error {
	return func(ctx context.Context) error { return Ping(ctx, db) }
}
