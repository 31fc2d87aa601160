package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/dmitrymomot/entityacl/pkg/config"
	"github.com/dmitrymomot/entityacl/pkg/redis"
)

func runHealth(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("health", pflag.ContinueOnError)
	withRedis := fs.Bool("redis", false, "also ping the check cache at $REDIS_URL")
	if err := parseFlags(a, fs, "health [flags]", args); err != nil {
		return err
	}

	pool, _, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	_, store, err := a.engine(pool)
	if err != nil {
		return err
	}
	if err := store.Healthcheck(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "postgres\tok")

	if !*withRedis {
		return nil
	}
	var cfg redis.Config
	if err := config.Parse(&cfg); err != nil {
		return err
	}
	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	rtt, err := redis.Ping(ctx, client)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "redis\tok\t%s\n", rtt)
	return nil
}
