package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/acl/pgstore"
	"github.com/dmitrymomot/entityacl/pkg/aclcache"
	"github.com/dmitrymomot/entityacl/pkg/config"
	"github.com/dmitrymomot/entityacl/pkg/logger"
	"github.com/dmitrymomot/entityacl/pkg/pg"
	"github.com/dmitrymomot/entityacl/pkg/redis"
)

const (
	exitDenied = 2
	exitUsage  = 64
)

// exitError carries a process exit code. An empty message prints nothing.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

func usage(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"development"`
}

// app holds what every command shares: output streams, the logger and the
// global flags.
type app struct {
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger

	envFiles []string
	dsn      string
}

func (a *app) addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringArrayVar(&a.envFiles, "env-file", nil, "load variables from a dotenv file (repeatable)")
	fs.StringVar(&a.dsn, "dsn", "", "Postgres connection string (default $PG_CONN_URL)")
}

// setup loads dotenv files and builds the logger. Call it after flag parsing.
func (a *app) setup() error {
	if err := config.LoadEnv(a.envFiles...); err != nil {
		return err
	}
	if a.dsn != "" {
		if err := os.Setenv("PG_CONN_URL", a.dsn); err != nil {
			return err
		}
	}
	var cfg appConfig
	if err := config.Parse(&cfg); err != nil {
		return err
	}
	a.log = logger.New(
		logger.WithEnvironment(cfg.Env, "aclctl"),
		logger.WithOutput(a.stderr),
		logger.WithContextValue("command", commandKey{}),
	)
	return nil
}

func (a *app) pgConfig() (pg.Config, error) {
	var cfg pg.Config
	err := config.Parse(&cfg)
	return cfg, err
}

func (a *app) connect(ctx context.Context) (*pgxpool.Pool, pg.Config, error) {
	cfg, err := a.pgConfig()
	if err != nil {
		return nil, cfg, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	return pool, cfg, nil
}

func (a *app) engine(pool *pgxpool.Pool) (*acl.Engine, *pgstore.Store, error) {
	var storeCfg pgstore.Config
	if err := config.Parse(&storeCfg); err != nil {
		return nil, nil, err
	}
	var engineCfg acl.Config
	if err := config.Parse(&engineCfg); err != nil {
		return nil, nil, err
	}
	store := pgstore.New(pool,
		pgstore.WithConfig(storeCfg),
		pgstore.WithLogger(a.log),
	)
	return acl.New(store, nil, acl.WithConfig(engineCfg), acl.WithLogger(a.log)), store, nil
}

// cache wraps next in the Redis check cache. The returned func closes the
// Redis client.
func (a *app) cache(ctx context.Context, next acl.Checker) (*aclcache.Checker, func(), error) {
	var redisCfg redis.Config
	if err := config.Parse(&redisCfg); err != nil {
		return nil, nil, err
	}
	var cacheCfg aclcache.Config
	if err := config.Parse(&cacheCfg); err != nil {
		return nil, nil, err
	}
	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return nil, nil, err
	}
	checker := aclcache.New(next, client,
		aclcache.WithConfig(cacheCfg),
		aclcache.WithLogger(a.log),
	)
	return checker, func() { _ = client.Close() }, nil
}
