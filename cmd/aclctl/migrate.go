package main

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/dmitrymomot/entityacl/pkg/acl/pgstore"
	"github.com/dmitrymomot/entityacl/pkg/pg"
)

func runMigrate(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	fromDisk := fs.Bool("from-disk", false, "read migrations from $PG_MIGRATIONS_PATH instead of the embedded schema")
	if err := parseFlags(a, fs, "migrate [flags]", args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usage("migrate takes no arguments")
	}

	pool, cfg, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if *fromDisk {
		if cfg.MigrationsPath == "" {
			return usage("--from-disk needs PG_MIGRATIONS_PATH")
		}
		return pg.Migrate(ctx, pool, cfg, a.log)
	}
	return pg.MigrateFS(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, a.log)
}
