// Package pg bootstraps the PostgreSQL side of the permission store: a
// retrying pgx/v5 pool, goose migrations (from disk or an embedded fs.FS),
// a ping-based health check and SQLSTATE classifiers used to map driver
// errors onto store behaviour.
//
// Configuration is read from PG_* environment variables:
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//		return err
//	}
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, cfg, pgstore.Migrations, pgstore.MigrationsDir, slog.Default()); err != nil {
//		return err
//	}
package pg
