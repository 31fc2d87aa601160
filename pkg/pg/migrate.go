package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrationLogger receives goose output. *slog.Logger satisfies it.
type MigrationLogger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// Migrate applies the goose migrations found in cfg.MigrationsPath.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log MigrationLogger) error {
	if cfg.MigrationsPath == "" {
		return errors.Join(ErrMigrate, ErrMigrationsPathRequired)
	}
	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		if os.IsNotExist(err) {
			return errors.Join(ErrMigrationsDirNotFound, err)
		}
		return errors.Join(ErrMigrate, err)
	}
	return up(ctx, pool, cfg, nil, cfg.MigrationsPath, log)
}

// MigrateFS applies the goose migrations stored under dir in fsys, typically
// an embedded schema shipped with the store.
func MigrateFS(ctx context.Context, pool *pgxpool.Pool, cfg Config, fsys fs.FS, dir string, log MigrationLogger) error {
	if fsys == nil {
		return errors.Join(ErrMigrate, ErrMigrationsPathRequired)
	}
	if _, err := fs.Stat(fsys, dir); err != nil {
		return errors.Join(ErrMigrationsDirNotFound, err)
	}
	return up(ctx, pool, cfg, fsys, dir, log)
}

// up runs goose against a database/sql view of the pool. goose keeps its
// settings in package globals, so fsys is reset once the run finishes.
func up(ctx context.Context, pool *pgxpool.Pool, cfg Config, fsys fs.FS, dir string, log MigrationLogger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}(db)

	goose.SetLogger(newSlogAdapter(ctx, log))
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrate, err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return errors.Join(ErrMigrate, err)
	}
	return nil
}

// migrateSlogAdapter routes goose's Printf-style output through the logger.
type migrateSlogAdapter struct {
	ctx context.Context
	log MigrationLogger
}

func newSlogAdapter(ctx context.Context, log MigrationLogger) goose.Logger {
	return &migrateSlogAdapter{ctx: ctx, log: log}
}

func (a *migrateSlogAdapter) Fatalf(format string, v ...any) {
	a.log.ErrorContext(a.ctx, fmt.Sprintf(format, v...))
}

func (a *migrateSlogAdapter) Printf(format string, v ...any) {
	a.log.InfoContext(a.ctx, fmt.Sprintf(format, v...))
}
