package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/logger"
	"github.com/dmitrymomot/entityacl/pkg/pg"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is an acl.Store backed by PostgreSQL.
type Store struct {
	queries
	pool        *pgxpool.Pool
	logger      *slog.Logger
	lockTimeout time.Duration
	retries     int
	isoLevel    pgx.TxIsoLevel
}

var (
	_ acl.Store     = (*Store)(nil)
	_ acl.RoleStore = (*Store)(nil)
	_ acl.Tx        = (*txQueries)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for retries and rollbacks.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.With(logger.Component("pgstore"))
		}
	}
}

// WithConfig applies the lock timeout and retry budget of cfg.
func WithConfig(cfg Config) Option {
	return func(s *Store) {
		s.lockTimeout = cfg.LockTimeout
		if cfg.TxRetries >= 0 {
			s.retries = cfg.TxRetries
		}
	}
}

// WithIsoLevel overrides the transaction isolation level. Read committed is
// the default: every statement sees the rows committed before the advisory
// lock was granted.
func WithIsoLevel(level pgx.TxIsoLevel) Option {
	return func(s *Store) {
		if level != "" {
			s.isoLevel = level
		}
	}
}

// New wraps a pool. The schema must have been applied with Migrations.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	if pool == nil {
		panic("pgstore: pool cannot be nil")
	}
	s := &Store{
		queries:     queries{db: pool},
		pool:        pool,
		logger:      logger.Discard(),
		lockTimeout: 5 * time.Second,
		retries:     3,
		isoLevel:    pgx.ReadCommitted,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InTx runs fn in a transaction, retrying the whole function when the
// database reports a serialization failure or deadlock.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx acl.Tx) error) error {
	var err error
	start := time.Now()
	for attempt := 0; attempt <= s.retries; attempt++ {
		err = s.inTx(ctx, fn)
		if err == nil || !pg.IsSerializationError(err) || ctx.Err() != nil {
			return err
		}
		s.logger.WarnContext(ctx, "pgstore: retrying transaction",
			slog.Int("attempt", attempt+1),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
	}
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, tx acl.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: s.isoLevel})
	if err != nil {
		return fmt.Errorf("pgstore: begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.ErrorContext(ctx, "pgstore: rollback failed", logger.Error(err))
		}
	}()

	if s.lockTimeout > 0 {
		ms := strconv.FormatInt(s.lockTimeout.Milliseconds(), 10)
		if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", ms+"ms"); err != nil {
			return fmt.Errorf("pgstore: set lock timeout: %w", err)
		}
	}

	if err := fn(ctx, &txQueries{queries: queries{db: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgstore: commit tx: %w", err)
	}
	return nil
}

// Healthcheck pings the underlying pool.
func (s *Store) Healthcheck(ctx context.Context) error {
	return pg.Ping(ctx, s.pool)
}
