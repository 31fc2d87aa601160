package acl

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/entityacl/pkg/logger"
)

// Default limits.
const (
	DefaultMaxDepth         = 64
	DefaultCheckConcurrency = 8
)

// Config holds the engine limits, loadable from the environment.
type Config struct {
	// MaxDepth bounds cascade recursion.
	MaxDepth int `env:"ACL_MAX_DEPTH" envDefault:"64"`

	// CheckConcurrency bounds parallel checks in CheckMany.
	CheckConcurrency int `env:"ACL_CHECK_CONCURRENCY" envDefault:"8"`
}

// Engine grants, revokes and propagates permissions over entity trees.
type Engine struct {
	store            Store
	hierarchy        *Registry
	logger           *slog.Logger
	maxDepth         int
	checkConcurrency int
	onChange         []func(ctx context.Context, c Change)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxDepth bounds cascade recursion. Non-positive values are ignored.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithCheckConcurrency bounds the number of parallel checks in CheckMany.
func WithCheckConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.checkConcurrency = n
		}
	}
}

// WithConfig applies every limit of cfg.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		WithMaxDepth(cfg.MaxDepth)(e)
		WithCheckConcurrency(cfg.CheckConcurrency)(e)
	}
}

// WithChangeHook registers fn to be called after every committed mutation.
func WithChangeHook(fn func(ctx context.Context, c Change)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.onChange = append(e.onChange, fn)
		}
	}
}

// New creates an engine. A nil registry is treated as an empty one.
func New(store Store, hierarchy *Registry, opts ...Option) *Engine {
	if store == nil {
		panic("acl: store cannot be nil")
	}
	if hierarchy == nil {
		hierarchy = NewRegistry()
	}
	e := &Engine{
		store:            store,
		hierarchy:        hierarchy,
		logger:           logger.Discard(),
		maxDepth:         DefaultMaxDepth,
		checkConcurrency: DefaultCheckConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Hierarchy returns the registry the engine walks.
func (e *Engine) Hierarchy() *Registry {
	return e.hierarchy
}

// CheckConcurrency is the parallelism CheckMany uses.
func (e *Engine) CheckConcurrency() int {
	return e.checkConcurrency
}

// write runs fn in one transaction and notifies change hooks after commit.
func (e *Engine) write(ctx context.Context, change Change, fn func(ctx context.Context, tx Tx) error) error {
	if err := e.store.InTx(ctx, fn); err != nil {
		return err
	}
	e.notify(ctx, change)
	return nil
}

func (e *Engine) notify(ctx context.Context, change Change) {
	for _, hook := range e.onChange {
		hook(ctx, change)
	}
}
