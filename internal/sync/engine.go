package sync

import (
	"context"
	"time"

	"github.com/hyperengineering/grmsync/internal/clock"
	"github.com/hyperengineering/grmsync/internal/scope"
	"github.com/hyperengineering/grmsync/internal/store"
	"github.com/hyperengineering/grmsync/internal/tables"
)

// DefaultMaxPushRecords bounds the records of one push across all tables.
const DefaultMaxPushRecords = 1000

// Store is the entity store the engine reads and writes.
type Store interface {
	store.EntityStore
	WithTx(ctx context.Context, fn func(ctx context.Context, tx store.EntityStore) error) error
}

// ScopeResolver computes the visibility of a user.
type ScopeResolver interface {
	Resolve(ctx context.Context, userID string) (scope.Scope, error)
}

// Engine serves pulls and pushes. It keeps no per-user state; the only
// shared state is the checkpoint clock.
type Engine struct {
	store          Store
	resolver       ScopeResolver
	registry       *tables.Registry
	policy         *PushPolicy
	checkpoints    *Checkpointer
	pullTimeout    time.Duration
	pushTimeout    time.Duration
	maxPushRecords int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry replaces the default table registry.
func WithRegistry(r *tables.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithPushPolicy replaces the default push policy.
func WithPushPolicy(p *PushPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithCheckpointer replaces the checkpoint clock.
func WithCheckpointer(c *Checkpointer) Option {
	return func(e *Engine) { e.checkpoints = c }
}

// WithPullTimeout bounds each pull. Zero disables the bound.
func WithPullTimeout(d time.Duration) Option {
	return func(e *Engine) { e.pullTimeout = d }
}

// WithPushTimeout bounds each push. Zero disables the bound.
func WithPushTimeout(d time.Duration) Option {
	return func(e *Engine) { e.pushTimeout = d }
}

// WithMaxPushRecords overrides DefaultMaxPushRecords.
func WithMaxPushRecords(n int) Option {
	return func(e *Engine) { e.maxPushRecords = n }
}

// NewEngine creates an Engine over st. Without options it uses the default
// table registry, push policy, and the real clock.
func NewEngine(st Store, resolver ScopeResolver, opts ...Option) *Engine {
	e := &Engine{
		store:          st,
		resolver:       resolver,
		registry:       tables.Default(),
		maxPushRecords: DefaultMaxPushRecords,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == nil {
		p, err := NewPushPolicy(e.registry, DefaultPushPolicy())
		if err != nil {
			// Registry without the issue table: accept nothing.
			p = &PushPolicy{allowed: map[string]map[Operation]bool{}}
		}
		e.policy = p
	}
	if e.checkpoints == nil {
		e.checkpoints = NewCheckpointer(clock.Real{})
	}
	return e
}

// Registry returns the table registry the engine serves.
func (e *Engine) Registry() *tables.Registry { return e.registry }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
