package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pgready/internal/breaker"
	"github.com/vvka-141/pgready/internal/retry"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// QueryGuard runs queries through a circuit breaker, retrying each call under
// the query policy. The breaker counts one failure per exhausted retry sequence,
// not per attempt. While the circuit is open, calls fail fast with an error
// wrapping pgready.ErrCircuitOpen and the database is not contacted.
type QueryGuard struct {
	querier  pgready.Querier
	breaker  *breaker.Breaker
	executor *retry.Executor
	policy   retry.Policy
}

// GuardOption configures a QueryGuard.
type GuardOption func(*QueryGuard)

// WithGuardPolicy replaces retry.QueryPolicy.
func WithGuardPolicy(p retry.Policy) GuardOption {
	return func(g *QueryGuard) {
		g.policy = p
	}
}

// WithGuardExecutor replaces the default classifying executor.
func WithGuardExecutor(e *retry.Executor) GuardOption {
	return func(g *QueryGuard) {
		g.executor = e
	}
}

// NewQueryGuard wraps querier with b.
func NewQueryGuard(querier pgready.Querier, b *breaker.Breaker, opts ...GuardOption) *QueryGuard {
	g := &QueryGuard{
		querier: querier,
		breaker: b,
		policy:  retry.QueryPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.executor == nil {
		g.executor = retry.NewExecutor(nil).WithClassifier(retry.NewClassifier())
	}
	return g
}

// Breaker returns the guarding circuit breaker.
func (g *QueryGuard) Breaker() *breaker.Breaker {
	return g.breaker
}

// Ping checks the connection.
func (g *QueryGuard) Ping(ctx context.Context) error {
	_, err := guarded(ctx, g, "ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.querier.Ping(ctx)
	})
	return err
}

// Exec executes a statement without returning rows.
func (g *QueryGuard) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return guarded(ctx, g, "exec", func(ctx context.Context) (pgconn.CommandTag, error) {
		return g.querier.Exec(ctx, sql, args...)
	})
}

// QueryRowScan runs a single-row query and scans the result into dest.
func (g *QueryGuard) QueryRowScan(ctx context.Context, dest []any, sql string, args ...any) error {
	_, err := guarded(ctx, g, "query", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.querier.QueryRow(ctx, sql, args...).Scan(dest...)
	})
	return err
}

func guarded[T any](ctx context.Context, g *QueryGuard, label string, op func(ctx context.Context) (T, error)) (T, error) {
	return breaker.Call(ctx, g.breaker, func(ctx context.Context) (T, error) {
		return retry.Do(ctx, g.executor, g.policy, label, op).Result()
	})
}
