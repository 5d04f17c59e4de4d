package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// Querier is the subset of pgx shared by pools, connections and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// TxRunner runs fn inside a single database transaction. Repositories pick the
// transaction up through ConnFromContext.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolTxRunner runs transactions on a pgx pool.
type PoolTxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner returns a runner for pool.
func NewTxRunner(pool *pgxpool.Pool) *PoolTxRunner {
	return &PoolTxRunner{pool: pool}
}

// WithTx commits when fn returns nil and rolls back otherwise. Nested calls
// join the outer transaction.
func (r *PoolTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ConnFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(WithConn(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WithConn stores q in the context so repositories use it instead of the pool.
func WithConn(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, txKey, q)
}

// ConnFromContext retrieves the transaction-scoped querier from context, or nil.
func ConnFromContext(ctx context.Context) Querier {
	q, ok := ctx.Value(txKey).(Querier)
	if !ok || q == nil {
		return nil
	}
	return q
}

// WithoutConn masks any querier stored in ctx so work started from it runs on
// the pool, outside the caller's transaction.
func WithoutConn(ctx context.Context) context.Context {
	if ConnFromContext(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, nil)
}

// NoopTxRunner calls fn directly. It backs in-memory repositories in tests.
type NoopTxRunner struct{}

func (NoopTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
