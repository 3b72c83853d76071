package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner runs a function inside a database transaction. The function
// receives a DBTX scoped to the transaction; repositories constructed over
// it execute atomically and commit only if fn returns nil.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx DBTX) error) error
}

// TxManager implements TxRunner over a pgx connection pool.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a TxManager.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx begins a transaction, runs fn, and commits if fn returns nil.
// Any error (including a panic re-raised after rollback) leaves the
// database untouched.
func (m *TxManager) WithTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

var _ TxRunner = (*TxManager)(nil)
