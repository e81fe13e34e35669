package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs callbacks inside pgx transactions.
type TxManager struct {
	pool *pgxpool.Pool
}

var _ txn.Manager = (*TxManager)(nil)

// NewTxManager creates a transaction manager for pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) Context() context.Context { return t.ctx }

// WithTx implements txn.Manager.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx txn.Tx) error) error {
	return pgx.BeginTxFunc(ctx, m.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{ctx: ctx, tx: tx})
	})
}

// Querier picks the transaction behind tx, or pool when tx is nil.
func Querier(pool *pgxpool.Pool, tx txn.Tx) (DBTX, error) {
	if tx == nil {
		return pool, nil
	}
	t, ok := tx.(*pgTx)
	if !ok {
		return nil, errors.Join(ErrTransactionFailed, txn.ErrForeignTx)
	}
	return t.tx, nil
}
