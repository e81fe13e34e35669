package txn

import (
	"context"
	"errors"
)

var (
	// ErrForeignTx is returned when a store receives a Tx opened by a different backend.
	ErrForeignTx = errors.New("transaction handle belongs to a different backend")

	// ErrTxDone is returned when a Tx is used after its callback returned.
	ErrTxDone = errors.New("transaction already finished")
)

// Tx is an open unit of work.
type Tx interface {
	// Context returns the context bound to the transaction. Backends that
	// carry their session on the context (MongoDB) return it here.
	Context() context.Context
}

// Manager runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. fn may be invoked more than once by
// backends that retry transient commit errors, so it must not have side
// effects outside the transaction.
type Manager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ContextOf returns the transaction-bound context when tx is set, otherwise ctx.
func ContextOf(ctx context.Context, tx Tx) context.Context {
	if tx == nil {
		return ctx
	}
	if c := tx.Context(); c != nil {
		return c
	}
	return ctx
}
