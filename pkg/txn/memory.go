package txn

import (
	"context"
	"sync"
)

// MemoryManager is an in-process Manager backed by an undo journal.
// Transactions are serialised; isolation against non-transactional readers is
// read-uncommitted, which is enough for the in-memory stores it serves.
type MemoryManager struct {
	mu sync.Mutex
}

// NewMemoryManager creates an in-memory transaction manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{}
}

type memoryTx struct {
	ctx  context.Context
	mu   sync.Mutex
	undo []func()
	done bool
}

func (t *memoryTx) Context() context.Context { return t.ctx }

// WithTx implements Manager.
func (m *MemoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{ctx: ctx}
	defer func() {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		tx.done = true
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	return fn(ctx, tx)
}

// rollback replays the journal newest first. Caller holds t.mu.
func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// OnRollback registers undo to run if the transaction owning tx rolls back.
// It is a no-op for a nil tx. In-memory stores call it after every write they
// make under a transaction.
func OnRollback(tx Tx, undo func()) error {
	if tx == nil {
		return nil
	}
	mt, ok := tx.(*memoryTx)
	if !ok {
		return ErrForeignTx
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return ErrTxDone
	}
	mt.undo = append(mt.undo, undo)
	return nil
}
