package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// TxManager runs callbacks inside multi-document session transactions.
// It requires a replica set or sharded cluster.
type TxManager struct {
	client *mongo.Client
}

var _ txn.Manager = (*TxManager)(nil)

// NewTxManager creates a transaction manager for client.
func NewTxManager(client *mongo.Client) *TxManager {
	return &TxManager{client: client}
}

type sessionTx struct {
	ctx context.Context
}

func (t sessionTx) Context() context.Context { return t.ctx }

// WithTx implements txn.Manager. The driver retries fn on transient
// transaction errors, so fn must be safe to run more than once.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx txn.Tx) error) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return errors.Join(ErrTransactionFailed, err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(sctx context.Context) (any, error) {
		return nil, fn(sctx, sessionTx{ctx: sctx})
	})
	return err
}

// TxContext returns the context a store must pass to the driver so the
// operation joins tx. A nil tx yields ctx unchanged.
func TxContext(ctx context.Context, tx txn.Tx) (context.Context, error) {
	if tx == nil {
		return ctx, nil
	}
	st, ok := tx.(sessionTx)
	if !ok {
		return nil, txn.ErrForeignTx
	}
	return st.ctx, nil
}
