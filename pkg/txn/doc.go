// Package txn defines the explicit unit-of-work handle threaded through every
// store call that has to take part in a multi-document transaction.
//
// A Manager opens a transaction and passes a Tx to the callback. Stores accept
// the Tx as a plain argument (nil means "no transaction") instead of reading
// it from ambient state:
//
//	err := mgr.WithTx(ctx, func(ctx context.Context, tx txn.Tx) error {
//		id, err := producer.QueuePublishLevel(ctx, tx, levelID, publishAt)
//		if err != nil {
//			return err
//		}
//		return levels.SetScheduledMessage(ctx, tx, levelID, id)
//	})
//
// Backends: pkg/mongo.TxManager (session transactions), pkg/pg.TxManager
// (pgx transactions) and the in-memory manager in this package, which keeps an
// undo journal and is used by tests and local development.
package txn
