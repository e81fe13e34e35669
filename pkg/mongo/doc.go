// Package mongo connects to MongoDB with retries, exposes a readiness probe
// and adapts driver session transactions to txn.Manager.
//
//	client, err := mongo.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	tm := mongo.NewTxManager(client)
//	err = tm.WithTx(ctx, func(ctx context.Context, tx txn.Tx) error {
//		// stores resolve tx with mongo.TxContext
//		return nil
//	})
//
// Transactions require a replica set; the default connection URL assumes a
// single-node replica set named rs0.
package mongo
