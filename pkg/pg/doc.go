// Package pg wraps pgx/v5 for the PostgreSQL backend: pooled connections
// with start-up retries, goose migrations from an embedded filesystem, a
// readiness probe, error classifiers and a txn.Manager built on
// pgx.BeginTxFunc.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, db.Migrations, "migrations", cfg, log); err != nil {
//		return err
//	}
//	tm := pg.NewTxManager(pool)
//
// Stores resolve the txn.Tx they receive with Querier, which returns the
// pool for nil and the open pgx.Tx otherwise.
package pg
