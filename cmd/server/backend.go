package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/levelqueue/db"
	"github.com/dmitrymomot/levelqueue/pkg/httpserver"
	"github.com/dmitrymomot/levelqueue/pkg/mongo"
	"github.com/dmitrymomot/levelqueue/pkg/pg"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/queue/mongostore"
	"github.com/dmitrymomot/levelqueue/pkg/queue/pgstore"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
	"github.com/dmitrymomot/levelqueue/svc/account"
	"github.com/dmitrymomot/levelqueue/svc/level"
)

// backend bundles the stores of one datastore driver.
type backend struct {
	messages queue.Repository
	levels   level.Store
	accounts account.Store
	txm      txn.Manager
	check    httpserver.Check
	close    func(context.Context) error
}

func openBackend(ctx context.Context, cfg appConfig, log *slog.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case driverMongo:
		return openMongo(ctx, cfg, log)
	case driverPostgres:
		return openPostgres(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q: want %q or %q", cfg.StoreDriver, driverMongo, driverPostgres)
}

func openMongo(ctx context.Context, cfg appConfig, log *slog.Logger) (*backend, error) {
	client, err := mongo.New(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}
	database := client.Database(cfg.Mongo.Database)

	messages := mongostore.New(database, cfg.QueueCollection)
	levels := level.NewMongoStore(database)
	accounts := account.NewMongoStore(database)

	for name, ensure := range map[string]func(context.Context) error{
		"queue":    messages.EnsureIndexes,
		"levels":   levels.EnsureIndexes,
		"accounts": accounts.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	log.InfoContext(ctx, "mongodb store ready", slog.String("database", cfg.Mongo.Database))

	return &backend{
		messages: messages,
		levels:   levels,
		accounts: accounts,
		txm:      mongo.NewTxManager(client),
		check:    httpserver.Check{Name: "mongodb", Probe: mongo.Healthcheck(client)},
		close:    client.Disconnect,
	}, nil
}

func openPostgres(ctx context.Context, cfg appConfig, log *slog.Logger) (*backend, error) {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, pool, db.Migrations, db.MigrationsDir, cfg.Postgres, log); err != nil {
		pool.Close()
		return nil, err
	}
	log.InfoContext(ctx, "postgres store ready")

	return &backend{
		messages: pgstore.New(pool),
		levels:   level.NewPgStore(pool),
		accounts: account.NewPgStore(pool),
		txm:      pg.NewTxManager(pool),
		check:    httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)},
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}
