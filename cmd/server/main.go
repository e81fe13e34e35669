// Command server runs the levelqueue API, the embedded queue worker and the
// periodic maintenance scheduler in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/levelqueue/modules/levels"
	"github.com/dmitrymomot/levelqueue/pkg/config"
	"github.com/dmitrymomot/levelqueue/pkg/email"
	"github.com/dmitrymomot/levelqueue/pkg/file"
	"github.com/dmitrymomot/levelqueue/pkg/httpserver"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/opensearch"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/redis"
	"github.com/dmitrymomot/levelqueue/pkg/requestid"
	"github.com/dmitrymomot/levelqueue/svc/account"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
	"github.com/dmitrymomot/levelqueue/svc/level"
	"github.com/dmitrymomot/levelqueue/svc/notify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(append(logger.FromConfig(cfg.Log),
		logger.WithContextExtractors(requestid.LoggerExtractor(), account.LoggerExtractor()),
	)...)
	logger.SetAsDefault(log)

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("datastore close failed", logger.Error(err))
		}
	}()
	checks := []httpserver.Check{be.check}

	enqueuer, err := queue.NewEnqueuer(be.messages)
	if err != nil {
		return err
	}

	publisher := level.NewPublisher(be.levels, be.txm, jobs.NewProducer(enqueuer), be.accounts,
		level.WithLogger(log),
		level.WithConfig(cfg.Level),
	)
	scheduler := level.NewScheduler(publisher, be.messages)

	dispatcherOpts := append(queue.FromConfig(cfg.Queue), queue.WithLogger(log))
	if cfg.Redis.Enabled() {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		dispatcherOpts = append(dispatcherOpts, queue.WithCycleLocker(redis.NewLocker(rdb), "levelqueue:dispatch", cfg.Queue.CycleLockTTL))
		checks = append(checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(rdb)})
	}

	dispatcher, err := queue.NewDispatcher(be.messages, dispatcherOpts...)
	if err != nil {
		return err
	}

	var indexer level.Indexer
	if cfg.OpenSearch.Enabled() {
		client, err := opensearch.New(ctx, cfg.OpenSearch)
		if err != nil {
			return err
		}
		idx := opensearch.NewIndexer(client, cfg.OpenSearch.LevelIndex)
		if err := idx.EnsureIndex(ctx, level.IndexMapping); err != nil {
			return err
		}
		indexer = idx
		checks = append(checks, httpserver.Check{Name: "opensearch", Probe: opensearch.Healthcheck(client)})
	}

	images, err := objectStore(ctx, cfg.Files)
	if err != nil {
		return err
	}
	mailer, err := email.New(cfg.Email)
	if err != nil {
		return err
	}
	notifier := notify.New(be.accounts, mailer, nil, cfg.Notify,
		notify.WithLogger(log),
	)

	handlers := []queue.Handler{
		level.NewPublishHandler(publisher),
		publisher.IndexHandler(indexer),
		publisher.ImageHandler(images),
	}
	handlers = append(handlers, publisher.StatsHandlers()...)
	handlers = append(handlers, notifier.Handlers()...)
	if err := dispatcher.RegisterHandlers(handlers...); err != nil {
		return err
	}

	periodic := queue.NewScheduler(queue.WithSchedulerLogger(log))
	recalcAt, err := time.Parse("15:04", cfg.RecalcAt)
	if err != nil {
		return fmt.Errorf("parse RECALC_PLAY_ATTEMPTS_AT: %w", err)
	}
	if err := periodic.AddTask("recalc-play-attempts", queue.DailyAt(recalcAt.Hour(), recalcAt.Minute()),
		func(ctx context.Context, _ time.Time) error {
			_, err := publisher.RecalcPlayAttempts(ctx)
			return err
		},
	); err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RealIP,
		requestid.Middleware,
		httpserver.AccessLog(log),
		middleware.Recoverer,
	)
	router.Get("/health/live", httpserver.LivenessHandler())
	router.Get("/health/ready", httpserver.ReadinessHandler(log, cfg.ReadinessTimeout, checks...))
	router.Mount("/", levels.New(publisher, scheduler, dispatcher, be.accounts, cfg.API,
		levels.WithLogger(log),
	).Handle())

	if cfg.API.InternalToken == "" {
		log.Warn("INTERNAL_API_TOKEN is empty, internal endpoints reject every call")
	}

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, router) })
	g.Go(periodic.Run(ctx))
	if cfg.Queue.EmbeddedWorker {
		worker, err := queue.NewWorker(dispatcher,
			queue.WithPollInterval(cfg.Queue.PollInterval),
			queue.WithWorkerLogger(log),
		)
		if err != nil {
			return err
		}
		g.Go(worker.Run(ctx))
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

func objectStore(ctx context.Context, cfg file.Config) (file.ObjectStore, error) {
	if cfg.S3Enabled() {
		s3, err := file.NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	local, err := file.NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	return local, nil
}
