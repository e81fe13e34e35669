package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/logger"
)

// CycleRunner runs a single dispatch cycle. *Dispatcher implements it.
type CycleRunner interface {
	ProcessQueueMessages(ctx context.Context) (CycleResult, error)
}

// Worker drives a CycleRunner on a fixed interval inside the process. It is
// an alternative to triggering cycles from an external scheduler.
type Worker struct {
	runner   CycleRunner
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*Worker)

// WithPollInterval sets how often the worker runs a cycle
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a poll loop around runner.
func NewWorker(runner CycleRunner, opts ...WorkerOption) (*Worker, error) {
	if runner == nil {
		return nil, ErrRepositoryNil
	}

	w := &Worker{
		runner:   runner,
		interval: 5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.Component("queue-worker"))
	return w, nil
}

// Start begins polling in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrWorkerStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx, w.done)

	w.logger.Info("worker started", slog.Duration("interval", w.interval))
	return nil
}

// Stop cancels polling and waits for the running cycle to finish
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("worker stopped")
	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

func (w *Worker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.runner.ProcessQueueMessages(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "dispatch cycle failed", logger.Error(err))
			}
		}
	}
}
