package queue

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
)

// DispatcherOption is a functional option for configuring a Dispatcher
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	clock          clock.Clock
	logger         *slog.Logger
	maxAttempts    int
	backoff        BackoffFunc
	batchSize      int
	concurrency    int
	handlerTimeout time.Duration
	lockTimeout    time.Duration
	writeTimeout   time.Duration
	locker         Locker
	lockKey        string
	lockTTL        time.Duration
}

// WithClock sets the time source
func WithClock(c clock.Clock) DispatcherOption {
	return func(o *dispatcherOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger for the dispatcher
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxAttempts sets how many attempts a message gets before it is FAILED
func WithMaxAttempts(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff sets the retry delay curve
func WithBackoff(fn BackoffFunc) DispatcherOption {
	return func(o *dispatcherOptions) {
		if fn != nil {
			o.backoff = fn
		}
	}
}

// WithBatchSize limits how many due messages one cycle picks up
func WithBatchSize(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithConcurrency sets how many messages of one cycle are handled in parallel
func WithConcurrency(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithHandlerTimeout bounds a single handler invocation
func WithHandlerTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.handlerTimeout = d
		}
	}
}

// WithLockTimeout sets how long a message may stay PROCESSING before
// another cycle reclaims it. It must exceed the handler timeout.
func WithLockTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithWriteTimeout bounds the outcome write made after a handler returns
func WithWriteTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// WithCycleLocker makes cycles mutually exclusive across processes. A cycle
// that cannot take the lock returns immediately with Locked set.
func WithCycleLocker(l Locker, key string, ttl time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		if l == nil {
			return
		}
		o.locker = l
		if key != "" {
			o.lockKey = key
		}
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// FromConfig converts Config into dispatcher options.
func FromConfig(cfg Config) []DispatcherOption {
	return []DispatcherOption{
		WithMaxAttempts(cfg.MaxAttempts),
		WithBackoff(ExponentialBackoff(cfg.BackoffBase, cfg.BackoffMax)),
		WithBatchSize(cfg.BatchSize),
		WithConcurrency(cfg.Concurrency),
		WithHandlerTimeout(cfg.HandlerTimeout),
		WithLockTimeout(cfg.LockTimeout),
	}
}
