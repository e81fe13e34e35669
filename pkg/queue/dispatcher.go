package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
)

// DispatcherRepository defines the persistence operations of a dispatch cycle.
type DispatcherRepository interface {
	// FindDue returns up to limit messages that Message.IsDue accepts:
	// PENDING with runAt <= now, or PROCESSING with processingStartedAt
	// before staleBefore. Order is priority desc, runAt asc, createdAt asc.
	FindDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*Message, error)

	// Claim moves a due message to PROCESSING in one conditional update,
	// stamping processingStartedAt and incrementing the attempt counter. A
	// stale PROCESSING message is reclaimed the same way. It returns
	// ErrNotClaimed when the message is not due under the same predicate.
	Claim(ctx context.Context, id string, now, staleBefore time.Time) (*Message, error)

	// Complete moves a PROCESSING message to COMPLETED.
	Complete(ctx context.Context, id string, now time.Time, lines []string) error

	// Retry moves a PROCESSING message back to PENDING with a new runAt.
	Retry(ctx context.Context, id string, runAt, now time.Time, lines []string) error

	// Fail moves a PROCESSING message to FAILED.
	Fail(ctx context.Context, id string, now time.Time, lines []string) error
}

// Locker guards a dispatch cycle across processes.
type Locker interface {
	// TryLock takes key for ttl. It reports false without error when the key is held elsewhere.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// CycleResult summarises one dispatch cycle.
type CycleResult struct {
	Found     int  `json:"found"`
	Claimed   int  `json:"claimed"`
	Completed int  `json:"completed"`
	Retried   int  `json:"retried"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Locked    bool `json:"locked,omitempty"`
}

// Dispatcher runs dispatch cycles against a DispatcherRepository.
type Dispatcher struct {
	repo     DispatcherRepository
	handlers map[MessageType]Handler
	mu       sync.RWMutex

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

// NewDispatcher creates a dispatcher. Defaults: 3 attempts, exponential
// backoff from 30s capped at 10m, batches of 50, sequential processing,
// messages reclaimed after 10m in PROCESSING. The lock timeout must exceed
// the handler timeout, otherwise a slow but live handler would be run twice.
func NewDispatcher(repo DispatcherRepository, opts ...DispatcherOption) (*Dispatcher, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &dispatcherOptions{
		clock:          clock.Real(),
		logger:         slog.Default(),
		maxAttempts:    3,
		backoff:        ExponentialBackoff(30*time.Second, 10*time.Minute),
		batchSize:      50,
		concurrency:    1,
		handlerTimeout: 2 * time.Minute,
		lockTimeout:    10 * time.Minute,
		writeTimeout:   10 * time.Second,
		lockKey:        "levelqueue:dispatch",
		lockTTL:        5 * time.Minute,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.lockTimeout <= options.handlerTimeout {
		return nil, fmt.Errorf("%w: lock timeout %s, handler timeout %s",
			ErrLockTimeoutTooShort, options.lockTimeout, options.handlerTimeout)
	}

	return &Dispatcher{
		repo:           repo,
		handlers:       make(map[MessageType]Handler),
		clock:          options.clock,
		logger:         options.logger.With(logger.Component("dispatcher")),
		maxAttempts:    options.maxAttempts,
		backoff:        options.backoff,
		batchSize:      options.batchSize,
		concurrency:    options.concurrency,
		handlerTimeout: options.handlerTimeout,
		lockTimeout:    options.lockTimeout,
		writeTimeout:   options.writeTimeout,
		locker:         options.locker,
		lockKey:        options.lockKey,
		lockTTL:        options.lockTTL,
	}, nil
}

// RegisterHandlers adds handlers to the registry. Registering a second
// handler for a type is an error.
func (d *Dispatcher) RegisterHandlers(handlers ...Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		if _, exists := d.handlers[h.Type()]; exists {
			return fmt.Errorf("%w: %s", ErrHandlerAlreadyRegistered, h.Type())
		}
		d.handlers[h.Type()] = h
	}
	return nil
}

// HandlerTypes lists the registered message types.
func (d *Dispatcher) HandlerTypes() []MessageType {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]MessageType, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	return types
}

// ProcessQueueMessages runs one cycle: it loads due messages, claims each
// one, runs its handler and records the outcome. Handler errors and panics
// are contained per message; only repository errors abort the cycle.
func (d *Dispatcher) ProcessQueueMessages(ctx context.Context) (CycleResult, error) {
	var res CycleResult

	if d.locker != nil {
		unlock, ok, err := d.locker.TryLock(ctx, d.lockKey, d.lockTTL)
		if err != nil {
			return res, fmt.Errorf("acquire dispatch lock: %w", err)
		}
		if !ok {
			d.logger.DebugContext(ctx, "dispatch cycle skipped, lock held elsewhere")
			res.Locked = true
			return res, nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				d.logger.WarnContext(ctx, "failed to release dispatch lock", logger.Error(err))
			}
		}()
	}

	now := d.clock.Now()
	staleBefore := now.Add(-d.lockTimeout)
	due, err := d.repo.FindDue(ctx, now, staleBefore, d.batchSize)
	if err != nil {
		return res, fmt.Errorf("find due messages: %w", err)
	}
	res.Found = len(due)
	if len(due) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	record := func(fn func(r *CycleResult)) {
		mu.Lock()
		fn(&res)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, m := range due {
		g.Go(func() error {
			return d.process(gctx, m, now, staleBefore, record)
		})
	}
	err = g.Wait()

	d.logger.InfoContext(ctx, "dispatch cycle finished",
		slog.Int("found", res.Found),
		slog.Int("claimed", res.Claimed),
		slog.Int("completed", res.Completed),
		slog.Int("retried", res.Retried),
		slog.Int("failed", res.Failed),
		slog.Int("skipped", res.Skipped),
		logger.Duration(d.clock.Now().Sub(now)),
		logger.Error(err))

	return res, err
}

func (d *Dispatcher) process(ctx context.Context, due *Message, now, staleBefore time.Time, record func(func(*CycleResult))) error {
	id := due.ID
	msg, err := d.repo.Claim(ctx, id, now, staleBefore)
	if errors.Is(err, ErrNotClaimed) {
		d.logger.DebugContext(ctx, "message already claimed or not due", logger.MessageID(id))
		record(func(r *CycleResult) { r.Skipped++ })
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim message %s: %w", id, err)
	}
	record(func(r *CycleResult) { r.Claimed++ })

	log := d.logger.With(
		logger.MessageID(msg.ID),
		logger.MessageType(msg.Type),
		logger.Attempt(msg.ProcessingAttempts),
	)

	d.mu.RLock()
	h, ok := d.handlers[msg.Type]
	d.mu.RUnlock()

	// Outcomes are written even when the cycle is canceled mid-handler, so a
	// shutdown does not strand the message in PROCESSING.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.writeTimeout)
	defer cancel()

	if due.State == StateProcessing {
		log.WarnContext(ctx, "reclaimed message after lock timeout")
		msg.AppendLog(fmt.Sprintf("attempt %d abandoned, lock expired", msg.ProcessingAttempts-1))
		if msg.ProcessingAttempts > d.maxAttempts {
			herr := fmt.Errorf("%w: %d attempts", ErrAttemptsExhausted, msg.ProcessingAttempts-1)
			msg.AppendLog(herr.Error())
			if err := d.repo.Fail(wctx, msg.ID, d.clock.Now(), msg.takePending()); err != nil {
				return fmt.Errorf("fail message %s: %w", msg.ID, err)
			}
			log.ErrorContext(ctx, "message failed", logger.Error(herr))
			record(func(r *CycleResult) { r.Failed++ })
			if ok {
				d.notifyFinalFailure(ctx, h, msg, herr, log)
			}
			return nil
		}
	}

	if !ok {
		log.ErrorContext(ctx, "no handler registered for message type")
		msg.AppendLog(fmt.Sprintf("%s: %s", ErrHandlerNotFound, msg.Type))
		if err := d.repo.Fail(wctx, msg.ID, d.clock.Now(), msg.takePending()); err != nil {
			return fmt.Errorf("fail message %s: %w", msg.ID, err)
		}
		record(func(r *CycleResult) { r.Failed++ })
		return nil
	}

	logged := len(msg.pending)
	start := d.clock.Now()
	herr := d.invoke(ctx, h, msg)
	finished := d.clock.Now()

	if herr == nil {
		if len(msg.pending) == logged {
			msg.AppendLog(fmt.Sprintf("%s processed successfully", msg.Type))
		}
		if err := d.repo.Complete(wctx, msg.ID, finished, msg.takePending()); err != nil {
			return fmt.Errorf("complete message %s: %w", msg.ID, err)
		}
		log.InfoContext(ctx, "message completed", logger.Duration(finished.Sub(start)))
		record(func(r *CycleResult) { r.Completed++ })
		return nil
	}

	msg.AppendLog(fmt.Sprintf("attempt %d failed: %v", msg.ProcessingAttempts, herr))

	if IsPermanent(herr) || msg.ProcessingAttempts >= d.maxAttempts {
		if err := d.repo.Fail(wctx, msg.ID, finished, msg.takePending()); err != nil {
			return fmt.Errorf("fail message %s: %w", msg.ID, err)
		}
		log.ErrorContext(ctx, "message failed", logger.Error(herr), logger.Duration(finished.Sub(start)))
		record(func(r *CycleResult) { r.Failed++ })
		d.notifyFinalFailure(ctx, h, msg, herr, log)
		return nil
	}

	runAt := finished.Add(d.backoff(msg.ProcessingAttempts))
	if err := d.repo.Retry(wctx, msg.ID, runAt, finished, msg.takePending()); err != nil {
		return fmt.Errorf("reschedule message %s: %w", msg.ID, err)
	}
	log.WarnContext(ctx, "message attempt failed, retry scheduled",
		logger.Error(herr),
		slog.Time("run_at", runAt))
	record(func(r *CycleResult) { r.Retried++ })
	return nil
}

// invoke runs the handler with a timeout detached from the caller's
// cancellation and turns a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, msg *Message) (err error) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()

	return h.Handle(hctx, msg)
}

func (d *Dispatcher) notifyFinalFailure(ctx context.Context, h Handler, msg *Message, cause error, log *slog.Logger) {
	ff, ok := h.(FinalFailureHandler)
	if !ok {
		return
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "final failure hook panicked", slog.Any("panic", r))
		}
	}()

	if err := ff.OnFinalFailure(hctx, msg, cause); err != nil {
		log.ErrorContext(ctx, "final failure hook failed", logger.Error(err))
	}
}
