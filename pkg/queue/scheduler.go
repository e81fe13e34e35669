package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
)

// PeriodicFunc is invoked when a periodic task is due. at is the slot the run
// belongs to. Periodic tasks usually only enqueue messages, so running the
// same slot on several instances is harmless thanks to dedupe keys.
type PeriodicFunc func(ctx context.Context, at time.Time) error

// Scheduler runs periodic tasks on their Schedules
type Scheduler struct {
	mu       sync.Mutex
	tasks    map[string]*periodicTask
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

type periodicTask struct {
	name     string
	schedule Schedule
	fn       PeriodicFunc
	next     time.Time
}

// SchedulerOption is a functional option for configuring a scheduler
type SchedulerOption func(*Scheduler)

// WithCheckInterval sets how often scheduler checks for due tasks
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerClock sets the time source
func WithSchedulerClock(c clock.Clock) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSchedulerLogger sets the logger for the scheduler
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScheduler creates a new periodic task scheduler
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		tasks:    make(map[string]*periodicTask),
		clock:    clock.Real(),
		interval: 30 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("scheduler"))
	return s
}

// AddTask registers a periodic task. Its first run is the schedule's next
// slot after registration.
func (s *Scheduler) AddTask(name string, schedule Schedule, fn PeriodicFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return ErrTaskAlreadyRegistered
	}

	task := &periodicTask{
		name:     name,
		schedule: schedule,
		fn:       fn,
		next:     schedule.Next(s.clock.Now()),
	}
	s.tasks[name] = task

	s.logger.Info("registered periodic task",
		slog.String("task_name", name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", task.next))
	return nil
}

// ListTasks returns the registered task names in alphabetical order
func (s *Scheduler) ListTasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tick runs every task whose slot has arrived and advances it. It returns
// the number of tasks run.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	due := make([]*periodicTask, 0, len(s.tasks))
	slots := make([]time.Time, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.next.After(now) {
			continue
		}
		due = append(due, t)
		slots = append(slots, t.next)
		t.next = t.schedule.Next(now)
	}
	s.mu.Unlock()

	for i, t := range due {
		if err := t.fn(ctx, slots[i]); err != nil {
			s.logger.ErrorContext(ctx, "periodic task failed",
				slog.String("task_name", t.name),
				logger.Error(err))
			continue
		}
		s.logger.InfoContext(ctx, "periodic task ran",
			slog.String("task_name", t.name),
			slog.Time("slot", slots[i]))
	}
	return len(due)
}

// Start checks for due tasks until ctx is canceled
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.tasks)
	s.mu.Unlock()
	if n == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Run returns a function suitable for errgroup
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		return s.Start(ctx)
	}
}
