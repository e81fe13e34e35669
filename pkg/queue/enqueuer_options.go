package queue

import (
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// EnqueuerOption is a functional option for configuring an Enqueuer
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	clock           clock.Clock
	defaultPriority Priority
}

// WithEnqueuerClock sets the time source used for runAt defaults and timestamps
func WithEnqueuerClock(c clock.Clock) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithDefaultPriority sets the default priority
func WithDefaultPriority(priority Priority) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if priority.Valid() {
			o.defaultPriority = priority
		}
	}
}

// EnqueueOption is a functional option for Queue and BulkQueue
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	tx       txn.Tx
	priority Priority
	delay    time.Duration
	at       *time.Time
	spread   time.Duration
}

func (o *enqueueOptions) runAt(now time.Time) time.Time {
	if o.at != nil {
		return *o.at
	}
	return now.Add(o.delay)
}

// WithTx makes the upsert part of an open transaction
func WithTx(tx txn.Tx) EnqueueOption {
	return func(o *enqueueOptions) {
		o.tx = tx
	}
}

// WithPriority sets the priority for the message
func WithPriority(priority Priority) EnqueueOption {
	return func(o *enqueueOptions) {
		o.priority = priority
	}
}

// WithDelay sets a delay before the message can be processed
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithRunAt sets a specific time for the message to be processed.
// It takes precedence over WithDelay.
func WithRunAt(runAt time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		if !runAt.IsZero() {
			o.at = &runAt
		}
	}
}

// WithSpread distributes BulkQueue items evenly over d
func WithSpread(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.spread = d
		}
	}
}
