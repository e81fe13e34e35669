package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// EnqueuerRepository defines the interface for message creation
type EnqueuerRepository interface {
	// Upsert stores msg unless a PENDING message with the same dedupe key,
	// type and payload exists, in which case that message's runAt, priority
	// and updatedAt are overwritten. It returns the id of the stored message.
	// Messages without a dedupe key are always inserted.
	Upsert(ctx context.Context, tx txn.Tx, msg *Message) (string, error)
}

// BulkItem is one entry of a BulkQueue call.
type BulkItem struct {
	DedupeKey string
	Payload   any
}

// Enqueuer handles message enqueueing
type Enqueuer struct {
	repo            EnqueuerRepository
	clock           clock.Clock
	defaultPriority Priority
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		clock:           clock.Real(),
		defaultPriority: PriorityDefault,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:            repo,
		clock:           options.clock,
		defaultPriority: options.defaultPriority,
	}, nil
}

// Queue upserts a single message and returns its id.
func (e *Enqueuer) Queue(ctx context.Context, dedupeKey string, typ MessageType, payload any, opts ...EnqueueOption) (string, error) {
	options := e.applyOptions(opts)
	if err := e.validate(typ, options); err != nil {
		return "", err
	}

	msg, err := e.buildMessage(dedupeKey, typ, payload, options.runAt(e.clock.Now()), options)
	if err != nil {
		return "", err
	}

	id, err := e.repo.Upsert(ctx, options.tx, msg)
	if err != nil {
		return "", errors.Join(ErrEnqueueFailed, fmt.Errorf("upsert %s message %q: %w", typ, dedupeKey, err))
	}
	return id, nil
}

// BulkQueue upserts one message per item. With WithSpread(d) the i-th of N
// items runs at base + i*(d/N), where base is the requested run time or now.
func (e *Enqueuer) BulkQueue(ctx context.Context, typ MessageType, items []BulkItem, opts ...EnqueueOption) ([]string, error) {
	if len(items) == 0 {
		return nil, ErrNoItemsToEnqueue
	}

	options := e.applyOptions(opts)
	if err := e.validate(typ, options); err != nil {
		return nil, err
	}

	base := options.runAt(e.clock.Now())
	var step time.Duration
	if options.spread > 0 {
		step = options.spread / time.Duration(len(items))
	}

	ids := make([]string, 0, len(items))
	for i, item := range items {
		msg, err := e.buildMessage(item.DedupeKey, typ, item.Payload, base.Add(time.Duration(i)*step), options)
		if err != nil {
			return ids, err
		}
		id, err := e.repo.Upsert(ctx, options.tx, msg)
		if err != nil {
			return ids, errors.Join(ErrEnqueueFailed, fmt.Errorf("upsert %s message %q: %w", typ, item.DedupeKey, err))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (e *Enqueuer) applyOptions(opts []EnqueueOption) *enqueueOptions {
	options := &enqueueOptions{priority: e.defaultPriority}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func (e *Enqueuer) validate(typ MessageType, options *enqueueOptions) error {
	if typ == "" {
		return ErrInvalidType
	}
	if !options.priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

// buildMessage constructs a PENDING Message from payload and options
func (e *Enqueuer) buildMessage(dedupeKey string, typ MessageType, payload any, runAt time.Time, options *enqueueOptions) (*Message, error) {
	if payload == nil {
		return nil, ErrPayloadNil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	now := e.clock.Now()
	return &Message{
		ID:        uuid.NewString(),
		DedupeKey: dedupeKey,
		Type:      typ,
		Payload:   string(body),
		Priority:  options.priority,
		State:     StatePending,
		RunAt:     runAt.UTC(),
		Log:       []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
