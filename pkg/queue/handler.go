package queue

import (
	"context"
	"errors"
	"fmt"
)

type (
	// Handler processes messages of one type.
	Handler interface {
		Type() MessageType
		Handle(ctx context.Context, msg *Message) error
	}

	// FinalFailureHandler is implemented by handlers that need to react once a
	// message of their type becomes FAILED after its last attempt.
	FinalFailureHandler interface {
		OnFinalFailure(ctx context.Context, msg *Message, cause error) error
	}

	// TaskHandlerFunc handles a message whose payload decodes into T.
	TaskHandlerFunc[T any] func(ctx context.Context, msg *Message, payload T) error
)

// NewTaskHandler builds a Handler that decodes the payload into T before
// calling fn. A payload that cannot be decoded fails permanently.
func NewTaskHandler[T any](typ MessageType, fn TaskHandlerFunc[T]) Handler {
	return &typedHandler[T]{typ: typ, fn: fn}
}

type typedHandler[T any] struct {
	typ MessageType
	fn  TaskHandlerFunc[T]
}

func (h *typedHandler[T]) Type() MessageType {
	return h.typ
}

func (h *typedHandler[T]) Handle(ctx context.Context, msg *Message) error {
	var payload T
	if err := msg.Decode(&payload); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", h.typ, err))
	}
	return h.fn(ctx, msg, payload)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{ErrPermanent, e.err} }

// Permanent marks err as non-retryable: the dispatcher moves the message to
// FAILED regardless of remaining attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
