package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidPriority is returned when priority is outside valid range
	ErrInvalidPriority = errors.New("priority must be between 0 and 100")

	// ErrInvalidType is returned when a message type is empty
	ErrInvalidType = errors.New("message type cannot be empty")

	// ErrNoItemsToEnqueue is returned when bulk enqueue is called with empty items
	ErrNoItemsToEnqueue = errors.New("no items to enqueue")

	// ErrEnqueueFailed wraps datastore failures during enqueue
	ErrEnqueueFailed = errors.New("failed to enqueue message")

	// ErrMessageNotFound is returned when a message does not exist
	ErrMessageNotFound = errors.New("queue message not found")

	// ErrNotClaimed is returned when a claim lost the race or the message is no longer due
	ErrNotClaimed = errors.New("queue message was not claimed")

	// ErrNotPending is returned when a cancel targets a message that left PENDING
	ErrNotPending = errors.New("queue message is not pending")

	// ErrNotProcessing is returned when an outcome is recorded for a message not in PROCESSING
	ErrNotProcessing = errors.New("queue message is not processing")

	// ErrLockTimeoutTooShort is returned when the lock timeout does not exceed the handler timeout
	ErrLockTimeoutTooShort = errors.New("lock timeout must exceed handler timeout")

	// ErrAttemptsExhausted fails a reclaimed message that already used every attempt
	ErrAttemptsExhausted = errors.New("queue message exhausted its attempts")

	// ErrHandlerNotFound is returned when no handler is registered for a message type
	ErrHandlerNotFound = errors.New("no handler registered for message type")

	// ErrNoHandlers is returned when a dispatcher has no handlers registered
	ErrNoHandlers = errors.New("no message handlers registered")

	// ErrHandlerAlreadyRegistered is returned when two handlers claim the same type
	ErrHandlerAlreadyRegistered = errors.New("handler already registered for message type")

	// ErrPermanent marks handler errors that must not be retried
	ErrPermanent = errors.New("permanent failure")

	// ErrTaskAlreadyRegistered is returned when trying to register a duplicate periodic task
	ErrTaskAlreadyRegistered = errors.New("task already registered")

	// ErrSchedulerNotConfigured is returned when scheduler has no tasks
	ErrSchedulerNotConfigured = errors.New("scheduler has no registered tasks")

	// ErrWorkerStarted is returned when Start is called twice
	ErrWorkerStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned when Stop is called before Start
	ErrWorkerNotStarted = errors.New("worker not started")
)
