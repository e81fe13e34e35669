// Package queue is a durable, repository-agnostic message queue with
// deduplicated enqueue, delayed execution and a cycle-based dispatcher.
//
// The package is organised around four components:
//
//   - Enqueuer: upserts messages keyed by (dedupe key, type, payload)
//   - Dispatcher: runs one processing cycle: find due, claim, handle, record
//   - Worker: in-process poll loop that drives the Dispatcher
//   - Scheduler: runs periodic jobs on calendar-like Schedules
//
// Components talk to persistence only through small repository interfaces.
// MemoryStorage implements all of them for tests and local development;
// production backends live in the mongostore and pgstore subpackages.
//
// # Lifecycle
//
// A message is created PENDING. A dispatcher claims it with a single
// conditional update (PENDING and due → PROCESSING), so two dispatchers never
// run the same message. Success moves it to COMPLETED. A failure either puts
// it back to PENDING with a backoff delay or, once attempts are exhausted or
// the handler returned a Permanent error, to FAILED. A PENDING message can be
// canceled, which moves it straight to FAILED. COMPLETED and FAILED are
// terminal; messages are never deleted.
//
// A message left PROCESSING longer than the lock timeout (its worker died or
// lost the database) is due again. Reclaiming it counts as an attempt.
//
// # Usage
//
//	storage := queue.NewMemoryStorage()
//	enqueuer, _ := queue.NewEnqueuer(storage)
//
//	id, err := enqueuer.Queue(ctx, "publish-level-42", "PUBLISH_LEVEL",
//		map[string]string{"levelId": "42"},
//		queue.WithRunAt(publishAt),
//		queue.WithTx(tx),
//	)
//
//	dispatcher, _ := queue.NewDispatcher(storage, queue.WithMaxAttempts(3))
//	_ = dispatcher.RegisterHandlers(
//		queue.NewTaskHandler("PUBLISH_LEVEL", publishLevel),
//	)
//	result, err := dispatcher.ProcessQueueMessages(ctx)
//
// # Error Handling
//
// Package-level sentinel errors (ErrNotClaimed, ErrNotPending,
// ErrMessageNotFound, ...) are checked with errors.Is. Handlers wrap
// non-retryable failures with Permanent.
package queue
