package queue

import (
	"context"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// Repository is the full persistence contract implemented by every backend.
type Repository interface {
	EnqueuerRepository
	DispatcherRepository

	// Get loads a message by id, or returns ErrMessageNotFound.
	Get(ctx context.Context, tx txn.Tx, id string) (*Message, error)

	// Cancel moves a PENDING message to FAILED, stamping
	// processingCompletedAt and appending line to its log. It returns
	// ErrNotPending when the message already left PENDING.
	Cancel(ctx context.Context, tx txn.Tx, id string, now time.Time, line string) error
}
