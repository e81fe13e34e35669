package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

func pendingMessage(id string, runAt time.Time) *queue.Message {
	return &queue.Message{
		ID:        id,
		DedupeKey: id,
		Type:      "FETCH",
		Payload:   "{}",
		State:     queue.StatePending,
		RunAt:     runAt,
		CreatedAt: epoch,
		UpdatedAt: epoch,
	}
}

func TestMemoryStorage_Claim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	_, err := storage.Upsert(ctx, nil, pendingMessage("m1", epoch))
	require.NoError(t, err)

	_, err = storage.Claim(ctx, "m1", epoch.Add(-time.Second), time.Time{})
	assert.ErrorIs(t, err, queue.ErrNotClaimed, "not due yet")

	msg, err := storage.Claim(ctx, "m1", epoch, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, queue.StateProcessing, msg.State)
	assert.True(t, msg.IsProcessing)
	assert.Equal(t, 1, msg.ProcessingAttempts)
	assert.Equal(t, epoch, *msg.ProcessingStartedAt)

	_, err = storage.Claim(ctx, "m1", epoch, time.Time{})
	assert.ErrorIs(t, err, queue.ErrNotClaimed, "second claim loses")

	_, err = storage.Claim(ctx, "missing", epoch, time.Time{})
	assert.ErrorIs(t, err, queue.ErrNotClaimed)
}

func TestMemoryStorage_ReclaimExpiredLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	_, err := storage.Upsert(ctx, nil, pendingMessage("m1", epoch))
	require.NoError(t, err)
	_, err = storage.Claim(ctx, "m1", epoch, time.Time{})
	require.NoError(t, err)

	later := epoch.Add(time.Hour)
	due, err := storage.FindDue(ctx, later, time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "zero staleBefore never reclaims")

	due, err = storage.FindDue(ctx, later, epoch, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "started exactly at the cutoff is still locked")

	_, err = storage.Claim(ctx, "m1", later, epoch)
	assert.ErrorIs(t, err, queue.ErrNotClaimed)

	cutoff := epoch.Add(time.Second)
	due, err = storage.FindDue(ctx, later, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, queue.StateProcessing, due[0].State)

	msg, err := storage.Claim(ctx, "m1", later, cutoff)
	require.NoError(t, err)
	assert.Equal(t, queue.StateProcessing, msg.State)
	assert.Equal(t, 2, msg.ProcessingAttempts)
	assert.Equal(t, later, *msg.ProcessingStartedAt)

	_, err = storage.Claim(ctx, "m1", later, cutoff)
	assert.ErrorIs(t, err, queue.ErrNotClaimed, "fresh lock is not reclaimed again")

	require.NoError(t, storage.Complete(ctx, "m1", later, []string{"done"}))
	due, err = storage.FindDue(ctx, later.Add(time.Hour), later.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemoryStorage_Outcomes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	_, err := storage.Upsert(ctx, nil, pendingMessage("m1", epoch))
	require.NoError(t, err)

	assert.ErrorIs(t, storage.Complete(ctx, "m1", epoch, nil), queue.ErrNotProcessing)
	assert.ErrorIs(t, storage.Fail(ctx, "missing", epoch, nil), queue.ErrMessageNotFound)

	_, err = storage.Claim(ctx, "m1", epoch, time.Time{})
	require.NoError(t, err)
	require.NoError(t, storage.Retry(ctx, "m1", epoch.Add(time.Minute), epoch, []string{"attempt 1 failed: x"}))

	msg, _ := storage.Get(ctx, nil, "m1")
	assert.Equal(t, queue.StatePending, msg.State)
	assert.Equal(t, epoch.Add(time.Minute), msg.RunAt)

	_, err = storage.Claim(ctx, "m1", epoch.Add(time.Minute), time.Time{})
	require.NoError(t, err)
	require.NoError(t, storage.Complete(ctx, "m1", epoch.Add(2*time.Minute), []string{"done"}))

	msg, _ = storage.Get(ctx, nil, "m1")
	assert.Equal(t, queue.StateCompleted, msg.State)
	assert.Equal(t, 2, msg.ProcessingAttempts)
	assert.Equal(t, []string{"attempt 1 failed: x", "done"}, msg.Log)
	assert.Equal(t, epoch.Add(2*time.Minute), *msg.ProcessingCompletedAt)
}

func TestMemoryStorage_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("pending message becomes failed", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := queue.NewMemoryStorage()
		_, err := storage.Upsert(ctx, nil, pendingMessage("m1", epoch.Add(time.Hour)))
		require.NoError(t, err)

		require.NoError(t, storage.Cancel(ctx, nil, "m1", epoch, "Canceled by user"))

		msg, _ := storage.Get(ctx, nil, "m1")
		assert.Equal(t, queue.StateFailed, msg.State)
		assert.Equal(t, []string{"Canceled by user"}, msg.Log)
		assert.Equal(t, epoch, *msg.ProcessingCompletedAt)
		assert.Zero(t, msg.ProcessingAttempts)

		due, err := storage.FindDue(ctx, epoch.Add(2*time.Hour), time.Time{}, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("processing message cannot be canceled", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := queue.NewMemoryStorage()
		_, err := storage.Upsert(ctx, nil, pendingMessage("m1", epoch))
		require.NoError(t, err)
		_, err = storage.Claim(ctx, "m1", epoch, time.Time{})
		require.NoError(t, err)

		assert.ErrorIs(t, storage.Cancel(ctx, nil, "m1", epoch, "Canceled by user"), queue.ErrNotPending)
		assert.ErrorIs(t, storage.Cancel(ctx, nil, "missing", epoch, "x"), queue.ErrMessageNotFound)
	})

	t.Run("rolled back with its transaction", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		_, err := storage.Upsert(context.Background(), nil, pendingMessage("m1", epoch))
		require.NoError(t, err)

		boom := errors.New("clear pointer failed")
		err = txn.NewMemoryManager().WithTx(context.Background(), func(ctx context.Context, tx txn.Tx) error {
			require.NoError(t, storage.Cancel(ctx, tx, "m1", epoch, "Canceled by user"))
			return boom
		})
		require.ErrorIs(t, err, boom)

		msg, _ := storage.Get(context.Background(), nil, "m1")
		assert.Equal(t, queue.StatePending, msg.State)
		assert.Empty(t, msg.Log)
	})
}

func TestMemoryStorage_FindDueLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	for _, id := range []string{"a", "b", "c"} {
		_, err := storage.Upsert(ctx, nil, pendingMessage(id, epoch))
		require.NoError(t, err)
	}

	due, err := storage.FindDue(ctx, epoch, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].ID)
	assert.Equal(t, "b", due[1].ID)
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to queue.State
		want     bool
	}{
		{queue.StatePending, queue.StateProcessing, true},
		{queue.StatePending, queue.StateFailed, true},
		{queue.StatePending, queue.StateCompleted, false},
		{queue.StateProcessing, queue.StateCompleted, true},
		{queue.StateProcessing, queue.StateFailed, true},
		{queue.StateProcessing, queue.StatePending, true},
		{queue.StateCompleted, queue.StatePending, false},
		{queue.StateFailed, queue.StatePending, false},
		{queue.StateFailed, queue.StateProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, queue.CanTransition(tt.from, tt.to))
		})
	}

	assert.True(t, queue.StateCompleted.Terminal())
	assert.True(t, queue.StateFailed.Terminal())
	assert.False(t, queue.StatePending.Terminal())
	assert.False(t, queue.State("DONE").Valid())
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	b := queue.ExponentialBackoff(30*time.Second, 3*time.Minute)
	assert.Equal(t, 30*time.Second, b(1))
	assert.Equal(t, time.Minute, b(2))
	assert.Equal(t, 2*time.Minute, b(3))
	assert.Equal(t, 3*time.Minute, b(4))
	assert.Equal(t, 3*time.Minute, b(20))
}

func TestPermanent(t *testing.T) {
	t.Parallel()

	cause := errors.New("bad input")
	err := queue.Permanent(cause)
	assert.True(t, queue.IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad input", err.Error())
	assert.NoError(t, queue.Permanent(nil))
	assert.False(t, queue.IsPermanent(cause))
}
