package level

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
	"github.com/dmitrymomot/levelqueue/svc/account"
)

// CanceledByUser is appended to the log of a canceled PUBLISH_LEVEL message.
const CanceledByUser = "Canceled by user"

// ScheduledMessages is the queue access Scheduler needs to cancel a publish.
type ScheduledMessages interface {
	Get(ctx context.Context, tx txn.Tx, id string) (*queue.Message, error)
	Cancel(ctx context.Context, tx txn.Tx, id string, now time.Time, line string) error
}

// Scheduler schedules and cancels deferred publishes of drafts.
type Scheduler struct {
	*Publisher
	messages ScheduledMessages
}

func NewScheduler(p *Publisher, messages ScheduledMessages) *Scheduler {
	return &Scheduler{Publisher: p, messages: messages}
}

// CanSchedule reports the account-tier error that would stop user from
// scheduling, if any.
func (s *Scheduler) CanSchedule(user *account.User) error {
	if !s.ent.IsFullAccount(user) {
		return ErrNotFullAccount
	}
	if !s.ent.IsPro(user) {
		return ErrNotPro
	}
	return nil
}

// Schedule arranges for the caller's draft to be published at publishAt.
// Preconditions are checked in order and the first failure is returned.
// The PUBLISH_LEVEL message and the level's pointer to it are written in
// one transaction.
func (s *Scheduler) Schedule(ctx context.Context, user *account.User, levelID string, publishAt time.Time) (time.Time, error) {
	if err := s.CanSchedule(user); err != nil {
		return time.Time{}, err
	}

	now := s.clock.Now()
	publishAt = publishAt.UTC()
	if !publishAt.After(now) {
		return time.Time{}, ErrPublishAtInPast
	}
	if publishAt.After(now.AddDate(0, 1, 0)) {
		return time.Time{}, ErrPublishAtTooFar
	}

	lvl, err := s.ownedLevel(ctx, user, levelID)
	if err != nil {
		return time.Time{}, err
	}
	if !lvl.IsDraft {
		return time.Time{}, ErrNotDraft
	}
	if lvl.IsScheduled() {
		return time.Time{}, ErrAlreadyScheduled
	}
	if err := s.validator.ValidateForPublishing(ctx, lvl, user.ID, lvl.GameID); err != nil {
		return time.Time{}, err
	}

	var msgID string
	err = s.txm.WithTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		id, err := s.producer.QueuePublishLevel(ctx, tx, lvl.ID, publishAt)
		if err != nil {
			return err
		}
		msgID = id
		return s.store.SetScheduledMessage(ctx, tx, lvl.ID, id, now)
	})
	if err != nil {
		return time.Time{}, err
	}

	s.logger.InfoContext(ctx, "level publish scheduled",
		logger.LevelID(lvl.ID),
		logger.MessageID(msgID),
		logger.UserID(user.ID),
		"publish_at", publishAt,
	)
	return publishAt, nil
}

// Cancel withdraws the scheduled publish of the caller's level. The message
// is failed with CanceledByUser and the pointer cleared in one transaction;
// the level stays a draft. A publish already being processed cannot be
// canceled.
func (s *Scheduler) Cancel(ctx context.Context, user *account.User, levelID string) error {
	if !s.ent.IsFullAccount(user) {
		return ErrNotFullAccount
	}
	lvl, err := s.ownedLevel(ctx, user, levelID)
	if err != nil {
		return err
	}
	if !lvl.IsScheduled() {
		return ErrNotScheduled
	}

	msgID := lvl.ScheduledQueueMessageID
	now := s.clock.Now()
	err = s.txm.WithTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		err := s.messages.Cancel(ctx, tx, msgID, now, CanceledByUser)
		switch {
		case err == nil, errors.Is(err, queue.ErrMessageNotFound):
		case errors.Is(err, queue.ErrNotPending):
			msg, gerr := s.messages.Get(ctx, tx, msgID)
			if gerr != nil {
				return gerr
			}
			if msg.State == queue.StateProcessing {
				return ErrPublishInProgress
			}
			// Terminal message with a stale pointer: clearing it repairs the level.
		default:
			return err
		}

		if err := s.store.ClearScheduledMessage(ctx, tx, lvl.ID, msgID, now); err != nil {
			if errors.Is(err, ErrScheduleMismatch) {
				return ErrNotScheduled
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "level publish canceled",
		logger.LevelID(lvl.ID),
		logger.MessageID(msgID),
		logger.UserID(user.ID),
	)
	return nil
}
