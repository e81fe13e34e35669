package level

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
)

// PublishHandler processes PUBLISH_LEVEL messages produced by Scheduler.
// It implements queue.FinalFailureHandler so a level whose publish gave up
// is unlocked for editing again.
type PublishHandler struct {
	p *Publisher
}

func NewPublishHandler(p *Publisher) *PublishHandler {
	return &PublishHandler{p: p}
}

func (h *PublishHandler) Type() queue.MessageType {
	return jobs.TypePublishLevel
}

func (h *PublishHandler) Handle(ctx context.Context, msg *queue.Message) error {
	var payload jobs.LevelPayload
	if err := msg.Decode(&payload); err != nil {
		return queue.Permanent(fmt.Errorf("decode %s payload: %w", jobs.TypePublishLevel, err))
	}

	p := h.p
	lvl, err := p.store.GetLevel(ctx, nil, payload.LevelID)
	switch {
	case errors.Is(err, ErrLevelNotFound):
		msg.AppendLog("level " + payload.LevelID + " not found, nothing to publish")
		return nil
	case err != nil:
		return err
	case !lvl.IsDraft:
		msg.AppendLog("level " + lvl.ID + " is already published")
		return nil
	case lvl.ScheduledQueueMessageID != msg.ID:
		msg.AppendLog("level " + lvl.ID + " is no longer scheduled by this message")
		return nil
	}

	if verr := p.validator.ValidateForPublishing(ctx, lvl, lvl.UserID, lvl.GameID); verr != nil {
		now := p.clock.Now()
		err := p.txm.WithTx(ctx, func(ctx context.Context, tx txn.Tx) error {
			if err := p.store.ClearScheduledMessage(ctx, tx, lvl.ID, msg.ID, now); err != nil {
				return err
			}
			_, err := p.producer.QueueEmailNotification(ctx, tx, "publish-failed-"+lvl.ID, jobs.EmailPayload{
				UserID:   lvl.UserID,
				Subject:  "Your level could not be published",
				Body:     fmt.Sprintf("Scheduled publishing of %q failed: %s. The level is a draft again.", lvl.Name, verr),
				Category: "publish-failed",
			})
			return err
		})
		if err != nil {
			return err
		}
		msg.AppendLog("publishLevel for " + lvl.ID + " failed validation: " + verr.Error())
		return queue.Permanent(verr)
	}

	if err := p.txm.WithTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		return p.apply(ctx, tx, lvl, p.clock.Now())
	}); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "scheduled level published",
		logger.LevelID(lvl.ID),
		logger.MessageID(msg.ID),
		logger.UserID(lvl.UserID),
	)
	msg.AppendLog("publishLevel for " + lvl.ID + " completed successfully")
	return nil
}

// OnFinalFailure clears the schedule pointer when it still refers to msg.
func (h *PublishHandler) OnFinalFailure(ctx context.Context, msg *queue.Message, cause error) error {
	var payload jobs.LevelPayload
	if err := msg.Decode(&payload); err != nil {
		return nil
	}
	err := h.p.store.ClearScheduledMessage(ctx, nil, payload.LevelID, msg.ID, h.p.clock.Now())
	if err != nil && !errors.Is(err, ErrScheduleMismatch) && !errors.Is(err, ErrLevelNotFound) {
		return err
	}
	if err == nil {
		h.p.logger.WarnContext(ctx, "scheduled publish gave up, level unlocked",
			logger.LevelID(payload.LevelID),
			logger.MessageID(msg.ID),
			logger.Error(cause),
		)
	}
	return nil
}
