package level

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
)

type threshold struct {
	min int
	typ AchievementType
}

var (
	creatorThresholds = []threshold{
		{1, AchievementCreator1},
		{10, AchievementCreator10},
		{100, AchievementCreator100},
	}
	completedThresholds = []threshold{
		{10, AchievementCompleted10},
		{100, AchievementCompleted100},
		{500, AchievementCompleted500},
	}
)

func reached(n int, ts []threshold) []AchievementType {
	var out []AchievementType
	for _, t := range ts {
		if n >= t.min {
			out = append(out, t.typ)
		}
	}
	return out
}

// StatsHandlers returns the handlers that maintain counters derived from
// published levels and play data.
func (p *Publisher) StatsHandlers() []queue.Handler {
	return []queue.Handler{
		queue.NewTaskHandler(jobs.TypeCalcPlayAttempts, p.calcPlayAttempts),
		queue.NewTaskHandler(jobs.TypeCalcCreatorCounts, p.calcCreatorCounts),
		queue.NewTaskHandler(jobs.TypeRefreshAchievements, p.refreshAchievements),
	}
}

// RecalcPlayAttempts queues CALC_PLAY_ATTEMPTS for every published level,
// spreading runAt over cfg.RecalcSpread. It returns the message ids.
func (p *Publisher) RecalcPlayAttempts(ctx context.Context) ([]string, error) {
	var ids []string
	err := p.txm.WithTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		levelIDs, err := p.store.ListPublishedLevelIDs(ctx, tx)
		if err != nil {
			return err
		}
		ids, err = p.producer.BulkQueueCalcPlayAttempts(ctx, tx, levelIDs, p.cfg.RecalcSpread)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "play attempt recalculation queued", slog.Int("levels", len(ids)))
	return ids, nil
}

func (p *Publisher) calcPlayAttempts(ctx context.Context, msg *queue.Message, payload jobs.LevelPayload) error {
	sum, err := p.store.SumPlayAttempts(ctx, nil, payload.LevelID)
	if err != nil {
		return err
	}
	if err := p.store.SetCalcPlayAttempts(ctx, nil, payload.LevelID, sum, p.clock.Now()); err != nil {
		if errors.Is(err, ErrLevelNotFound) {
			return queue.Permanent(err)
		}
		return err
	}
	msg.AppendLog("calcPlayAttempts for " + payload.LevelID + " = " + strconv.Itoa(sum))
	return nil
}

func (p *Publisher) calcCreatorCounts(ctx context.Context, msg *queue.Message, payload jobs.UserPayload) error {
	created, err := p.store.CountPublishedByUser(ctx, nil, payload.UserID)
	if err != nil {
		return err
	}
	completed, err := p.store.CountCompletedByUser(ctx, nil, payload.UserID)
	if err != nil {
		return err
	}
	if err := p.store.SaveUserStats(ctx, nil, &UserStats{
		UserID:          payload.UserID,
		LevelsCreated:   created,
		LevelsCompleted: completed,
		UpdatedAt:       p.clock.Now(),
	}); err != nil {
		return err
	}
	msg.AppendLog(fmt.Sprintf("creator counts for %s: created=%d completed=%d", payload.UserID, created, completed))
	return nil
}

// refreshAchievements grants every achievement whose threshold the user has
// reached and pushes a notification for each new one.
func (p *Publisher) refreshAchievements(ctx context.Context, msg *queue.Message, payload jobs.UserPayload) error {
	created, err := p.store.CountPublishedByUser(ctx, nil, payload.UserID)
	if err != nil {
		return err
	}
	completed, err := p.store.CountCompletedByUser(ctx, nil, payload.UserID)
	if err != nil {
		return err
	}
	earned := append(reached(created, creatorThresholds), reached(completed, completedThresholds)...)
	if len(earned) == 0 {
		return nil
	}

	var added []AchievementType
	err = p.txm.WithTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		var err error
		added, err = p.store.AddAchievements(ctx, tx, payload.UserID, earned, p.clock.Now())
		if err != nil {
			return err
		}
		for _, typ := range added {
			if _, err := p.producer.QueuePushNotification(ctx, tx,
				"achievement-"+payload.UserID+"-"+string(typ),
				jobs.PushPayload{
					UserID: payload.UserID,
					Title:  "Achievement unlocked",
					Body:   achievementTitle(typ),
				}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, typ := range added {
		msg.AppendLog("achievement " + string(typ) + " granted to " + payload.UserID)
	}
	if len(added) > 0 {
		p.logger.InfoContext(ctx, "achievements granted", logger.UserID(payload.UserID), "count", len(added))
	}
	return nil
}

func achievementTitle(t AchievementType) string {
	switch t {
	case AchievementCreator1:
		return "Published your first level"
	case AchievementCreator10:
		return "Published 10 levels"
	case AchievementCreator100:
		return "Published 100 levels"
	case AchievementCompleted10:
		return "Completed 10 levels"
	case AchievementCompleted100:
		return "Completed 100 levels"
	case AchievementCompleted500:
		return "Completed 500 levels"
	}
	return string(t)
}
