package jobs

import (
	"context"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// Producer enqueues platform messages with deterministic dedupe keys.
// Every method accepts an optional transaction; nil runs outside one.
type Producer struct {
	enqueuer *queue.Enqueuer
}

// NewProducer wraps enqueuer.
func NewProducer(enqueuer *queue.Enqueuer) *Producer {
	return &Producer{enqueuer: enqueuer}
}

// PublishLevelKey is the dedupe key of the PUBLISH_LEVEL message for a level.
func PublishLevelKey(levelID string) string {
	return "publish-level-" + levelID
}

// QueuePublishLevel schedules the publish of a draft level at runAt and
// returns the message id.
func (p *Producer) QueuePublishLevel(ctx context.Context, tx txn.Tx, levelID string, runAt time.Time) (string, error) {
	return p.enqueuer.Queue(ctx, PublishLevelKey(levelID), TypePublishLevel, LevelPayload{LevelID: levelID},
		queue.WithTx(tx), queue.WithRunAt(runAt), queue.WithPriority(queue.PriorityHigh))
}

// QueueCalcPlayAttempts recomputes a level's aggregated play attempts.
func (p *Producer) QueueCalcPlayAttempts(ctx context.Context, tx txn.Tx, levelID string) (string, error) {
	return p.enqueuer.Queue(ctx, "calc-play-attempts-"+levelID, TypeCalcPlayAttempts, LevelPayload{LevelID: levelID},
		queue.WithTx(tx))
}

// QueueRefreshIndexCalculations reindexes a level's derived figures.
func (p *Producer) QueueRefreshIndexCalculations(ctx context.Context, tx txn.Tx, levelID string) (string, error) {
	return p.enqueuer.Queue(ctx, "refresh-index-calcs-"+levelID, TypeRefreshIndexCalculations, LevelPayload{LevelID: levelID},
		queue.WithTx(tx))
}

// QueueGenLevelImage renders and uploads a level thumbnail.
func (p *Producer) QueueGenLevelImage(ctx context.Context, tx txn.Tx, levelID string) (string, error) {
	return p.enqueuer.Queue(ctx, "gen-level-image-"+levelID, TypeGenLevelImage, LevelPayload{LevelID: levelID},
		queue.WithTx(tx), queue.WithPriority(queue.PriorityLow))
}

// QueueCalcCreatorCounts recounts a creator's published levels.
func (p *Producer) QueueCalcCreatorCounts(ctx context.Context, tx txn.Tx, userID string) (string, error) {
	return p.enqueuer.Queue(ctx, "calc-creator-counts-"+userID, TypeCalcCreatorCounts, UserPayload{UserID: userID},
		queue.WithTx(tx))
}

// QueueRefreshAchievements re-derives a user's achievements.
func (p *Producer) QueueRefreshAchievements(ctx context.Context, tx txn.Tx, userID string) (string, error) {
	return p.enqueuer.Queue(ctx, "refresh-achievements-"+userID, TypeRefreshAchievements, UserPayload{UserID: userID},
		queue.WithTx(tx))
}

// QueueDiscordNotification posts to a Discord channel. key scopes dedupe,
// typically "discord-<levelId>".
func (p *Producer) QueueDiscordNotification(ctx context.Context, tx txn.Tx, key string, payload DiscordPayload) (string, error) {
	return p.enqueuer.Queue(ctx, key, TypeDiscordNotification, payload,
		queue.WithTx(tx), queue.WithPriority(queue.PriorityLow))
}

// QueueFetch performs an outbound HTTP request.
func (p *Producer) QueueFetch(ctx context.Context, tx txn.Tx, key string, payload FetchPayload) (string, error) {
	return p.enqueuer.Queue(ctx, key, TypeFetch, payload, queue.WithTx(tx))
}

// QueueEmailNotification emails a user. key scopes dedupe.
func (p *Producer) QueueEmailNotification(ctx context.Context, tx txn.Tx, key string, payload EmailPayload) (string, error) {
	return p.enqueuer.Queue(ctx, key, TypeEmailNotification, payload, queue.WithTx(tx))
}

// QueuePushNotification pushes to a user's devices.
func (p *Producer) QueuePushNotification(ctx context.Context, tx txn.Tx, key string, payload PushPayload) (string, error) {
	return p.enqueuer.Queue(ctx, key, TypePushNotification, payload,
		queue.WithTx(tx), queue.WithPriority(queue.PriorityLow))
}

// BulkQueuePushNotification pushes to many users, spreading deliveries over spread.
func (p *Producer) BulkQueuePushNotification(ctx context.Context, tx txn.Tx, keyPrefix string, payloads []PushPayload, spread time.Duration) ([]string, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	items := make([]queue.BulkItem, 0, len(payloads))
	for _, pl := range payloads {
		items = append(items, queue.BulkItem{DedupeKey: keyPrefix + "-" + pl.UserID, Payload: pl})
	}
	return p.enqueuer.BulkQueue(ctx, TypePushNotification, items,
		queue.WithTx(tx), queue.WithSpread(spread), queue.WithPriority(queue.PriorityLow))
}

// BulkQueueRefreshAchievements refreshes achievements of many users.
func (p *Producer) BulkQueueRefreshAchievements(ctx context.Context, tx txn.Tx, userIDs []string, spread time.Duration) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	items := make([]queue.BulkItem, 0, len(userIDs))
	for _, id := range userIDs {
		items = append(items, queue.BulkItem{DedupeKey: "refresh-achievements-" + id, Payload: UserPayload{UserID: id}})
	}
	return p.enqueuer.BulkQueue(ctx, TypeRefreshAchievements, items, queue.WithTx(tx), queue.WithSpread(spread))
}

// BulkQueueCalcPlayAttempts recomputes play attempts for many levels.
func (p *Producer) BulkQueueCalcPlayAttempts(ctx context.Context, tx txn.Tx, levelIDs []string, spread time.Duration) ([]string, error) {
	if len(levelIDs) == 0 {
		return nil, nil
	}
	items := make([]queue.BulkItem, 0, len(levelIDs))
	for _, id := range levelIDs {
		items = append(items, queue.BulkItem{DedupeKey: "calc-play-attempts-" + id, Payload: LevelPayload{LevelID: id}})
	}
	return p.enqueuer.BulkQueue(ctx, TypeCalcPlayAttempts, items, queue.WithTx(tx), queue.WithSpread(spread))
}
