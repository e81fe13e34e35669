package level

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/slug"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
	"github.com/dmitrymomot/levelqueue/svc/account"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
)

// Publisher turns drafts into published levels. It owns the publish side
// effects shared by immediate and scheduled publishing.
type Publisher struct {
	store     Store
	txm       txn.Manager
	producer  *jobs.Producer
	accounts  account.Store
	validator PublishValidator
	ent       account.Entitlements
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config
}

func NewPublisher(store Store, txm txn.Manager, producer *jobs.Producer, accounts account.Store, opts ...Option) *Publisher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Publisher{
		store:     store,
		txm:       txm,
		producer:  producer,
		accounts:  accounts,
		validator: o.validator,
		ent:       o.entitlements,
		clock:     o.clock,
		logger:    o.logger.With(logger.Component("publisher")),
		cfg:       o.cfg,
	}
}

// CreateDraft stores a new draft owned by user.
func (p *Publisher) CreateDraft(ctx context.Context, user *account.User, gameID, name string, data []string) (*Level, error) {
	if !p.ent.IsFullAccount(user) {
		return nil, ErrNotFullAccount
	}

	now := p.clock.Now()
	lvl := &Level{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		GameID:    gameID,
		Name:      strings.TrimSpace(name),
		Slug:      slug.Path(user.Name, name),
		Data:      data,
		Height:    len(data),
		IsDraft:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(data) > 0 {
		lvl.Width = len(data[0])
	}
	if err := p.store.CreateLevel(ctx, nil, lvl); err != nil {
		return nil, err
	}
	return lvl, nil
}

// EditableLevel returns the caller's draft for editing. Scheduled levels
// are locked and yield ErrLevelScheduled.
func (p *Publisher) EditableLevel(ctx context.Context, user *account.User, levelID string) (*Level, error) {
	if !p.ent.IsFullAccount(user) {
		return nil, ErrNotFullAccount
	}
	lvl, err := p.ownedLevel(ctx, user, levelID)
	if err != nil {
		return nil, err
	}
	if !lvl.IsDraft {
		return nil, ErrNotDraft
	}
	if lvl.IsScheduled() {
		return nil, ErrLevelScheduled
	}
	return lvl, nil
}

// UpdateDraft edits the caller's draft unless a publish is scheduled.
func (p *Publisher) UpdateDraft(ctx context.Context, user *account.User, levelID string, upd DraftUpdate) (*Level, error) {
	if _, err := p.EditableLevel(ctx, user, levelID); err != nil {
		return nil, err
	}
	return p.store.UpdateDraft(ctx, nil, levelID, upd, p.clock.Now())
}

// PublishNow publishes the caller's draft immediately.
func (p *Publisher) PublishNow(ctx context.Context, user *account.User, levelID string) (*Level, error) {
	if !p.ent.IsFullAccount(user) {
		return nil, ErrNotFullAccount
	}
	lvl, err := p.ownedLevel(ctx, user, levelID)
	if err != nil {
		return nil, err
	}
	if !lvl.IsDraft {
		return nil, ErrNotDraft
	}
	if lvl.IsScheduled() {
		return nil, ErrAlreadyScheduled
	}
	if err := p.validator.ValidateForPublishing(ctx, lvl, user.ID, lvl.GameID); err != nil {
		return nil, err
	}

	now := p.clock.Now()
	if err := p.txm.WithTx(ctx, func(ctx context.Context, tx txn.Tx) error {
		return p.apply(ctx, tx, lvl, now)
	}); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "level published", logger.LevelID(lvl.ID), logger.UserID(user.ID))
	return p.store.GetLevel(ctx, nil, lvl.ID)
}

// apply performs every publish side effect inside tx. It is the only
// publish path; PublishNow and the PUBLISH_LEVEL handler both call it.
func (p *Publisher) apply(ctx context.Context, tx txn.Tx, lvl *Level, now time.Time) error {
	if err := p.store.MarkPublished(ctx, tx, lvl.ID, now); err != nil {
		return err
	}

	if err := p.store.CreateRecord(ctx, tx, &Record{
		ID:        uuid.NewString(),
		LevelID:   lvl.ID,
		UserID:    lvl.UserID,
		Moves:     lvl.LeastMoves,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("create author record: %w", err)
	}
	if err := p.store.UpsertStat(ctx, tx, &Stat{
		LevelID:   lvl.ID,
		UserID:    lvl.UserID,
		Attempts:  1,
		Completed: true,
		BestMoves: lvl.LeastMoves,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("create author stat: %w", err)
	}

	return p.queueFollowUps(ctx, tx, lvl)
}

func (p *Publisher) queueFollowUps(ctx context.Context, tx txn.Tx, lvl *Level) error {
	author := p.authorName(ctx, lvl.UserID)
	levelURL := strings.TrimSuffix(p.cfg.SiteURL, "/") + "/level/" + lvl.Slug

	steps := []func() error{
		func() error { _, err := p.producer.QueueRefreshIndexCalculations(ctx, tx, lvl.ID); return err },
		func() error { _, err := p.producer.QueueCalcPlayAttempts(ctx, tx, lvl.ID); return err },
		func() error { _, err := p.producer.QueueCalcCreatorCounts(ctx, tx, lvl.UserID); return err },
		func() error { _, err := p.producer.QueueGenLevelImage(ctx, tx, lvl.ID); return err },
		func() error { _, err := p.producer.QueueRefreshAchievements(ctx, tx, lvl.UserID); return err },
		func() error {
			_, err := p.producer.QueueDiscordNotification(ctx, tx, "discord-level-"+lvl.ID, jobs.DiscordPayload{
				Channel: p.cfg.DiscordChannel,
				Content: fmt.Sprintf("%s published a new level: **%s** %s", author, lvl.Name, levelURL),
			})
			return err
		},
		func() error {
			if p.cfg.RevalidateURL == "" {
				return nil
			}
			body, err := json.Marshal(map[string][]string{
				"paths": {"/level/" + lvl.Slug, "/profile/" + lvl.UserID},
			})
			if err != nil {
				return err
			}
			_, err = p.producer.QueueFetch(ctx, tx, "revalidate-level-"+lvl.ID, jobs.FetchPayload{
				URL:    p.cfg.RevalidateURL,
				Method: http.MethodPost,
				Body:   string(body),
				Header: map[string]string{"Content-Type": "application/json"},
			})
			return err
		},
		func() error { return p.notifyFollowers(ctx, tx, lvl, author, levelURL) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("queue publish follow-ups for %s: %w", lvl.ID, err)
		}
	}
	return nil
}

func (p *Publisher) notifyFollowers(ctx context.Context, tx txn.Tx, lvl *Level, author, levelURL string) error {
	followers, err := p.accounts.ListFollowerIDs(ctx, lvl.UserID)
	if err != nil {
		return err
	}
	payloads := make([]jobs.PushPayload, 0, len(followers))
	for _, id := range followers {
		payloads = append(payloads, jobs.PushPayload{
			UserID: id,
			Title:  "New level from " + author,
			Body:   lvl.Name,
			URL:    levelURL,
		})
	}
	_, err = p.producer.BulkQueuePushNotification(ctx, tx, "new-level-"+lvl.ID, payloads, p.cfg.FollowerPushSpread)
	return err
}

func (p *Publisher) authorName(ctx context.Context, userID string) string {
	u, err := p.accounts.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, account.ErrUserNotFound) {
			p.logger.WarnContext(ctx, "failed to load level author", logger.UserID(userID), logger.Error(err))
		}
		return "Someone"
	}
	return u.Name
}

// ownedLevel loads levelID and hides levels owned by someone else.
func (p *Publisher) ownedLevel(ctx context.Context, user *account.User, levelID string) (*Level, error) {
	lvl, err := p.store.GetLevel(ctx, nil, levelID)
	if err != nil {
		return nil, err
	}
	if lvl.UserID != user.ID {
		return nil, ErrLevelNotFound
	}
	return lvl, nil
}
