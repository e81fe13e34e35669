package level

import (
	"context"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// Store persists levels and the play data derived from them. Mutations
// that guard the publish workflow are conditional and report the failed
// condition as an error.
type Store interface {
	GetLevel(ctx context.Context, tx txn.Tx, id string) (*Level, error)
	CreateLevel(ctx context.Context, tx txn.Tx, lvl *Level) error

	// UpdateDraft applies upd to a draft without a scheduled publish.
	// It returns ErrNotDraft or ErrLevelScheduled otherwise.
	UpdateDraft(ctx context.Context, tx txn.Tx, id string, upd DraftUpdate, now time.Time) (*Level, error)

	// SetScheduledMessage stamps msgID on a draft with no pointer set.
	// It returns ErrNotDraft or ErrAlreadyScheduled otherwise.
	SetScheduledMessage(ctx context.Context, tx txn.Tx, id, msgID string, now time.Time) error

	// ClearScheduledMessage unsets the pointer only while it equals msgID,
	// returning ErrScheduleMismatch otherwise.
	ClearScheduledMessage(ctx context.Context, tx txn.Tx, id, msgID string, now time.Time) error

	// MarkPublished flips a draft to published and clears its pointer.
	// It returns ErrNotDraft when the level is already published.
	MarkPublished(ctx context.Context, tx txn.Tx, id string, now time.Time) error

	SetCalcPlayAttempts(ctx context.Context, tx txn.Tx, id string, n int, now time.Time) error
	SetImageURL(ctx context.Context, tx txn.Tx, id, url string, now time.Time) error
	ListPublishedLevelIDs(ctx context.Context, tx txn.Tx) ([]string, error)
	CountPublishedByUser(ctx context.Context, tx txn.Tx, userID string) (int, error)

	CreateRecord(ctx context.Context, tx txn.Tx, rec *Record) error
	ListRecords(ctx context.Context, tx txn.Tx, levelID string) ([]*Record, error)

	// UpsertStat inserts st or replaces the stored stat for (levelID, userID).
	UpsertStat(ctx context.Context, tx txn.Tx, st *Stat) error
	GetStat(ctx context.Context, tx txn.Tx, levelID, userID string) (*Stat, error)
	SumPlayAttempts(ctx context.Context, tx txn.Tx, levelID string) (int, error)
	CountCompletedByUser(ctx context.Context, tx txn.Tx, userID string) (int, error)

	SaveUserStats(ctx context.Context, tx txn.Tx, st *UserStats) error
	GetUserStats(ctx context.Context, tx txn.Tx, userID string) (*UserStats, error)

	// AddAchievements stores the given types for userID and returns the ones
	// that were not held before.
	AddAchievements(ctx context.Context, tx txn.Tx, userID string, types []AchievementType, now time.Time) ([]AchievementType, error)
	ListAchievements(ctx context.Context, tx txn.Tx, userID string) ([]Achievement, error)
}
