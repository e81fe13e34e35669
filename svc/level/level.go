package level

import (
	"slices"
	"time"
)

// Level is a user-built puzzle.
type Level struct {
	ID                      string     `json:"id"`
	UserID                  string     `json:"userId"`
	GameID                  string     `json:"gameId"`
	Name                    string     `json:"name"`
	Slug                    string     `json:"slug"`
	Data                    []string   `json:"data"`
	Width                   int        `json:"width"`
	Height                  int        `json:"height"`
	LeastMoves              int        `json:"leastMoves"`
	IsDraft                 bool       `json:"isDraft"`
	ScheduledQueueMessageID string     `json:"scheduledQueueMessageId,omitempty"`
	CalcPlayAttempts        int        `json:"calcPlayAttempts"`
	ImageURL                string     `json:"imageUrl,omitempty"`
	PublishedAt             *time.Time `json:"publishedAt,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

// IsScheduled reports whether a publish is pending for the level.
func (l *Level) IsScheduled() bool {
	return l.ScheduledQueueMessageID != ""
}

// Clone returns a deep copy.
func (l *Level) Clone() *Level {
	c := *l
	c.Data = slices.Clone(l.Data)
	if l.PublishedAt != nil {
		t := *l.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

// DraftUpdate carries editable draft fields. Nil fields are left unchanged.
type DraftUpdate struct {
	Name       *string   `json:"name,omitempty"`
	Data       *[]string `json:"data,omitempty"`
	LeastMoves *int      `json:"leastMoves,omitempty"`
}

// Record is a completion of a level in a given number of moves.
type Record struct {
	ID        string    `json:"id"`
	LevelID   string    `json:"levelId"`
	UserID    string    `json:"userId"`
	Moves     int       `json:"moves"`
	Replay    string    `json:"replay,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stat aggregates one user's play of one level.
type Stat struct {
	LevelID   string    `json:"levelId"`
	UserID    string    `json:"userId"`
	Attempts  int       `json:"attempts"`
	Completed bool      `json:"completed"`
	BestMoves int       `json:"bestMoves"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserStats holds per-user counters maintained by background jobs.
type UserStats struct {
	UserID          string    `json:"userId"`
	LevelsCreated   int       `json:"levelsCreated"`
	LevelsCompleted int       `json:"levelsCompleted"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// AchievementType names an achievement.
type AchievementType string

const (
	AchievementCreator1     AchievementType = "CREATOR_1"
	AchievementCreator10    AchievementType = "CREATOR_10"
	AchievementCreator100   AchievementType = "CREATOR_100"
	AchievementCompleted10  AchievementType = "COMPLETED_10"
	AchievementCompleted100 AchievementType = "COMPLETED_100"
	AchievementCompleted500 AchievementType = "COMPLETED_500"
)

// Achievement is earned once per user and type.
type Achievement struct {
	UserID   string          `json:"userId"`
	Type     AchievementType `json:"type"`
	EarnedAt time.Time       `json:"earnedAt"`
}
