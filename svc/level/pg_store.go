package level

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/levelqueue/pkg/pg"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// PgStore implements Store over the tables created by the 00003_levels
// migration.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PgStore)(nil)

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const levelColumns = `id, user_id, game_id, name, slug, data, width, height, least_moves, is_draft,
	scheduled_queue_message_id, calc_play_attempts, image_url, published_at, created_at, updated_at`

type levelRow struct {
	ID                      string     `db:"id"`
	UserID                  string     `db:"user_id"`
	GameID                  string     `db:"game_id"`
	Name                    string     `db:"name"`
	Slug                    string     `db:"slug"`
	Data                    []string   `db:"data"`
	Width                   int        `db:"width"`
	Height                  int        `db:"height"`
	LeastMoves              int        `db:"least_moves"`
	IsDraft                 bool       `db:"is_draft"`
	ScheduledQueueMessageID *string    `db:"scheduled_queue_message_id"`
	CalcPlayAttempts        int        `db:"calc_play_attempts"`
	ImageURL                string     `db:"image_url"`
	PublishedAt             *time.Time `db:"published_at"`
	CreatedAt               time.Time  `db:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at"`
}

func (r *levelRow) level() *Level {
	l := &Level{
		ID:               r.ID,
		UserID:           r.UserID,
		GameID:           r.GameID,
		Name:             r.Name,
		Slug:             r.Slug,
		Data:             r.Data,
		Width:            r.Width,
		Height:           r.Height,
		LeastMoves:       r.LeastMoves,
		IsDraft:          r.IsDraft,
		CalcPlayAttempts: r.CalcPlayAttempts,
		ImageURL:         r.ImageURL,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
	if r.ScheduledQueueMessageID != nil {
		l.ScheduledQueueMessageID = *r.ScheduledQueueMessageID
	}
	if r.PublishedAt != nil {
		t := r.PublishedAt.UTC()
		l.PublishedAt = &t
	}
	return l
}

func (s *PgStore) q(tx txn.Tx) (pg.DBTX, error) {
	return pg.Querier(s.pool, tx)
}

func (s *PgStore) GetLevel(ctx context.Context, tx txn.Tx, id string) (*Level, error) {
	q, err := s.q(tx)
	if err != nil {
		return nil, err
	}
	return s.getLevel(ctx, q, id)
}

func (s *PgStore) getLevel(ctx context.Context, q pg.DBTX, id string) (*Level, error) {
	rows, err := q.Query(ctx, `SELECT `+levelColumns+` FROM levels WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[levelRow])
	if pg.IsNotFoundError(err) {
		return nil, ErrLevelNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	return r.level(), nil
}

func (s *PgStore) CreateLevel(ctx context.Context, tx txn.Tx, lvl *Level) error {
	q, err := s.q(tx)
	if err != nil {
		return err
	}
	var sched *string
	if lvl.ScheduledQueueMessageID != "" {
		sched = &lvl.ScheduledQueueMessageID
	}
	data := lvl.Data
	if data == nil {
		data = []string{}
	}
	_, err = q.Exec(ctx, `
		INSERT INTO levels (`+levelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		lvl.ID, lvl.UserID, lvl.GameID, lvl.Name, lvl.Slug, data, lvl.Width, lvl.Height,
		lvl.LeastMoves, lvl.IsDraft, sched, lvl.CalcPlayAttempts, lvl.ImageURL, lvl.PublishedAt,
		lvl.CreatedAt, lvl.UpdatedAt)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *PgStore) UpdateDraft(ctx context.Context, tx txn.Tx, id string, upd DraftUpdate, now time.Time) (*Level, error) {
	q, err := s.q(tx)
	if err != nil {
		return nil, err
	}

	var (
		data          []string
		width, height *int
	)
	if upd.Data != nil {
		data = *upd.Data
		w, h := 0, len(data)
		if h > 0 {
			w = len(data[0])
		}
		width, height = &w, &h
	}

	rows, err := q.Query(ctx, `
		UPDATE levels SET
			name = COALESCE($2, name),
			data = COALESCE($3, data),
			width = COALESCE($4, width),
			height = COALESCE($5, height),
			least_moves = COALESCE($6, least_moves),
			updated_at = $7
		WHERE id = $1 AND is_draft AND scheduled_queue_message_id IS NULL
		RETURNING `+levelColumns,
		id, upd.Name, data, width, height, upd.LeastMoves, now)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[levelRow])
	if pg.IsNotFoundError(err) {
		return nil, s.explain(ctx, q, id, func(l *Level) error {
			if !l.IsDraft {
				return ErrNotDraft
			}
			return ErrLevelScheduled
		})
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	return r.level(), nil
}

func (s *PgStore) SetScheduledMessage(ctx context.Context, tx txn.Tx, id, msgID string, now time.Time) error {
	return s.conditional(ctx, tx, id, `
		UPDATE levels SET scheduled_queue_message_id = $2, updated_at = $3
		WHERE id = $1 AND is_draft AND scheduled_queue_message_id IS NULL`,
		[]any{id, msgID, now},
		func(l *Level) error {
			if !l.IsDraft {
				return ErrNotDraft
			}
			return ErrAlreadyScheduled
		})
}

func (s *PgStore) ClearScheduledMessage(ctx context.Context, tx txn.Tx, id, msgID string, now time.Time) error {
	if msgID == "" {
		return ErrScheduleMismatch
	}
	return s.conditional(ctx, tx, id, `
		UPDATE levels SET scheduled_queue_message_id = NULL, updated_at = $3
		WHERE id = $1 AND scheduled_queue_message_id = $2`,
		[]any{id, msgID, now},
		func(*Level) error { return ErrScheduleMismatch })
}

func (s *PgStore) MarkPublished(ctx context.Context, tx txn.Tx, id string, now time.Time) error {
	return s.conditional(ctx, tx, id, `
		UPDATE levels SET is_draft = false, scheduled_queue_message_id = NULL,
			published_at = $2, updated_at = $2
		WHERE id = $1 AND is_draft`,
		[]any{id, now},
		func(*Level) error { return ErrNotDraft })
}

func (s *PgStore) SetCalcPlayAttempts(ctx context.Context, tx txn.Tx, id string, n int, now time.Time) error {
	return s.conditional(ctx, tx, id,
		`UPDATE levels SET calc_play_attempts = $2, updated_at = $3 WHERE id = $1`,
		[]any{id, n, now}, nil)
}

func (s *PgStore) SetImageURL(ctx context.Context, tx txn.Tx, id, url string, now time.Time) error {
	return s.conditional(ctx, tx, id,
		`UPDATE levels SET image_url = $2, updated_at = $3 WHERE id = $1`,
		[]any{id, url, now}, nil)
}

func (s *PgStore) ListPublishedLevelIDs(ctx context.Context, tx txn.Tx) ([]string, error) {
	q, err := s.q(tx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT id FROM levels WHERE NOT is_draft ORDER BY id`)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	return ids, nil
}

func (s *PgStore) CountPublishedByUser(ctx context.Context, tx txn.Tx, userID string) (int, error) {
	return s.scalar(ctx, tx, `SELECT count(*) FROM levels WHERE user_id = $1 AND NOT is_draft`, userID)
}

func (s *PgStore) CreateRecord(ctx context.Context, tx txn.Tx, rec *Record) error {
	q, err := s.q(tx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO records (id, level_id, user_id, moves, replay, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.LevelID, rec.UserID, rec.Moves, rec.Replay, rec.CreatedAt)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *PgStore) ListRecords(ctx context.Context, tx txn.Tx, levelID string) ([]*Record, error) {
	q, err := s.q(tx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT id, level_id, user_id, moves, replay, created_at
		FROM records WHERE level_id = $1 ORDER BY moves, created_at`, levelID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Record, error) {
		var r Record
		err := row.Scan(&r.ID, &r.LevelID, &r.UserID, &r.Moves, &r.Replay, &r.CreatedAt)
		r.CreatedAt = r.CreatedAt.UTC()
		return &r, err
	})
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	return out, nil
}

func (s *PgStore) UpsertStat(ctx context.Context, tx txn.Tx, st *Stat) error {
	q, err := s.q(tx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO stats (level_id, user_id, attempts, completed, best_moves, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (level_id, user_id) DO UPDATE SET
			attempts = EXCLUDED.attempts,
			completed = EXCLUDED.completed,
			best_moves = EXCLUDED.best_moves,
			updated_at = EXCLUDED.updated_at`,
		st.LevelID, st.UserID, st.Attempts, st.Completed, st.BestMoves, st.UpdatedAt)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *PgStore) GetStat(ctx context.Context, tx txn.Tx, levelID, userID string) (*Stat, error) {
	q, err := s.q(tx)
	if err != nil {
		return nil, err
	}
	var st Stat
	err = q.QueryRow(ctx, `
		SELECT level_id, user_id, attempts, completed, best_moves, updated_at
		FROM stats WHERE level_id = $1 AND user_id = $2`, levelID, userID,
	).Scan(&st.LevelID, &st.UserID, &st.Attempts, &st.Completed, &st.BestMoves, &st.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrStatNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

func (s *PgStore) SumPlayAttempts(ctx context.Context, tx txn.Tx, levelID string) (int, error) {
	return s.scalar(ctx, tx, `SELECT COALESCE(sum(attempts), 0) FROM stats WHERE level_id = $1`, levelID)
}

func (s *PgStore) CountCompletedByUser(ctx context.Context, tx txn.Tx, userID string) (int, error) {
	return s.scalar(ctx, tx, `SELECT count(*) FROM stats WHERE user_id = $1 AND completed`, userID)
}

func (s *PgStore) SaveUserStats(ctx context.Context, tx txn.Tx, st *UserStats) error {
	q, err := s.q(tx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO user_stats (user_id, levels_created, levels_completed, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			levels_created = EXCLUDED.levels_created,
			levels_completed = EXCLUDED.levels_completed,
			updated_at = EXCLUDED.updated_at`,
		st.UserID, st.LevelsCreated, st.LevelsCompleted, st.UpdatedAt)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *PgStore) GetUserStats(ctx context.Context, tx txn.Tx, userID string) (*UserStats, error) {
	q, err := s.q(tx)
	if err != nil {
		return nil, err
	}
	st := UserStats{UserID: userID}
	err = q.QueryRow(ctx, `
		SELECT levels_created, levels_completed, updated_at FROM user_stats WHERE user_id = $1`, userID,
	).Scan(&st.LevelsCreated, &st.LevelsCompleted, &st.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return &UserStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

func (s *PgStore) AddAchievements(ctx context.Context, tx txn.Tx, userID string, types []AchievementType, now time.Time) ([]AchievementType, error) {
	q, err := s.q(tx)
	if err != nil {
		return nil, err
	}
	var added []AchievementType
	for _, t := range types {
		tag, err := q.Exec(ctx, `
			INSERT INTO achievements (user_id, type, earned_at) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`, userID, string(t), now)
		if err != nil {
			return nil, errors.Join(ErrStoreFailed, err)
		}
		if tag.RowsAffected() > 0 {
			added = append(added, t)
		}
	}
	return added, nil
}

func (s *PgStore) ListAchievements(ctx context.Context, tx txn.Tx, userID string) ([]Achievement, error) {
	q, err := s.q(tx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `
		SELECT user_id, type, earned_at FROM achievements WHERE user_id = $1 ORDER BY earned_at`, userID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Achievement, error) {
		var (
			a   Achievement
			typ string
		)
		err := row.Scan(&a.UserID, &typ, &a.EarnedAt)
		a.Type = AchievementType(typ)
		a.EarnedAt = a.EarnedAt.UTC()
		return a, err
	})
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	return out, nil
}

// conditional runs a single-row UPDATE. When no row matched it reports
// ErrLevelNotFound or, if the level exists, the error explain returns.
func (s *PgStore) conditional(ctx context.Context, tx txn.Tx, id, sql string, args []any, explain func(*Level) error) error {
	q, err := s.q(tx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return s.explain(ctx, q, id, explain)
}

func (s *PgStore) explain(ctx context.Context, q pg.DBTX, id string, explain func(*Level) error) error {
	lvl, err := s.getLevel(ctx, q, id)
	if err != nil {
		return err
	}
	if explain == nil {
		return ErrLevelNotFound
	}
	return explain(lvl)
}

func (s *PgStore) scalar(ctx context.Context, tx txn.Tx, sql string, args ...any) (int, error) {
	q, err := s.q(tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, errors.Join(ErrStoreFailed, err)
	}
	return n, nil
}
