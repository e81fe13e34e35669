package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/levelqueue/pkg/pg"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

var ErrStorage = errors.New("queue postgres storage failure")

// Store implements queue.Repository.
type Store struct {
	pool *pgxpool.Pool
}

var _ queue.Repository = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const columns = `id, dedupe_key, type, message, priority, state, run_at, is_processing,
	processing_attempts, processing_started_at, processing_completed_at, log, created_at, updated_at`

type row struct {
	ID                    string     `db:"id"`
	DedupeKey             *string    `db:"dedupe_key"`
	Type                  string     `db:"type"`
	Message               string     `db:"message"`
	Priority              int        `db:"priority"`
	State                 string     `db:"state"`
	RunAt                 time.Time  `db:"run_at"`
	IsProcessing          bool       `db:"is_processing"`
	ProcessingAttempts    int        `db:"processing_attempts"`
	ProcessingStartedAt   *time.Time `db:"processing_started_at"`
	ProcessingCompletedAt *time.Time `db:"processing_completed_at"`
	Log                   []string   `db:"log"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

func (r *row) message() *queue.Message {
	m := &queue.Message{
		ID:                 r.ID,
		Type:               queue.MessageType(r.Type),
		Payload:            r.Message,
		Priority:           queue.Priority(r.Priority),
		State:              queue.State(r.State),
		RunAt:              r.RunAt.UTC(),
		IsProcessing:       r.IsProcessing,
		ProcessingAttempts: r.ProcessingAttempts,
		Log:                r.Log,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if r.DedupeKey != nil {
		m.DedupeKey = *r.DedupeKey
	}
	if r.ProcessingStartedAt != nil {
		t := r.ProcessingStartedAt.UTC()
		m.ProcessingStartedAt = &t
	}
	if r.ProcessingCompletedAt != nil {
		t := r.ProcessingCompletedAt.UTC()
		m.ProcessingCompletedAt = &t
	}
	if m.Log == nil {
		m.Log = []string{}
	}
	return m
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Upsert implements queue.EnqueuerRepository.
func (s *Store) Upsert(ctx context.Context, tx txn.Tx, msg *queue.Message) (string, error) {
	q, err := pg.Querier(s.pool, tx)
	if err != nil {
		return "", err
	}

	var id string
	err = q.QueryRow(ctx, `
		INSERT INTO queue_messages (id, dedupe_key, type, message, priority, state, run_at,
			is_processing, processing_attempts, log, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', $6, false, 0, '{}', $7, $8)
		ON CONFLICT (dedupe_key, type, (md5(message)))
			WHERE state = 'PENDING' AND dedupe_key IS NOT NULL
		DO UPDATE SET run_at = EXCLUDED.run_at,
			priority = EXCLUDED.priority,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		msg.ID, nullable(msg.DedupeKey), string(msg.Type), msg.Payload, int(msg.Priority),
		msg.RunAt, msg.CreatedAt, msg.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", errors.Join(ErrStorage, err)
	}
	return id, nil
}

// FindDue implements queue.DispatcherRepository.
func (s *Store) FindDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*queue.Message, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+columns+`
		FROM queue_messages
		WHERE (state = 'PENDING' AND run_at <= $1)
			OR (state = 'PROCESSING' AND processing_started_at < $2)
		ORDER BY priority DESC, run_at ASC, created_at ASC
		LIMIT $3`, now, staleParam(staleBefore), limit)
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[row])
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}

	out := make([]*queue.Message, 0, len(found))
	for _, r := range found {
		out = append(out, r.message())
	}
	return out, nil
}

// Claim implements queue.DispatcherRepository.
func (s *Store) Claim(ctx context.Context, id string, now, staleBefore time.Time) (*queue.Message, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE queue_messages
		SET state = 'PROCESSING',
			is_processing = true,
			processing_attempts = processing_attempts + 1,
			processing_started_at = $2,
			updated_at = $2
		WHERE id = $1 AND (
			(state = 'PENDING' AND run_at <= $2)
			OR (state = 'PROCESSING' AND processing_started_at < $3))
		RETURNING `+columns, id, now, staleParam(staleBefore))
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}

	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[row])
	if pg.IsNotFoundError(err) {
		return nil, queue.ErrNotClaimed
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return r.message(), nil
}

// staleParam maps a zero staleBefore to NULL so no PROCESSING row matches.
func staleParam(staleBefore time.Time) *time.Time {
	if staleBefore.IsZero() {
		return nil
	}
	return &staleBefore
}

// Complete implements queue.DispatcherRepository.
func (s *Store) Complete(ctx context.Context, id string, now time.Time, lines []string) error {
	return s.finish(ctx, id, queue.StateCompleted, now, lines)
}

// Fail implements queue.DispatcherRepository.
func (s *Store) Fail(ctx context.Context, id string, now time.Time, lines []string) error {
	return s.finish(ctx, id, queue.StateFailed, now, lines)
}

func (s *Store) finish(ctx context.Context, id string, state queue.State, now time.Time, lines []string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_messages
		SET state = $2,
			is_processing = false,
			processing_completed_at = $3,
			log = log || $4::text[],
			updated_at = $3
		WHERE id = $1 AND state = 'PROCESSING'`,
		id, string(state), now, orEmpty(lines))
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missing(ctx, s.pool, id, queue.ErrNotProcessing)
	}
	return nil
}

// Retry implements queue.DispatcherRepository.
func (s *Store) Retry(ctx context.Context, id string, runAt, now time.Time, lines []string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_messages
		SET state = 'PENDING',
			is_processing = false,
			run_at = $2,
			log = log || $4::text[],
			updated_at = $3
		WHERE id = $1 AND state = 'PROCESSING'`,
		id, runAt, now, orEmpty(lines))
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missing(ctx, s.pool, id, queue.ErrNotProcessing)
	}
	return nil
}

// Get implements queue.Repository.
func (s *Store) Get(ctx context.Context, tx txn.Tx, id string) (*queue.Message, error) {
	q, err := pg.Querier(s.pool, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT `+columns+` FROM queue_messages WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[row])
	if pg.IsNotFoundError(err) {
		return nil, queue.ErrMessageNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return r.message(), nil
}

// Cancel implements queue.Repository.
func (s *Store) Cancel(ctx context.Context, tx txn.Tx, id string, now time.Time, line string) error {
	q, err := pg.Querier(s.pool, tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE queue_messages
		SET state = 'FAILED',
			is_processing = false,
			processing_completed_at = $2,
			log = array_append(log, $3),
			updated_at = $2
		WHERE id = $1 AND state = 'PENDING'`, id, now, line)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missing(ctx, q, id, queue.ErrNotPending)
	}
	return nil
}

func (s *Store) missing(ctx context.Context, q pg.DBTX, id string, stateErr error) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM queue_messages WHERE id = $1)`, id).Scan(&exists); err != nil {
		return errors.Join(ErrStorage, err)
	}
	if !exists {
		return queue.ErrMessageNotFound
	}
	return fmt.Errorf("%w: %s", stateErr, id)
}

func orEmpty(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
