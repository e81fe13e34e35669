package account

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/levelqueue/pkg/pg"
)

// PgStore reads the users and user_follows tables.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PgStore)(nil)

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) GetUser(ctx context.Context, id string) (*User, error) {
	var (
		u     User
		roles []string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, is_guest, roles, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.IsGuest, &roles, &u.CreatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}

	u.CreatedAt = u.CreatedAt.UTC()
	for _, r := range roles {
		u.Roles = append(u.Roles, Role(r))
	}
	return &u, nil
}

func (s *PgStore) SaveUser(ctx context.Context, u *User) error {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, string(r))
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, is_guest, roles, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			is_guest = EXCLUDED.is_guest,
			roles = EXCLUDED.roles`,
		u.ID, u.Name, u.Email, u.IsGuest, roles, created)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func (s *PgStore) ListFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT follower_id FROM user_follows WHERE followee_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Join(ErrStoreFailed, err)
	}
	return ids, nil
}

func (s *PgStore) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_follows (follower_id, followee_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, followerID, followeeID)
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}
