package account

import (
	"context"
	"slices"
	"sync"
)

// Store reads accounts and the follow graph.
type Store interface {
	GetUser(ctx context.Context, id string) (*User, error)
	// ListFollowerIDs returns the ids of users following userID.
	ListFollowerIDs(ctx context.Context, userID string) ([]string, error)
	SaveUser(ctx context.Context, u *User) error
	Follow(ctx context.Context, followerID, followeeID string) error
}

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]User
	followers map[string][]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]User),
		followers: make(map[string][]string),
	}
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Roles = slices.Clone(u.Roles)
	return &u, nil
}

func (s *MemoryStore) SaveUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *u
	c.Roles = slices.Clone(u.Roles)
	s.users[u.ID] = c
	return nil
}

func (s *MemoryStore) ListFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.followers[userID]), nil
}

func (s *MemoryStore) Follow(ctx context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(s.followers[followeeID], followerID) {
		s.followers[followeeID] = append(s.followers[followeeID], followerID)
	}
	return nil
}
