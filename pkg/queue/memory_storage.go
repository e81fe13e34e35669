package queue

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

// MemoryStorage implements Repository in process memory. Writes made under a
// transaction from txn.MemoryManager are undone when it rolls back.
type MemoryStorage struct {
	mu       sync.RWMutex
	messages map[string]*Message
	seq      map[string]uint64 // insertion order, breaks timestamp ties
	next     uint64
}

var _ Repository = (*MemoryStorage)(nil)

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		messages: make(map[string]*Message),
		seq:      make(map[string]uint64),
	}
}

// Upsert implements EnqueuerRepository
func (ms *MemoryStorage) Upsert(ctx context.Context, tx txn.Tx, msg *Message) (string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if msg.DedupeKey != "" {
		for _, existing := range ms.messages {
			if existing.State != StatePending ||
				existing.DedupeKey != msg.DedupeKey ||
				existing.Type != msg.Type ||
				existing.Payload != msg.Payload {
				continue
			}
			prev := existing.Clone()
			existing.RunAt = msg.RunAt
			existing.Priority = msg.Priority
			existing.UpdatedAt = msg.UpdatedAt
			if err := ms.onRollback(tx, prev.ID, prev); err != nil {
				return "", err
			}
			return existing.ID, nil
		}
	}

	if _, exists := ms.messages[msg.ID]; exists {
		return "", ErrEnqueueFailed
	}

	stored := msg.Clone()
	if stored.Log == nil {
		stored.Log = []string{}
	}
	ms.messages[stored.ID] = stored
	ms.next++
	ms.seq[stored.ID] = ms.next
	if err := ms.onRollback(tx, stored.ID, nil); err != nil {
		return "", err
	}
	return stored.ID, nil
}

// FindDue implements DispatcherRepository
func (ms *MemoryStorage) FindDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*Message, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	due := make([]*Message, 0)
	for _, m := range ms.messages {
		if m.IsDue(now, staleBefore) {
			due = append(due, m.Clone())
		}
	}

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.RunAt.Equal(b.RunAt) {
			return a.RunAt.Before(b.RunAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return ms.seq[a.ID] < ms.seq[b.ID]
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Claim implements DispatcherRepository
func (ms *MemoryStorage) Claim(ctx context.Context, id string, now, staleBefore time.Time) (*Message, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	m, ok := ms.messages[id]
	if !ok || !m.IsDue(now, staleBefore) {
		return nil, ErrNotClaimed
	}

	started := now
	m.State = StateProcessing
	m.IsProcessing = true
	m.ProcessingAttempts++
	m.ProcessingStartedAt = &started
	m.UpdatedAt = now
	return m.Clone(), nil
}

// Complete implements DispatcherRepository
func (ms *MemoryStorage) Complete(ctx context.Context, id string, now time.Time, lines []string) error {
	return ms.finish(id, StateCompleted, now, lines)
}

// Fail implements DispatcherRepository
func (ms *MemoryStorage) Fail(ctx context.Context, id string, now time.Time, lines []string) error {
	return ms.finish(id, StateFailed, now, lines)
}

func (ms *MemoryStorage) finish(id string, state State, now time.Time, lines []string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	m, err := ms.processing(id)
	if err != nil {
		return err
	}

	completed := now
	m.State = state
	m.IsProcessing = false
	m.ProcessingCompletedAt = &completed
	m.Log = append(m.Log, lines...)
	m.UpdatedAt = now
	return nil
}

// Retry implements DispatcherRepository
func (ms *MemoryStorage) Retry(ctx context.Context, id string, runAt, now time.Time, lines []string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	m, err := ms.processing(id)
	if err != nil {
		return err
	}

	m.State = StatePending
	m.IsProcessing = false
	m.RunAt = runAt
	m.Log = append(m.Log, lines...)
	m.UpdatedAt = now
	return nil
}

// Get implements Repository
func (ms *MemoryStorage) Get(ctx context.Context, tx txn.Tx, id string) (*Message, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	m, ok := ms.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return m.Clone(), nil
}

// Cancel implements Repository
func (ms *MemoryStorage) Cancel(ctx context.Context, tx txn.Tx, id string, now time.Time, line string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	m, ok := ms.messages[id]
	if !ok {
		return ErrMessageNotFound
	}
	if m.State != StatePending {
		return ErrNotPending
	}

	prev := m.Clone()
	completed := now
	m.State = StateFailed
	m.IsProcessing = false
	m.ProcessingCompletedAt = &completed
	m.Log = append(m.Log, line)
	m.UpdatedAt = now
	return ms.onRollback(tx, id, prev)
}

// All returns a snapshot of every stored message in insertion order.
func (ms *MemoryStorage) All() []*Message {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	all := make([]*Message, 0, len(ms.messages))
	for _, m := range ms.messages {
		all = append(all, m.Clone())
	}
	slices.SortFunc(all, func(a, b *Message) int {
		return cmp.Compare(ms.seq[a.ID], ms.seq[b.ID])
	})
	return all
}

func (ms *MemoryStorage) processing(id string) (*Message, error) {
	m, ok := ms.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	if m.State != StateProcessing {
		return nil, ErrNotProcessing
	}
	return m, nil
}

// onRollback records how to restore id: to prev, or removed when prev is nil.
// Caller holds ms.mu.
func (ms *MemoryStorage) onRollback(tx txn.Tx, id string, prev *Message) error {
	return txn.OnRollback(tx, func() {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		if prev == nil {
			delete(ms.messages, id)
			delete(ms.seq, id)
			return
		}
		ms.messages[id] = prev
	})
}
