package level

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/levelqueue/pkg/txn"
)

type statKey struct{ level, user string }

// MemoryStore implements Store in process memory. Writes made under a
// transaction from txn.MemoryManager are undone when it rolls back.
type MemoryStore struct {
	mu           sync.RWMutex
	levels       map[string]*Level
	records      []*Record
	stats        map[statKey]*Stat
	userStats    map[string]*UserStats
	achievements map[string][]Achievement
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		levels:       make(map[string]*Level),
		stats:        make(map[statKey]*Stat),
		userStats:    make(map[string]*UserStats),
		achievements: make(map[string][]Achievement),
	}
}

func (s *MemoryStore) GetLevel(ctx context.Context, tx txn.Tx, id string) (*Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.levels[id]
	if !ok {
		return nil, ErrLevelNotFound
	}
	return l.Clone(), nil
}

func (s *MemoryStore) CreateLevel(ctx context.Context, tx txn.Tx, lvl *Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.levels[lvl.ID]
	s.levels[lvl.ID] = lvl.Clone()
	return s.undoLevel(tx, lvl.ID, prev)
}

func (s *MemoryStore) UpdateDraft(ctx context.Context, tx txn.Tx, id string, upd DraftUpdate, now time.Time) (*Level, error) {
	var out *Level
	err := s.mutate(tx, id, func(l *Level) error {
		if !l.IsDraft {
			return ErrNotDraft
		}
		if l.IsScheduled() {
			return ErrLevelScheduled
		}
		if upd.Name != nil {
			l.Name = *upd.Name
		}
		if upd.Data != nil {
			l.Data = slices.Clone(*upd.Data)
			l.Height = len(l.Data)
			l.Width = 0
			if len(l.Data) > 0 {
				l.Width = len(l.Data[0])
			}
		}
		if upd.LeastMoves != nil {
			l.LeastMoves = *upd.LeastMoves
		}
		l.UpdatedAt = now
		out = l.Clone()
		return nil
	})
	return out, err
}

func (s *MemoryStore) SetScheduledMessage(ctx context.Context, tx txn.Tx, id, msgID string, now time.Time) error {
	return s.mutate(tx, id, func(l *Level) error {
		if !l.IsDraft {
			return ErrNotDraft
		}
		if l.IsScheduled() {
			return ErrAlreadyScheduled
		}
		l.ScheduledQueueMessageID = msgID
		l.UpdatedAt = now
		return nil
	})
}

func (s *MemoryStore) ClearScheduledMessage(ctx context.Context, tx txn.Tx, id, msgID string, now time.Time) error {
	return s.mutate(tx, id, func(l *Level) error {
		if l.ScheduledQueueMessageID != msgID || msgID == "" {
			return ErrScheduleMismatch
		}
		l.ScheduledQueueMessageID = ""
		l.UpdatedAt = now
		return nil
	})
}

func (s *MemoryStore) MarkPublished(ctx context.Context, tx txn.Tx, id string, now time.Time) error {
	return s.mutate(tx, id, func(l *Level) error {
		if !l.IsDraft {
			return ErrNotDraft
		}
		published := now
		l.IsDraft = false
		l.ScheduledQueueMessageID = ""
		l.PublishedAt = &published
		l.UpdatedAt = now
		return nil
	})
}

func (s *MemoryStore) SetCalcPlayAttempts(ctx context.Context, tx txn.Tx, id string, n int, now time.Time) error {
	return s.mutate(tx, id, func(l *Level) error {
		l.CalcPlayAttempts = n
		l.UpdatedAt = now
		return nil
	})
}

func (s *MemoryStore) SetImageURL(ctx context.Context, tx txn.Tx, id, url string, now time.Time) error {
	return s.mutate(tx, id, func(l *Level) error {
		l.ImageURL = url
		l.UpdatedAt = now
		return nil
	})
}

func (s *MemoryStore) ListPublishedLevelIDs(ctx context.Context, tx txn.Tx) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, l := range s.levels {
		if !l.IsDraft {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) CountPublishedByUser(ctx context.Context, tx txn.Tx, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.levels {
		if l.UserID == userID && !l.IsDraft {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CreateRecord(ctx context.Context, tx txn.Tx, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *rec
	s.records = append(s.records, &c)
	return txn.OnRollback(tx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.records = slices.DeleteFunc(s.records, func(r *Record) bool { return r == &c })
	})
}

func (s *MemoryStore) ListRecords(ctx context.Context, tx txn.Tx, levelID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0)
	for _, r := range s.records {
		if r.LevelID == levelID {
			c := *r
			out = append(out, &c)
		}
	}
	slices.SortStableFunc(out, func(a, b *Record) int { return cmp.Compare(a.Moves, b.Moves) })
	return out, nil
}

func (s *MemoryStore) UpsertStat(ctx context.Context, tx txn.Tx, st *Stat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statKey{st.LevelID, st.UserID}
	prev, existed := s.stats[key]
	c := *st
	s.stats[key] = &c
	return txn.OnRollback(tx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.stats[key] = prev
		} else {
			delete(s.stats, key)
		}
	})
}

func (s *MemoryStore) GetStat(ctx context.Context, tx txn.Tx, levelID, userID string) (*Stat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[statKey{levelID, userID}]
	if !ok {
		return nil, ErrStatNotFound
	}
	c := *st
	return &c, nil
}

func (s *MemoryStore) SumPlayAttempts(ctx context.Context, tx txn.Tx, levelID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := 0
	for k, st := range s.stats {
		if k.level == levelID {
			sum += st.Attempts
		}
	}
	return sum, nil
}

func (s *MemoryStore) CountCompletedByUser(ctx context.Context, tx txn.Tx, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k, st := range s.stats {
		if k.user == userID && st.Completed {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SaveUserStats(ctx context.Context, tx txn.Tx, st *UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.userStats[st.UserID]
	c := *st
	s.userStats[st.UserID] = &c
	return txn.OnRollback(tx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			s.userStats[st.UserID] = prev
		} else {
			delete(s.userStats, st.UserID)
		}
	})
}

func (s *MemoryStore) GetUserStats(ctx context.Context, tx txn.Tx, userID string) (*UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.userStats[userID]
	if !ok {
		return &UserStats{UserID: userID}, nil
	}
	c := *st
	return &c, nil
}

func (s *MemoryStore) AddAchievements(ctx context.Context, tx txn.Tx, userID string, types []AchievementType, now time.Time) ([]AchievementType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := slices.Clone(s.achievements[userID])
	var added []AchievementType
	for _, t := range types {
		if slices.ContainsFunc(s.achievements[userID], func(a Achievement) bool { return a.Type == t }) {
			continue
		}
		s.achievements[userID] = append(s.achievements[userID], Achievement{UserID: userID, Type: t, EarnedAt: now})
		added = append(added, t)
	}
	if len(added) == 0 {
		return nil, nil
	}
	return added, txn.OnRollback(tx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.achievements[userID] = prev
	})
}

func (s *MemoryStore) ListAchievements(ctx context.Context, tx txn.Tx, userID string) ([]Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.achievements[userID]), nil
}

// mutate applies fn to the stored level under the write lock and records
// the previous version for rollback. fn errors leave the level untouched.
func (s *MemoryStore) mutate(tx txn.Tx, id string, fn func(l *Level) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.levels[id]
	if !ok {
		return ErrLevelNotFound
	}
	work := l.Clone()
	if err := fn(work); err != nil {
		return err
	}
	s.levels[id] = work
	return s.undoLevel(tx, id, l)
}

func (s *MemoryStore) undoLevel(tx txn.Tx, id string, prev *Level) error {
	return txn.OnRollback(tx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if prev == nil {
			delete(s.levels, id)
			return
		}
		s.levels[id] = prev
	})
}
