package level_test

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
	"github.com/dmitrymomot/levelqueue/svc/level"
)

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) Put(ctx context.Context, id string, doc any) error {
	return m.Called(ctx, id, doc).Error(0)
}

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, key, contentType, data)
	return args.String(0), args.Error(1)
}

func message(t *testing.T, typ queue.MessageType, payload string) *queue.Message {
	t.Helper()
	return &queue.Message{ID: "msg-1", Type: typ, Payload: payload, State: queue.StateProcessing}
}

func handlerFor(t *testing.T, handlers []queue.Handler, typ queue.MessageType) queue.Handler {
	t.Helper()
	for _, h := range handlers {
		if h.Type() == typ {
			return h
		}
	}
	t.Fatalf("no handler for %s", typ)
	return nil
}

func TestStatsHandlers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("calc play attempts sums stats", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.draft(t, "lvl", f.pro)
		for i, u := range []string{"a", "b", "c"} {
			require.NoError(t, f.store.UpsertStat(ctx, nil, &level.Stat{LevelID: "lvl", UserID: u, Attempts: i + 2}))
		}

		h := handlerFor(t, f.publisher.StatsHandlers(), jobs.TypeCalcPlayAttempts)
		msg := message(t, jobs.TypeCalcPlayAttempts, `{"levelId":"lvl"}`)
		require.NoError(t, h.Handle(ctx, msg))
		assert.Equal(t, 9, f.getLevel(t, "lvl").CalcPlayAttempts)
	})

	t.Run("calc play attempts on a missing level is permanent", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		h := handlerFor(t, f.publisher.StatsHandlers(), jobs.TypeCalcPlayAttempts)
		err := h.Handle(ctx, message(t, jobs.TypeCalcPlayAttempts, `{"levelId":"gone"}`))
		assert.True(t, queue.IsPermanent(err))
	})

	t.Run("calc creator counts", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.draft(t, "a", f.pro)
		f.draft(t, "b", f.pro)
		f.draft(t, "c", f.pro)
		_, err := f.publisher.PublishNow(ctx, f.pro, "a")
		require.NoError(t, err)
		_, err = f.publisher.PublishNow(ctx, f.pro, "b")
		require.NoError(t, err)

		h := handlerFor(t, f.publisher.StatsHandlers(), jobs.TypeCalcCreatorCounts)
		require.NoError(t, h.Handle(ctx, message(t, jobs.TypeCalcCreatorCounts, `{"userId":"u-pro"}`)))

		st, err := f.store.GetUserStats(ctx, nil, f.pro.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, st.LevelsCreated)
		assert.Equal(t, 2, st.LevelsCompleted)
	})

	t.Run("refresh achievements grants once and pushes", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.draft(t, "lvl", f.pro)
		_, err := f.publisher.PublishNow(ctx, f.pro, "lvl")
		require.NoError(t, err)
		for i := range 10 {
			require.NoError(t, f.store.UpsertStat(ctx, nil, &level.Stat{
				LevelID: fmt.Sprintf("other-%d", i), UserID: f.pro.ID, Completed: true,
			}))
		}

		h := handlerFor(t, f.publisher.StatsHandlers(), jobs.TypeRefreshAchievements)
		msg := message(t, jobs.TypeRefreshAchievements, `{"userId":"u-pro"}`)
		require.NoError(t, h.Handle(ctx, msg))

		got, err := f.store.ListAchievements(ctx, nil, f.pro.ID)
		require.NoError(t, err)
		types := make([]level.AchievementType, 0, len(got))
		for _, a := range got {
			types = append(types, a.Type)
		}
		assert.ElementsMatch(t, []level.AchievementType{level.AchievementCreator1, level.AchievementCompleted10}, types)

		pushes := func() int {
			n := 0
			for _, m := range f.messagesOfType(jobs.TypePushNotification) {
				var p jobs.PushPayload
				require.NoError(t, m.Decode(&p))
				if p.Title == "Achievement unlocked" {
					n++
				}
			}
			return n
		}
		assert.Equal(t, 2, pushes())

		require.NoError(t, h.Handle(ctx, message(t, jobs.TypeRefreshAchievements, `{"userId":"u-pro"}`)))
		assert.Equal(t, 2, pushes(), "no push for achievements already held")
	})
}

func TestIndexHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("indexes published levels", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.draft(t, "lvl", f.pro)
		_, err := f.publisher.PublishNow(ctx, f.pro, "lvl")
		require.NoError(t, err)

		idx := &mockIndexer{}
		idx.On("Put", mock.Anything, "lvl", mock.MatchedBy(func(doc *level.IndexDocument) bool {
			return doc.Completions == 1 && doc.BestMoves == 3 && doc.Name == "Level lvl"
		})).Return(nil).Once()

		msg := message(t, jobs.TypeRefreshIndexCalculations, `{"levelId":"lvl"}`)
		require.NoError(t, f.publisher.IndexHandler(idx).Handle(ctx, msg))
		idx.AssertExpectations(t)
	})

	t.Run("skips drafts", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.draft(t, "lvl", f.pro)
		idx := &mockIndexer{}

		msg := message(t, jobs.TypeRefreshIndexCalculations, `{"levelId":"lvl"}`)
		require.NoError(t, f.publisher.IndexHandler(idx).Handle(ctx, msg))
		idx.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, []string{"level lvl is a draft, not indexed"}, msg.Log)
	})

	t.Run("disabled without an indexer", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		msg := message(t, jobs.TypeRefreshIndexCalculations, `{"levelId":"lvl"}`)
		require.NoError(t, f.publisher.IndexHandler(nil).Handle(ctx, msg))
		assert.Equal(t, []string{"search indexing disabled"}, msg.Log)
	})

	t.Run("indexer errors are retried", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.draft(t, "lvl", f.pro)
		_, err := f.publisher.PublishNow(ctx, f.pro, "lvl")
		require.NoError(t, err)
		idx := &mockIndexer{}
		idx.On("Put", mock.Anything, "lvl", mock.Anything).Return(assert.AnError)

		err = f.publisher.IndexHandler(idx).Handle(ctx, message(t, jobs.TypeRefreshIndexCalculations, `{"levelId":"lvl"}`))
		require.ErrorIs(t, err, assert.AnError)
		assert.False(t, queue.IsPermanent(err))
	})
}

func TestImageHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "lvl", f.pro)

	store := &mockObjectStore{}
	store.On("Put", mock.Anything, "levels/lvl.png", "image/png", mock.Anything).
		Return("https://cdn.test/levels/lvl.png", nil).Once()

	msg := message(t, jobs.TypeGenLevelImage, `{"levelId":"lvl"}`)
	require.NoError(t, f.publisher.ImageHandler(store).Handle(ctx, msg))
	store.AssertExpectations(t)
	assert.Equal(t, "https://cdn.test/levels/lvl.png", f.getLevel(t, "lvl").ImageURL)

	err := f.publisher.ImageHandler(store).Handle(ctx, message(t, jobs.TypeGenLevelImage, `{"levelId":"gone"}`))
	assert.True(t, queue.IsPermanent(err))
}

func TestRenderThumbnail(t *testing.T) {
	t.Parallel()

	lvl := &level.Level{Data: validGrid, Width: 5, Height: 3}
	data, err := level.RenderThumbnail(lvl, 64)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())

	_, err = level.RenderThumbnail(&level.Level{}, 64)
	assert.ErrorIs(t, err, level.ErrValidation)
}

func TestStructuralValidator(t *testing.T) {
	t.Parallel()

	base := func() *level.Level {
		return &level.Level{Name: "ok", GameID: "g", Data: validGrid, Width: 5, Height: 3, LeastMoves: 4}
	}
	tests := []struct {
		name   string
		modify func(l *level.Level)
		gameID string
		ok     bool
	}{
		{name: "valid", modify: func(*level.Level) {}, ok: true},
		{name: "matching game", modify: func(*level.Level) {}, gameID: "g", ok: true},
		{name: "other game", modify: func(*level.Level) {}, gameID: "x"},
		{name: "blank name", modify: func(l *level.Level) { l.Name = "  " }},
		{name: "too wide", modify: func(l *level.Level) { l.Width = level.MaxDimension + 1 }},
		{name: "row count", modify: func(l *level.Level) { l.Height = 2 }},
		{name: "ragged row", modify: func(l *level.Level) { l.Data = []string{"11111", "1403", "11111"} }},
		{name: "bad tile", modify: func(l *level.Level) { l.Data = []string{"11111", "14Z03", "11111"} }},
		{name: "no start", modify: func(l *level.Level) { l.Data = []string{"11111", "10003", "11111"} }},
		{name: "two starts", modify: func(l *level.Level) { l.Data = []string{"11111", "14043", "11111"} }},
		{name: "no exit", modify: func(l *level.Level) { l.Data = []string{"11111", "14000", "11111"} }},
		{name: "no moves", modify: func(l *level.Level) { l.LeastMoves = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := base()
			tt.modify(l)
			err := level.StructuralValidator{}.ValidateForPublishing(context.Background(), l, "u", tt.gameID)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, level.ErrValidation)
		})
	}
}

type failingStat struct {
	*level.MemoryStore
}

func (s *failingStat) UpsertStat(context.Context, txn.Tx, *level.Stat) error {
	return assert.AnError
}

func TestPublishNow_RollsBackOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "lvl", f.pro)

	enq, err := queue.NewEnqueuer(f.messages, queue.WithEnqueuerClock(f.clock))
	require.NoError(t, err)
	p := level.NewPublisher(&failingStat{MemoryStore: f.store}, txn.NewMemoryManager(), jobs.NewProducer(enq), f.accounts,
		level.WithClock(f.clock))

	_, err = p.PublishNow(ctx, f.pro, "lvl")
	require.ErrorIs(t, err, assert.AnError)

	lvl := f.getLevel(t, "lvl")
	assert.True(t, lvl.IsDraft)
	assert.Nil(t, lvl.PublishedAt)
	records, err := f.store.ListRecords(ctx, nil, "lvl")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, f.messages.All())
}

func TestRecalcPlayAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	f.draft(t, "pub-1", f.basic)
	f.draft(t, "pub-2", f.basic)
	f.draft(t, "still-draft", f.basic)
	for _, id := range []string{"pub-1", "pub-2"} {
		_, err := f.publisher.PublishNow(ctx, f.basic, id)
		require.NoError(t, err)
	}
	pending := f.messagesOfType(jobs.TypeCalcPlayAttempts)
	require.Len(t, pending, 2)

	t.Run("pending messages are reused", func(t *testing.T) {
		ids, err := f.publisher.RecalcPlayAttempts(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{pending[0].ID, pending[1].ID}, ids)
		assert.Len(t, f.messagesOfType(jobs.TypeCalcPlayAttempts), 2)
	})

	t.Run("new messages once processed", func(t *testing.T) {
		f.process(t)
		ids, err := f.publisher.RecalcPlayAttempts(ctx)
		require.NoError(t, err)
		assert.Len(t, ids, 2)

		queued := f.messagesOfType(jobs.TypeCalcPlayAttempts)
		assert.Len(t, queued, 4)
		for _, m := range queued {
			assert.NotContains(t, m.Payload, "still-draft")
		}
	})
}
