package levels_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/modules/levels"
	"github.com/dmitrymomot/levelqueue/pkg/clock"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
	"github.com/dmitrymomot/levelqueue/svc/account"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
	"github.com/dmitrymomot/levelqueue/svc/level"
)

const internalToken = "s3cret"

var epoch = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *level.MemoryStore
	messages *queue.MemoryStorage
	clock    *clock.Mock
	server   http.Handler
}

func newFixture(t *testing.T, runner queue.CycleRunner) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    level.NewMemoryStore(),
		messages: queue.NewMemoryStorage(),
		clock:    clock.NewMock(epoch),
	}

	accounts := account.NewMemoryStore()
	for _, u := range []*account.User{
		{ID: "u-pro", Name: "Ada", Roles: []account.Role{account.RolePro}},
		{ID: "u-basic", Name: "Bob"},
		{ID: "u-guest", Name: "Guest", IsGuest: true},
	} {
		require.NoError(t, accounts.SaveUser(ctx, u))
	}

	enq, err := queue.NewEnqueuer(f.messages, queue.WithEnqueuerClock(f.clock))
	require.NoError(t, err)
	publisher := level.NewPublisher(f.store, txn.NewMemoryManager(), jobs.NewProducer(enq), accounts,
		level.WithClock(f.clock),
		level.WithLogger(logger.Discard()),
	)
	scheduler := level.NewScheduler(publisher, f.messages)

	if runner == nil {
		dispatcher, err := queue.NewDispatcher(f.messages,
			queue.WithClock(f.clock),
			queue.WithLogger(logger.Discard()),
		)
		require.NoError(t, err)
		require.NoError(t, dispatcher.RegisterHandlers(level.NewPublishHandler(publisher)))
		runner = dispatcher
	}

	mod := levels.New(publisher, scheduler, runner, accounts,
		levels.Config{InternalToken: internalToken, UserHeader: account.DefaultUserHeader},
		levels.WithLogger(logger.Discard()),
	)
	f.server = mod.Handle()
	return f
}

func (f *fixture) draft(t *testing.T, id, owner string) {
	t.Helper()
	require.NoError(t, f.store.CreateLevel(context.Background(), nil, &level.Level{
		ID:         id,
		UserID:     owner,
		GameID:     "game-1",
		Name:       "Level " + id,
		Data:       []string{"11111", "14003", "11111"},
		Width:      5,
		Height:     3,
		LeastMoves: 3,
		IsDraft:    true,
		CreatedAt:  epoch,
		UpdatedAt:  epoch,
	}))
}

func (f *fixture) level(t *testing.T, id string) *level.Level {
	t.Helper()
	lvl, err := f.store.GetLevel(context.Background(), nil, id)
	require.NoError(t, err)
	return lvl
}

type call struct {
	method string
	path   string
	user   string
	token  string
	body   any
}

func (f *fixture) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(account.DefaultUserHeader, c.user)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func schedule(at time.Time) map[string]string {
	return map[string]string{"publishAt": at.Format(time.RFC3339Nano)}
}

func TestSchedulePublish(t *testing.T) {
	t.Parallel()

	t.Run("schedules a draft", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.draft(t, "lvl", "u-pro")
		at := epoch.Add(2 * time.Hour)

		rec := f.do(t, call{method: http.MethodPost, path: "/api/schedule-publish/lvl", user: "u-pro", body: schedule(at)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Message   string    `json:"message"`
			PublishAt time.Time `json:"publishAt"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Message)
		assert.True(t, at.Equal(resp.PublishAt))

		lvl := f.level(t, "lvl")
		require.True(t, lvl.IsScheduled())
		msg, err := f.messages.Get(context.Background(), nil, lvl.ScheduledQueueMessageID)
		require.NoError(t, err)
		assert.Equal(t, jobs.TypePublishLevel, msg.Type)
		assert.True(t, at.Equal(msg.RunAt))
	})

	tests := []struct {
		name    string
		user    string
		levelID string
		body    any
		status  int
		err     error
	}{
		{name: "anonymous", levelID: "lvl", body: schedule(epoch.Add(time.Hour)), status: http.StatusUnauthorized, err: level.ErrNotFullAccount},
		{name: "guest", user: "u-guest", levelID: "lvl", body: schedule(epoch.Add(time.Hour)), status: http.StatusUnauthorized, err: level.ErrNotFullAccount},
		{name: "not pro", user: "u-basic", levelID: "lvl", body: schedule(epoch.Add(time.Hour)), status: http.StatusUnauthorized, err: level.ErrNotPro},
		{name: "in the past", user: "u-pro", levelID: "lvl", body: schedule(epoch.Add(-time.Second)), status: http.StatusBadRequest, err: level.ErrPublishAtInPast},
		{name: "too far", user: "u-pro", levelID: "lvl", body: schedule(epoch.AddDate(0, 1, 0).Add(time.Second)), status: http.StatusBadRequest, err: level.ErrPublishAtTooFar},
		{name: "not a date", user: "u-pro", levelID: "lvl", body: map[string]string{"publishAt": "tomorrow"}, status: http.StatusBadRequest, err: level.ErrInvalidPublishDate},
		{name: "account checked before date", user: "u-basic", levelID: "lvl", body: map[string]string{"publishAt": "tomorrow"}, status: http.StatusUnauthorized, err: level.ErrNotPro},
		{name: "missing body", user: "u-pro", levelID: "lvl", status: http.StatusBadRequest, err: level.ErrInvalidPublishDate},
		{name: "unknown level", user: "u-pro", levelID: "nope", body: schedule(epoch.Add(time.Hour)), status: http.StatusNotFound, err: level.ErrLevelNotFound},
		{name: "foreign level", user: "u-pro", levelID: "bobs", body: schedule(epoch.Add(time.Hour)), status: http.StatusNotFound, err: level.ErrLevelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			f.draft(t, "lvl", "u-pro")
			f.draft(t, "bobs", "u-basic")

			rec := f.do(t, call{method: http.MethodPost, path: "/api/schedule-publish/" + tt.levelID, user: tt.user, body: tt.body})

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.err.Error(), errorOf(t, rec))
			assert.Empty(t, f.messages.All())
		})
	}

	t.Run("unknown json field", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.draft(t, "lvl", "u-pro")

		rec := f.do(t, call{method: http.MethodPost, path: "/api/schedule-publish/lvl", user: "u-pro", body: map[string]string{"when": "now"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("already scheduled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.draft(t, "lvl", "u-pro")

		first := f.do(t, call{method: http.MethodPost, path: "/api/schedule-publish/lvl", user: "u-pro", body: schedule(epoch.Add(time.Hour))})
		require.Equal(t, http.StatusOK, first.Code)

		rec := f.do(t, call{method: http.MethodPost, path: "/api/schedule-publish/lvl", user: "u-pro", body: schedule(epoch.Add(2 * time.Hour))})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, level.ErrAlreadyScheduled.Error(), errorOf(t, rec))
	})
}

func TestCancelSchedule(t *testing.T) {
	t.Parallel()

	t.Run("cancels pending publish", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.draft(t, "lvl", "u-pro")
		require.Equal(t, http.StatusOK, f.do(t, call{method: http.MethodPost, path: "/api/schedule-publish/lvl", user: "u-pro", body: schedule(epoch.Add(time.Hour))}).Code)
		msgID := f.level(t, "lvl").ScheduledQueueMessageID

		rec := f.do(t, call{method: http.MethodDelete, path: "/api/schedule-publish/lvl", user: "u-pro"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		lvl := f.level(t, "lvl")
		assert.False(t, lvl.IsScheduled())
		assert.True(t, lvl.IsDraft)

		msg, err := f.messages.Get(context.Background(), nil, msgID)
		require.NoError(t, err)
		assert.Equal(t, queue.StateFailed, msg.State)
		assert.Contains(t, msg.Log, level.CanceledByUser)
	})

	t.Run("not scheduled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.draft(t, "lvl", "u-pro")

		rec := f.do(t, call{method: http.MethodDelete, path: "/api/schedule-publish/lvl", user: "u-pro"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, level.ErrNotScheduled.Error(), errorOf(t, rec))
	})

	t.Run("guest", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.draft(t, "lvl", "u-pro")

		rec := f.do(t, call{method: http.MethodDelete, path: "/api/schedule-publish/lvl", user: "u-guest"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown level", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		rec := f.do(t, call{method: http.MethodDelete, path: "/api/schedule-publish/nope", user: "u-pro"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestReEditGuard(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.draft(t, "lvl", "u-pro")

	rec := f.do(t, call{method: http.MethodGet, path: "/edit/lvl", user: "u-pro"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, f.do(t, call{method: http.MethodPost, path: "/api/schedule-publish/lvl", user: "u-pro", body: schedule(epoch.Add(time.Hour))}).Code)

	rec = f.do(t, call{method: http.MethodGet, path: "/edit/lvl", user: "u-pro"})
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/drafts", rec.Header().Get("Location"))

	rec = f.do(t, call{method: http.MethodPut, path: "/api/level/lvl", user: "u-pro", body: map[string]string{"name": "Renamed"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, level.ErrLevelScheduled.Error(), errorOf(t, rec))
	assert.Equal(t, "Level lvl", f.level(t, "lvl").Name)
}

func TestDraftEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, call{method: http.MethodPost, path: "/api/level", user: "u-basic", body: map[string]any{
		"gameId": "game-1",
		"name":   "First Steps",
		"data":   []string{"11111", "14003", "11111"},
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created level.Level
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "bob/first-steps", created.Slug)
	assert.True(t, created.IsDraft)

	rec = f.do(t, call{method: http.MethodPut, path: "/api/level/" + created.ID, user: "u-basic", body: map[string]any{"leastMoves": 3}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, f.level(t, created.ID).LeastMoves)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/publish/" + created.ID, user: "u-basic"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, f.level(t, created.ID).IsDraft)

	rec = f.do(t, call{method: http.MethodPost, path: "/api/publish/" + created.ID, user: "u-basic"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, level.ErrNotDraft.Error(), errorOf(t, rec))

	rec = f.do(t, call{method: http.MethodPost, path: "/api/level", user: "u-guest", body: map[string]any{"gameId": "game-1", "name": "x"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProcessQueue(t *testing.T) {
	t.Parallel()

	t.Run("requires token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)

		for _, token := range []string{"", "wrong"} {
			rec := f.do(t, call{method: http.MethodPost, path: "/api/internal/process-queue", token: token})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		}
	})

	t.Run("publishes due level", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		f.draft(t, "lvl", "u-pro")
		require.Equal(t, http.StatusOK, f.do(t, call{method: http.MethodPost, path: "/api/schedule-publish/lvl", user: "u-pro", body: schedule(epoch.Add(time.Second))}).Code)

		rec := f.do(t, call{method: http.MethodPost, path: "/api/internal/process-queue", token: internalToken})
		require.Equal(t, http.StatusOK, rec.Code)
		var res queue.CycleResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Zero(t, res.Claimed)
		assert.True(t, f.level(t, "lvl").IsDraft)

		f.clock.Advance(time.Second)
		rec = f.do(t, call{method: http.MethodPost, path: "/api/internal/process-queue", token: internalToken})
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, 1, res.Completed)

		lvl := f.level(t, "lvl")
		assert.False(t, lvl.IsDraft)
		assert.False(t, lvl.IsScheduled())
	})

	t.Run("store failure is 500", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, failingRunner{})

		rec := f.do(t, call{method: http.MethodPost, path: "/api/internal/process-queue", token: internalToken})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", errorOf(t, rec))
	})
}

func TestRecalcPlayAttempts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.draft(t, "lvl", "u-basic")
	require.Equal(t, http.StatusOK, f.do(t, call{method: http.MethodPost, path: "/api/publish/lvl", user: "u-basic"}).Code)

	rec := f.do(t, call{method: http.MethodPost, path: "/api/internal/recalc-play-attempts", token: internalToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queued":1}`, rec.Body.String())
}

type failingRunner struct{}

func (failingRunner) ProcessQueueMessages(context.Context) (queue.CycleResult, error) {
	return queue.CycleResult{}, errors.New("mongo: server selection timeout")
}
