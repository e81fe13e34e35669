package level_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/pkg/txn"
	"github.com/dmitrymomot/levelqueue/svc/account"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
	"github.com/dmitrymomot/levelqueue/svc/level"
)

var epoch = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

var validGrid = []string{
	"11111",
	"14003",
	"11111",
}

type fixture struct {
	store      *level.MemoryStore
	messages   *queue.MemoryStorage
	accounts   *account.MemoryStore
	clock      *clock.Mock
	publisher  *level.Publisher
	scheduler  *level.Scheduler
	dispatcher *queue.Dispatcher

	pro   *account.User
	basic *account.User
	guest *account.User
}

func newFixture(t *testing.T, opts ...level.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    level.NewMemoryStore(),
		messages: queue.NewMemoryStorage(),
		accounts: account.NewMemoryStore(),
		clock:    clock.NewMock(epoch),
		pro:      &account.User{ID: "u-pro", Name: "Ada", Roles: []account.Role{account.RolePro}},
		basic:    &account.User{ID: "u-basic", Name: "Bob"},
		guest:    &account.User{ID: "u-guest", Name: "Guest", IsGuest: true},
	}
	for _, u := range []*account.User{f.pro, f.basic, f.guest} {
		require.NoError(t, f.accounts.SaveUser(ctx, u))
	}

	enq, err := queue.NewEnqueuer(f.messages, queue.WithEnqueuerClock(f.clock))
	require.NoError(t, err)

	opts = append([]level.Option{
		level.WithClock(f.clock),
		level.WithLogger(logger.Discard()),
	}, opts...)
	f.publisher = level.NewPublisher(f.store, txn.NewMemoryManager(), jobs.NewProducer(enq), f.accounts, opts...)
	f.scheduler = level.NewScheduler(f.publisher, f.messages)

	f.dispatcher, err = queue.NewDispatcher(f.messages,
		queue.WithClock(f.clock),
		queue.WithLogger(logger.Discard()),
		queue.WithMaxAttempts(3),
	)
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.RegisterHandlers(level.NewPublishHandler(f.publisher)))
	require.NoError(t, f.dispatcher.RegisterHandlers(f.publisher.StatsHandlers()...))

	return f
}

// draft stores a publishable draft owned by owner.
func (f *fixture) draft(t *testing.T, id string, owner *account.User) *level.Level {
	t.Helper()
	lvl := &level.Level{
		ID:         id,
		UserID:     owner.ID,
		GameID:     "game-1",
		Name:       "Level " + id,
		Slug:       "slug-" + id,
		Data:       validGrid,
		Width:      5,
		Height:     3,
		LeastMoves: 3,
		IsDraft:    true,
		CreatedAt:  epoch,
		UpdatedAt:  epoch,
	}
	require.NoError(t, f.store.CreateLevel(context.Background(), nil, lvl))
	return lvl
}

func (f *fixture) getLevel(t *testing.T, id string) *level.Level {
	t.Helper()
	lvl, err := f.store.GetLevel(context.Background(), nil, id)
	require.NoError(t, err)
	return lvl
}

func (f *fixture) message(t *testing.T, id string) *queue.Message {
	t.Helper()
	msg, err := f.messages.Get(context.Background(), nil, id)
	require.NoError(t, err)
	return msg
}

func (f *fixture) messagesOfType(typ queue.MessageType) []*queue.Message {
	var out []*queue.Message
	for _, m := range f.messages.All() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) process(t *testing.T) queue.CycleResult {
	t.Helper()
	res, err := f.dispatcher.ProcessQueueMessages(context.Background())
	require.NoError(t, err)
	return res
}
