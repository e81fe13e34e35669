package account_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/svc/account"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetUser(ctx context.Context, id string) (*account.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

func (m *mockStore) ListFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) SaveUser(ctx context.Context, u *account.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockStore) Follow(ctx context.Context, followerID, followeeID string) error {
	return m.Called(ctx, followerID, followeeID).Error(0)
}

func TestRoleEntitlements(t *testing.T) {
	t.Parallel()

	ent := account.RoleEntitlements{}
	tests := []struct {
		name string
		user *account.User
		full bool
		pro  bool
	}{
		{name: "nil user", user: nil},
		{name: "guest", user: &account.User{ID: "g", IsGuest: true}},
		{name: "guest with pro role", user: &account.User{ID: "g", IsGuest: true, Roles: []account.Role{account.RolePro}}, pro: true},
		{name: "free account", user: &account.User{ID: "u"}, full: true},
		{name: "pro account", user: &account.User{ID: "p", Roles: []account.Role{account.RoleAdmin, account.RolePro}}, full: true, pro: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.full, ent.IsFullAccount(tt.user))
			assert.Equal(t, tt.pro, ent.IsPro(tt.user))
		})
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	_, ok := account.FromContext(context.Background())
	assert.False(t, ok)

	u := &account.User{ID: "u1"}
	got, ok := account.FromContext(account.WithUser(context.Background(), u))
	require.True(t, ok)
	assert.Same(t, u, got)

	attr, ok := account.LoggerExtractor()(account.WithUser(context.Background(), u))
	require.True(t, ok)
	assert.Equal(t, "u1", attr.Value.String())

	_, ok = account.LoggerExtractor()(context.Background())
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := account.FromContext(r.Context()); ok {
			_, _ = w.Write([]byte(u.ID))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})

	t.Run("resolves user from header", func(t *testing.T) {
		t.Parallel()
		store := account.NewMemoryStore()
		require.NoError(t, store.SaveUser(context.Background(), &account.User{ID: "u1", Name: "Ann"}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(account.DefaultUserHeader, "u1")
		rec := httptest.NewRecorder()
		account.Middleware(store, "", log)(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("missing header stays anonymous", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		rec := httptest.NewRecorder()
		account.Middleware(store, "", log)(echo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "anonymous", rec.Body.String())
		store.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	})

	t.Run("unknown user stays anonymous", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Custom-User", "ghost")
		rec := httptest.NewRecorder()
		account.Middleware(account.NewMemoryStore(), "X-Custom-User", log)(echo).ServeHTTP(rec, req)

		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("store failure is a server error", func(t *testing.T) {
		t.Parallel()
		store := &mockStore{}
		store.On("GetUser", mock.Anything, "u1").Return(nil, errors.New("connection reset"))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(account.DefaultUserHeader, "u1")
		rec := httptest.NewRecorder()
		account.Middleware(store, "", log)(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		store.AssertExpectations(t)
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := account.NewMemoryStore()

	_, err := store.GetUser(ctx, "missing")
	require.ErrorIs(t, err, account.ErrUserNotFound)

	u := &account.User{ID: "u1", Roles: []account.Role{account.RolePro}}
	require.NoError(t, store.SaveUser(ctx, u))
	u.Roles[0] = account.RoleAdmin

	got, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.HasRole(account.RolePro), "stored copy is isolated from caller mutation")

	require.NoError(t, store.Follow(ctx, "f1", "u1"))
	require.NoError(t, store.Follow(ctx, "f2", "u1"))
	require.NoError(t, store.Follow(ctx, "f1", "u1"))

	ids, err := store.ListFollowerIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, ids)

	ids, err = store.ListFollowerIDs(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
