package handler_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/handler"
)

func render(t *testing.T, resp handler.Response) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, resp.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))
	return rec
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("default status", func(t *testing.T) {
		t.Parallel()
		rec := render(t, handler.JSON(map[string]string{"message": "ok"}))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"message":"ok"}`, rec.Body.String())
	})

	t.Run("custom status", func(t *testing.T) {
		t.Parallel()
		rec := render(t, handler.JSON(map[string]string{"id": "lvl-1"}, handler.WithJSONStatus(http.StatusCreated)))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	errNotScheduled := errors.New("level is not scheduled")

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "http error",
			err:    handler.NewHTTPError(http.StatusBadRequest, errNotScheduled),
			status: http.StatusBadRequest,
			body:   `{"error":"level is not scheduled"}`,
		},
		{
			name:   "wrapped http error",
			err:    fmt.Errorf("cancel: %w", handler.NewHTTPError(http.StatusNotFound, errors.New("level not found"))),
			status: http.StatusNotFound,
			body:   `{"error":"level not found"}`,
		},
		{
			name:   "predefined",
			err:    handler.ErrUnauthorized,
			status: http.StatusUnauthorized,
			body:   `{"error":"unauthorized"}`,
		},
		{
			name:   "nil cause uses status text",
			err:    handler.NewHTTPError(http.StatusServiceUnavailable, nil),
			status: http.StatusServiceUnavailable,
			body:   `{"error":"Service Unavailable"}`,
		},
		{
			name:   "plain error hides details",
			err:    errors.New("dial tcp 10.0.0.1:27017: connection refused"),
			status: http.StatusInternalServerError,
			body:   `{"error":"internal server error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := render(t, handler.JSONError(tt.err))
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}

	t.Run("unwraps to cause", func(t *testing.T) {
		t.Parallel()
		err := handler.NewHTTPError(http.StatusBadRequest, errNotScheduled)
		assert.ErrorIs(t, err, errNotScheduled)
	})
}

func TestRedirect(t *testing.T) {
	t.Parallel()

	rec := render(t, handler.Redirect("/drafts"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/drafts", rec.Header().Get("Location"))

	rec = render(t, handler.RedirectWithCode("/drafts", http.StatusTemporaryRedirect))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/drafts", rec.Header().Get("Location"))
}
