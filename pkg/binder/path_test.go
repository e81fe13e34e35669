package binder_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/pkg/binder"
)

func mapExtractor(params map[string]string) func(*http.Request, string) string {
	return func(_ *http.Request, name string) string { return params[name] }
}

func TestPath(t *testing.T) {
	t.Parallel()

	type levelRequest struct {
		LevelID  string  `path:"levelId"`
		Page     int     `path:"page"`
		Scale    float64 `path:"scale"`
		Draft    bool    `path:"draft"`
		Limit    *uint   `path:"limit"`
		Slug     string
		Internal string `path:"-"`
		hidden   string
	}

	t.Run("binds tagged and untagged fields", func(t *testing.T) {
		t.Parallel()
		extract := mapExtractor(map[string]string{
			"levelId":  "lvl-1",
			"page":     "2",
			"scale":    "1.5",
			"draft":    "true",
			"limit":    "10",
			"slug":     "ada/first",
			"Internal": "ignored",
		})

		var result levelRequest
		err := binder.Path(extract)(httptest.NewRequest(http.MethodGet, "/", nil), &result)

		require.NoError(t, err)
		assert.Equal(t, "lvl-1", result.LevelID)
		assert.Equal(t, 2, result.Page)
		assert.Equal(t, 1.5, result.Scale)
		assert.True(t, result.Draft)
		require.NotNil(t, result.Limit)
		assert.Equal(t, uint(10), *result.Limit)
		assert.Equal(t, "ada/first", result.Slug)
		assert.Empty(t, result.Internal)
		assert.Empty(t, result.hidden)
	})

	t.Run("missing params keep zero values", func(t *testing.T) {
		t.Parallel()
		var result levelRequest
		err := binder.Path(mapExtractor(nil))(httptest.NewRequest(http.MethodGet, "/", nil), &result)

		require.NoError(t, err)
		assert.Empty(t, result.LevelID)
		assert.Nil(t, result.Limit)
	})

	t.Run("invalid numeric value", func(t *testing.T) {
		t.Parallel()
		var result levelRequest
		err := binder.Path(mapExtractor(map[string]string{"page": "two"}))(httptest.NewRequest(http.MethodGet, "/", nil), &result)

		require.Error(t, err)
		assert.ErrorIs(t, err, binder.ErrInvalidPath)
		assert.Contains(t, err.Error(), "field Page")
	})

	t.Run("nil extractor", func(t *testing.T) {
		t.Parallel()
		var result levelRequest
		err := binder.Path(nil)(httptest.NewRequest(http.MethodGet, "/", nil), &result)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "extractor function is nil")
	})

	t.Run("invalid targets", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		bind := binder.Path(mapExtractor(nil))

		var nilTarget *levelRequest
		assert.ErrorContains(t, bind(req, nilTarget), "non-nil pointer")
		assert.ErrorContains(t, bind(req, levelRequest{}), "non-nil pointer")
		s := "x"
		assert.ErrorContains(t, bind(req, &s), "pointer to struct")
	})

	t.Run("chi url params", func(t *testing.T) {
		t.Parallel()
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("levelId", "lvl-42")
		req := httptest.NewRequest(http.MethodPost, "/api/publish/lvl-42", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		var result levelRequest
		require.NoError(t, binder.Path(chi.URLParam)(req, &result))
		assert.Equal(t, "lvl-42", result.LevelID)
	})
}
