package binder_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/pkg/binder"
)

type scheduleBody struct {
	PublishAt string   `json:"publishAt"`
	Tags      []string `json:"tags"`
	Width     int      `json:"width"`
}

func jsonRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/schedule-publish/lvl-1", bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("valid body", func(t *testing.T) {
		t.Parallel()
		var result scheduleBody
		err := binder.JSON()(jsonRequest(`{"publishAt":"2025-03-11T12:00:00Z","tags":["a"],"width":5}`, "application/json"), &result)

		require.NoError(t, err)
		assert.Equal(t, "2025-03-11T12:00:00Z", result.PublishAt)
		assert.Equal(t, []string{"a"}, result.Tags)
		assert.Equal(t, 5, result.Width)
	})

	t.Run("content type with charset", func(t *testing.T) {
		t.Parallel()
		var result scheduleBody
		err := binder.JSON()(jsonRequest(`{"width":3}`, "application/json; charset=utf-8"), &result)

		require.NoError(t, err)
		assert.Equal(t, 3, result.Width)
	})

	t.Run("trims top-level strings", func(t *testing.T) {
		t.Parallel()
		var result scheduleBody
		err := binder.JSON()(jsonRequest(`{"publishAt":"  2025-03-11T12:00:00Z \n","tags":[" x "]}`, "application/json"), &result)

		require.NoError(t, err)
		assert.Equal(t, "2025-03-11T12:00:00Z", result.PublishAt)
		assert.Equal(t, []string{" x "}, result.Tags)
	})

	t.Run("no body and no content type is not applicable", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/api/publish/lvl-1", nil)

		var result scheduleBody
		err := binder.JSON()(req, &result)
		assert.ErrorIs(t, err, binder.ErrBinderNotApplicable)
	})

	t.Run("body without content type", func(t *testing.T) {
		t.Parallel()
		var result scheduleBody
		err := binder.JSON()(jsonRequest(`{"width":1}`, ""), &result)

		require.Error(t, err)
		assert.ErrorIs(t, err, binder.ErrMissingContentType)
		assert.Contains(t, err.Error(), "expected application/json")
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		var result scheduleBody
		err := binder.JSON()(jsonRequest(`{"width":1}`, "text/plain"), &result)

		require.Error(t, err)
		assert.ErrorIs(t, err, binder.ErrUnsupportedMediaType)
		assert.Contains(t, err.Error(), "got text/plain")
	})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "empty body", body: "", message: "empty body"},
		{name: "truncated", body: `{"width":1`, message: "unexpected EOF"},
		{name: "invalid character", body: `{width:1}`, message: "invalid character"},
		{name: "type mismatch", body: `{"width":"wide"}`, message: "cannot unmarshal"},
		{name: "unknown field", body: `{"height":1}`, message: "unknown field"},
		{name: "trailing data", body: `{"width":1}{"width":2}`, message: "unexpected data after JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var result scheduleBody
			err := binder.JSON()(jsonRequest(tt.body, "application/json"), &result)

			require.Error(t, err)
			assert.True(t, errors.Is(err, binder.ErrInvalidJSON))
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	t.Run("body over limit", func(t *testing.T) {
		t.Parallel()
		body := `{"publishAt":"` + strings.Repeat("x", 64) + `"}`

		var result scheduleBody
		err := binder.JSONWithLimit(32)(jsonRequest(body, "application/json"), &result)

		require.Error(t, err)
		assert.ErrorIs(t, err, binder.ErrInvalidJSON)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("canceled request context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := jsonRequest(`{"width":1}`, "application/json").WithContext(ctx)

		var result scheduleBody
		err := binder.JSON()(req, &result)
		assert.ErrorIs(t, err, binder.ErrInvalidJSON)
	})
}
