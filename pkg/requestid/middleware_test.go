package requestid_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/requestid"
)

func serve(t *testing.T, header string) (ctxID, respID string) {
	t.Helper()
	h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = requestid.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/internal/process-queue", nil)
	if header != "" {
		req.Header.Set(requestid.Header, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return ctxID, rec.Header().Get(requestid.Header)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates id", func(t *testing.T) {
		t.Parallel()
		ctxID, respID := serve(t, "")
		require.NotEmpty(t, ctxID)
		assert.Equal(t, ctxID, respID)
		_, err := uuid.Parse(ctxID)
		assert.NoError(t, err)
	})

	t.Run("keeps valid caller id", func(t *testing.T) {
		t.Parallel()
		ctxID, respID := serve(t, "cron-tick_42")
		assert.Equal(t, "cron-tick_42", ctxID)
		assert.Equal(t, "cron-tick_42", respID)
	})

	for _, bad := range []string{"with space", "a/b", "<script>", "id\nInjected: 1", strings.Repeat("a", 129)} {
		t.Run("replaces invalid id "+strings.ReplaceAll(bad[:min(len(bad), 10)], "\n", " "), func(t *testing.T) {
			t.Parallel()
			ctxID, respID := serve(t, bad)
			assert.NotEqual(t, bad, ctxID)
			assert.Equal(t, ctxID, respID)
		})
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, requestid.FromContext(context.Background()))
	assert.Equal(t, "abc", requestid.FromContext(requestid.WithContext(context.Background(), "abc")))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithFormat(logger.FormatJSON),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	log.InfoContext(requestid.WithContext(context.Background(), "req-1"), "cycle triggered")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	buf.Reset()
	log.InfoContext(context.Background(), "no request")
	assert.NotContains(t, buf.String(), "request_id")
}
