package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Run("creates JSON logger", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("hello")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithFormat(logger.FormatText))
		log.Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.New(logger.WithFormat("xml"))
		})
	})

	t.Run("static attributes", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithAttr(slog.String("svc", "test")))
		log.Info("msg")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "test", entry["svc"])
	})

	t.Run("context value", func(t *testing.T) {
		type key struct{}
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithContextValue("request_id", key{}))

		ctx := context.WithValue(context.Background(), key{}, "req-1")
		log.InfoContext(ctx, "msg")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "req-1", entry["request_id"])
	})

	t.Run("extractor survives WithAttrs", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
				return slog.String("trace", "t1"), true
			}),
		).With(logger.Component("dispatcher"))
		log.InfoContext(context.Background(), "msg")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "t1", entry["trace"])
		assert.Equal(t, "dispatcher", entry["component"])
	})
}

func TestFromConfig(t *testing.T) {
	t.Run("development is text and debug", func(t *testing.T) {
		buf := &bytes.Buffer{}
		opts := append(logger.FromConfig(logger.Config{Service: "svc", Env: "development"}), logger.WithOutput(buf))
		log := logger.New(opts...)
		log.Debug("dbg")
		assert.Contains(t, buf.String(), "msg=dbg")
		assert.Contains(t, buf.String(), "service=svc")
	})

	t.Run("production is json and info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		opts := append(logger.FromConfig(logger.Config{Service: "svc", Env: "production"}), logger.WithOutput(buf))
		log := logger.New(opts...)
		log.Debug("dbg")
		assert.Empty(t, buf.String())
		log.Info("info")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "production", entry["env"])
	})

	t.Run("explicit level overrides", func(t *testing.T) {
		buf := &bytes.Buffer{}
		opts := append(logger.FromConfig(logger.Config{Env: "development", Level: "warn"}), logger.WithOutput(buf))
		log := logger.New(opts...)
		log.Info("info")
		assert.Empty(t, buf.String())
	})
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { logger.Discard().Info("nothing") })
}
