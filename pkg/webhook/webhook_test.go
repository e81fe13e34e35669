package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/pkg/webhook"
)

func TestSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("delivers signed json", func(t *testing.T) {
		t.Parallel()
		var got map[string]string
		var sigErr error
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &got)
			sig, err := webhook.ExtractSignatureHeaders(r.Header)
			if err == nil {
				err = webhook.VerifySignature("s3cret", body, sig, time.Minute)
			}
			sigErr = err
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		err := webhook.NewSender(srv.Client(), "").Send(context.Background(), srv.URL,
			map[string]string{"content": "hi"}, webhook.WithSignature("s3cret"))
		require.NoError(t, err)
		assert.Equal(t, "hi", got["content"])
		assert.NoError(t, sigErr)
	})

	t.Run("retries temporary failures", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := webhook.NewSender(srv.Client(), "").Send(context.Background(), srv.URL, "x",
			webhook.WithRetry(3, time.Millisecond, 5*time.Millisecond))
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "bad channel", http.StatusNotFound)
		}))
		defer srv.Close()

		err := webhook.NewSender(srv.Client(), "").Send(context.Background(), srv.URL, "x",
			webhook.WithRetry(3, time.Millisecond, time.Millisecond))
		require.ErrorIs(t, err, webhook.ErrPermanentFailure)
		assert.Contains(t, err.Error(), "bad channel")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("gives up after retries", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := webhook.NewSender(srv.Client(), "").Do(context.Background(),
			webhook.Request{URL: srv.URL}, webhook.WithRetry(1, time.Millisecond, time.Millisecond))
		require.ErrorIs(t, err, webhook.ErrTemporaryFailure)
		assert.ErrorIs(t, err, webhook.ErrWebhookDeliveryFailed)
	})

	t.Run("rejects bad urls", func(t *testing.T) {
		t.Parallel()
		sender := webhook.NewSender(nil, "")
		for _, u := range []string{"", "ftp://x", "http://"} {
			assert.ErrorIs(t, sender.Send(context.Background(), u, "x"), webhook.ErrInvalidURL, u)
		}
	})
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"a":1}`)
	sig, err := webhook.SignPayload("k", payload)
	require.NoError(t, err)

	assert.NoError(t, webhook.VerifySignature("k", payload, sig, time.Minute))
	assert.ErrorIs(t, webhook.VerifySignature("other", payload, sig, 0), webhook.ErrInvalidSignature)
	assert.ErrorIs(t, webhook.VerifySignature("k", []byte(`{"a":2}`), sig, 0), webhook.ErrInvalidSignature)

	sig.Timestamp = time.Now().Add(-time.Hour).Unix()
	assert.ErrorIs(t, webhook.VerifySignature("k", payload, sig, time.Minute), webhook.ErrInvalidSignature)

	_, err = webhook.SignPayload("", payload)
	assert.ErrorIs(t, err, webhook.ErrInvalidConfiguration)
}
