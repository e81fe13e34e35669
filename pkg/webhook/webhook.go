package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sethvargo/go-retry"
)

// Request is a raw outbound call.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Header map[string]string
}

// Sender delivers HTTP calls with retries on temporary failures.
type Sender struct {
	client    *http.Client
	userAgent string
}

// NewSender creates a sender over a pooled go-cleanhttp client. A nil
// client uses the pooled default.
func NewSender(client *http.Client, userAgent string) *Sender {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	if userAgent == "" {
		userAgent = "levelqueue/1.0"
	}
	return &Sender{client: client, userAgent: userAgent}
}

// Send POSTs data as JSON to webhookURL.
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	opts = append([]SendOption{WithHeader("Content-Type", "application/json")}, opts...)
	_, err = s.Do(ctx, Request{Method: http.MethodPost, URL: webhookURL, Body: payload}, opts...)
	return err
}

// Do performs req and returns the final status code. 4xx responses other
// than 408, 425 and 429 fail with ErrPermanentFailure without retry.
func (s *Sender) Do(ctx context.Context, req Request, opts ...SendOption) (int, error) {
	if err := validateURL(req.URL); err != nil {
		return 0, err
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	options := defaultSendOptions()
	for k, v := range req.Header {
		options.headers[k] = v
	}
	for _, opt := range opts {
		opt(options)
	}

	backoff := retry.WithMaxRetries(options.maxRetries,
		retry.WithCappedDuration(options.backoffMax, retry.NewExponential(options.backoffBase)))

	var status int
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		status, err = s.attempt(ctx, req, options)
		if err == nil {
			return nil
		}
		if isPermanent(status) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
		return retry.RetryableError(fmt.Errorf("%w: %w", ErrTemporaryFailure, err))
	})
	if err != nil {
		return status, fmt.Errorf("%w: %w", ErrWebhookDeliveryFailed, err)
	}
	return status, nil
}

func (s *Sender) attempt(ctx context.Context, req Request, options *sendOptions) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("User-Agent", s.userAgent)
	for k, v := range options.headers {
		httpReq.Header.Set(k, v)
	}
	if options.signatureSecret != "" {
		sig, err := SignPayload(options.signatureSecret, req.Body)
		if err != nil {
			return 0, err
		}
		for k, v := range sig.Headers() {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	text := strings.ReplaceAll(strings.TrimSpace(string(msg)), "\n", " ")
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text != "" {
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, text)
	}
	return resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
