package webhook

import (
	"time"
)

type sendOptions struct {
	timeout         time.Duration
	headers         map[string]string
	maxRetries      uint64
	backoffBase     time.Duration
	backoffMax      time.Duration
	signatureSecret string
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:     10 * time.Second,
		headers:     make(map[string]string),
		maxRetries:  2,
		backoffBase: 500 * time.Millisecond,
		backoffMax:  5 * time.Second,
	}
}

// SendOption configures a single delivery.
type SendOption func(*sendOptions)

// WithTimeout bounds each HTTP attempt. Default 10s.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithHeaders adds request headers.
func WithHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) {
		for k, v := range headers {
			if k != "" && v != "" {
				o.headers[k] = v
			}
		}
	}
}

// WithRetry sets how many times a temporary failure is retried and the
// exponential backoff between attempts.
func WithRetry(retries int, base, max time.Duration) SendOption {
	return func(o *sendOptions) {
		if retries >= 0 {
			o.maxRetries = uint64(retries)
		}
		if base > 0 {
			o.backoffBase = base
		}
		if max > 0 {
			o.backoffMax = max
		}
	}
}

// WithNoRetry delivers exactly once. Useful inside queue handlers that rely
// on the queue's own retry policy.
func WithNoRetry() SendOption {
	return WithRetry(0, 0, 0)
}

// WithSignature signs the body with HMAC-SHA256 using secret.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.signatureSecret = secret
	}
}
