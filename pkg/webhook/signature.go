package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// SignatureHeaders carries an HMAC signature bound to a timestamp.
type SignatureHeaders struct {
	Signature string
	Timestamp int64
	ID        string
}

func (s SignatureHeaders) Headers() map[string]string {
	return map[string]string{
		HeaderSignature: s.Signature,
		HeaderTimestamp: strconv.FormatInt(s.Timestamp, 10),
		HeaderID:        s.ID,
	}
}

// SignPayload computes HMAC-SHA256(secret, timestamp + "." + payload).
func SignPayload(secret string, payload []byte) (SignatureHeaders, error) {
	if secret == "" {
		return SignatureHeaders{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	ts := time.Now().Unix()
	return SignatureHeaders{
		Signature: sign(secret, ts, payload),
		Timestamp: ts,
		ID:        uuid.NewString(),
	}, nil
}

// VerifySignature checks headers against payload. A positive maxAge rejects
// stale timestamps.
func VerifySignature(secret string, payload []byte, headers SignatureHeaders, maxAge time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if headers.Signature == "" {
		return fmt.Errorf("%w: signature is missing", ErrInvalidSignature)
	}
	if maxAge > 0 {
		age := time.Since(time.Unix(headers.Timestamp, 0))
		if age > maxAge || age < -time.Minute {
			return fmt.Errorf("%w: timestamp outside allowed window", ErrInvalidSignature)
		}
	}
	if !hmac.Equal([]byte(sign(secret, headers.Timestamp, payload)), []byte(headers.Signature)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

// ExtractSignatureHeaders reads signature headers from h.
func ExtractSignatureHeaders(h http.Header) (SignatureHeaders, error) {
	sig := SignatureHeaders{Signature: h.Get(HeaderSignature), ID: h.Get(HeaderID)}
	if ts := h.Get(HeaderTimestamp); ts != "" {
		v, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return SignatureHeaders{}, fmt.Errorf("%w: invalid timestamp format", ErrInvalidSignature)
		}
		sig.Timestamp = v
	}
	if sig.Signature == "" || sig.Timestamp == 0 {
		return SignatureHeaders{}, fmt.Errorf("%w: missing required signature headers", ErrInvalidSignature)
	}
	return sig, nil
}

func sign(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", ts)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
