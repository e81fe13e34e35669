package webhook

import "errors"

var (
	ErrWebhookDeliveryFailed = errors.New("webhook delivery failed")
	ErrInvalidConfiguration  = errors.New("invalid webhook configuration")
	ErrPermanentFailure      = errors.New("permanent webhook failure")
	ErrTemporaryFailure      = errors.New("temporary webhook failure")
	ErrInvalidPayload        = errors.New("invalid webhook payload")
	ErrInvalidURL            = errors.New("invalid webhook URL")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
)
