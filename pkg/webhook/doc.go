// Package webhook performs outbound HTTP deliveries for notification and
// revalidation jobs.
//
// Sender wraps a pooled go-cleanhttp client and retries temporary failures
// (network errors, 5xx, 408, 425, 429) with capped exponential backoff from
// go-retry. Other 4xx responses fail immediately with ErrPermanentFailure,
// which queue handlers translate into a permanent message failure.
//
//	sender := webhook.NewSender(nil, "")
//	err := sender.Send(ctx, url, payload, webhook.WithSignature(secret))
//
// Payloads can be signed with HMAC-SHA256 bound to a timestamp; receivers
// verify with VerifySignature.
package webhook
