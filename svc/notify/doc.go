// Package notify delivers the outbound notification messages of the queue:
// EMAIL_NOTIFICATION through pkg/email, PUSH_NOTIFICATION to a push gateway,
// DISCORD_NOTIFICATION to per-channel Discord webhooks and FETCH as a raw
// HTTP call (used for cache revalidation).
//
// Delivery errors that cannot succeed on retry (unknown user, invalid
// address, 4xx responses) are returned as queue.Permanent so the dispatcher
// fails the message at once.
package notify
