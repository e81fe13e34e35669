// Package clock abstracts the wall clock so time-dependent code (queue
// eligibility, schedule windows, retry backoff) can be driven from tests.
//
// Production code uses Real. Tests use Mock and move time forward explicitly:
//
//	c := clock.NewMock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
//	c.Advance(2 * time.Second)
package clock
