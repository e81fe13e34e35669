package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
)

func TestMock(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewMock(start)
	assert.Equal(t, start, c.Now())

	got := c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), got)
	assert.Equal(t, got, c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestReal(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC()
	now := clock.Real().Now()
	assert.False(t, now.Before(before.Add(-time.Second)))
	assert.Equal(t, time.UTC, now.Location())
}
