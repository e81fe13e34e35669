package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/levelqueue/pkg/clock"
	"github.com/dmitrymomot/levelqueue/pkg/logger"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
)

func TestSchedules(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 3, 5, 10, 30, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		name     string
		schedule queue.Schedule
		want     time.Time
		str      string
	}{
		{"interval", queue.EveryInterval(15 * time.Minute), from.Add(15 * time.Minute), "every 15m0s"},
		{"hourly later this hour", queue.HourlyAt(45), time.Date(2025, 3, 5, 10, 45, 0, 0, time.UTC), "hourly at :45"},
		{"hourly next hour", queue.HourlyAt(30), time.Date(2025, 3, 5, 11, 30, 0, 0, time.UTC), "hourly at :30"},
		{"daily today", queue.DailyAt(23, 0), time.Date(2025, 3, 5, 23, 0, 0, 0, time.UTC), "daily at 23:00"},
		{"daily tomorrow", queue.DailyAt(3, 0), time.Date(2025, 3, 6, 3, 0, 0, 0, time.UTC), "daily at 03:00"},
		{"weekly this week", queue.WeeklyOn(time.Friday, 9, 0), time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC), "weekly on Friday at 09:00"},
		{"weekly same day passed", queue.WeeklyOn(time.Wednesday, 9, 0), time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), "weekly on Wednesday at 09:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.schedule.Next(from))
			assert.Equal(t, tt.str, tt.schedule.String())
		})
	}
}

func TestScheduler(t *testing.T) {
	t.Parallel()

	t.Run("runs due tasks once per slot", func(t *testing.T) {
		t.Parallel()

		c := clock.NewMock(epoch)
		s := queue.NewScheduler(queue.WithSchedulerClock(c), queue.WithSchedulerLogger(logger.Discard()))

		var slots []time.Time
		require.NoError(t, s.AddTask("recalc", queue.EveryInterval(time.Hour), func(ctx context.Context, at time.Time) error {
			slots = append(slots, at)
			return nil
		}))

		assert.Zero(t, s.Tick(context.Background()))

		c.Advance(time.Hour)
		assert.Equal(t, 1, s.Tick(context.Background()))
		assert.Zero(t, s.Tick(context.Background()))

		c.Advance(time.Hour)
		assert.Equal(t, 1, s.Tick(context.Background()))
		assert.Equal(t, []time.Time{epoch.Add(time.Hour), epoch.Add(2 * time.Hour)}, slots)
	})

	t.Run("failing task is rescheduled", func(t *testing.T) {
		t.Parallel()

		c := clock.NewMock(epoch)
		s := queue.NewScheduler(queue.WithSchedulerClock(c), queue.WithSchedulerLogger(logger.Discard()))
		calls := 0
		require.NoError(t, s.AddTask("flaky", queue.EveryInterval(time.Minute), func(context.Context, time.Time) error {
			calls++
			return errors.New("enqueue failed")
		}))

		c.Advance(time.Minute)
		s.Tick(context.Background())
		c.Advance(time.Minute)
		s.Tick(context.Background())
		assert.Equal(t, 2, calls)
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		t.Parallel()

		s := queue.NewScheduler(queue.WithSchedulerLogger(logger.Discard()))
		noop := func(context.Context, time.Time) error { return nil }
		require.NoError(t, s.AddTask("b", queue.HourlyAt(0), noop))
		require.NoError(t, s.AddTask("a", queue.DailyAt(1, 0), noop))
		assert.ErrorIs(t, s.AddTask("a", queue.DailyAt(2, 0), noop), queue.ErrTaskAlreadyRegistered)
		assert.Equal(t, []string{"a", "b"}, s.ListTasks())
	})

	t.Run("start without tasks", func(t *testing.T) {
		t.Parallel()

		s := queue.NewScheduler(queue.WithSchedulerLogger(logger.Discard()))
		assert.ErrorIs(t, s.Start(context.Background()), queue.ErrSchedulerNotConfigured)
	})
}
