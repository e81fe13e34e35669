package queue

import (
	"fmt"
	"time"
)

// Schedule determines when a periodic task should run next
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

type intervalSchedule time.Duration

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(time.Duration(s))
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", time.Duration(s))
}

// clockSchedule fires at a wall-clock minute, optionally pinned to an hour and weekday.
type clockSchedule struct {
	hour    int // -1: every hour
	minute  int
	weekday *time.Weekday
}

func (s clockSchedule) Next(from time.Time) time.Time {
	hour := s.hour
	if hour < 0 {
		hour = from.Hour()
	}
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, s.minute, 0, 0, from.Location())

	switch {
	case s.weekday != nil:
		next = next.AddDate(0, 0, (int(*s.weekday)-int(from.Weekday())+7)%7)
		if !next.After(from) {
			next = next.AddDate(0, 0, 7)
		}
	case s.hour < 0:
		if !next.After(from) {
			next = next.Add(time.Hour)
		}
	default:
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
	}
	return next
}

func (s clockSchedule) String() string {
	switch {
	case s.weekday != nil:
		return fmt.Sprintf("weekly on %s at %02d:%02d", *s.weekday, s.hour, s.minute)
	case s.hour < 0:
		return fmt.Sprintf("hourly at :%02d", s.minute)
	default:
		return fmt.Sprintf("daily at %02d:%02d", s.hour, s.minute)
	}
}

// EveryInterval creates a schedule that runs at fixed intervals
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule(d)
}

// HourlyAt creates a schedule that runs every hour at the given minute
func HourlyAt(minute int) Schedule {
	return clockSchedule{hour: -1, minute: minute}
}

// DailyAt creates a schedule that runs daily at the given time
func DailyAt(hour, minute int) Schedule {
	return clockSchedule{hour: hour, minute: minute}
}

// WeeklyOn creates a schedule that runs weekly on the given day and time
func WeeklyOn(weekday time.Weekday, hour, minute int) Schedule {
	return clockSchedule{hour: hour, minute: minute, weekday: &weekday}
}
