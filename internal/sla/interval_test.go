package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/domain"
)

// weekdayCalendar works 08:00-18:00 Monday through Friday.
func weekdayCalendar(holidays ...domain.Holiday) *Calendar {
	hours := make([]domain.BusinessHours, 0, 5)
	for wd := 1; wd <= 5; wd++ {
		hours = append(hours, domain.BusinessHours{
			Weekday:     wd,
			StartMinute: 8 * 60,
			EndMinute:   18 * 60,
			Active:      true,
		})
	}
	return NewCalendar(hours, holidays)
}

// 2024-01-05 is a Friday.
func day(dayOfMonth, hour, minute int) time.Time {
	return time.Date(2024, time.January, dayOfMonth, hour, minute, 0, 0, time.UTC)
}

func TestElapsedBusinessHoursSpansWeekend(t *testing.T) {
	ic := NewIntervalCalculator(weekdayCalendar())

	// Friday 16:00 -> Monday 10:00: 2h Friday + 0h weekend + 2h Monday.
	got, err := ic.ElapsedBusinessHours(day(5, 16, 0), day(8, 10, 0), nil)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got, 1e-9)
}

func TestElapsedBusinessHoursClipsToWindow(t *testing.T) {
	ic := NewIntervalCalculator(weekdayCalendar())

	tests := []struct {
		name       string
		start, end time.Time
		want       float64
	}{
		{"inside one day", day(3, 9, 0), day(3, 12, 30), 3.5},
		{"starts before window", day(3, 6, 0), day(3, 10, 0), 2},
		{"ends after window", day(3, 17, 0), day(3, 23, 0), 1},
		{"entirely outside window", day(3, 19, 0), day(3, 23, 0), 0},
		{"full saturday", day(6, 0, 0), day(7, 0, 0), 0},
		{"zero-length range", day(3, 9, 0), day(3, 9, 0), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ic.ElapsedBusinessHours(tc.start, tc.end, nil)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestElapsedBusinessHoursInvalidRange(t *testing.T) {
	ic := NewIntervalCalculator(weekdayCalendar())

	_, err := ic.ElapsedBusinessHours(day(4, 10, 0), day(3, 10, 0), nil)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestElapsedBusinessHoursSkipsHolidays(t *testing.T) {
	holiday := domain.Holiday{Date: day(4, 0, 0), Name: "Feriado", Active: true}
	ic := NewIntervalCalculator(weekdayCalendar(holiday))

	// Wednesday 08:00 -> Friday 18:00 with Thursday a holiday.
	got, err := ic.ElapsedBusinessHours(day(3, 8, 0), day(5, 18, 0), nil)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, got, 1e-9)
}

func TestElapsedBusinessHoursExclusions(t *testing.T) {
	ic := NewIntervalCalculator(weekdayCalendar())

	tests := []struct {
		name       string
		exclusions []Interval
		want       float64
	}{
		{"no exclusions", nil, 10},
		{"pause inside business time", []Interval{{day(3, 10, 0), day(3, 12, 0)}}, 8},
		{"pause outside business hours deducts nothing", []Interval{{day(3, 19, 0), day(3, 22, 0)}}, 10},
		{"pause fully outside range ignored", []Interval{{day(4, 9, 0), day(4, 11, 0)}}, 10},
		{"partially overlapping pause is clipped", []Interval{{day(3, 16, 0), day(4, 12, 0)}}, 8},
		{"pause straddling window edge", []Interval{{day(3, 7, 0), day(3, 9, 0)}}, 9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Wednesday full business day 08:00-18:00.
			got, err := ic.ElapsedBusinessHours(day(3, 8, 0), day(3, 18, 0), tc.exclusions)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestElapsedBusinessHoursClampedAtZero(t *testing.T) {
	ic := NewIntervalCalculator(weekdayCalendar())

	// Overlapping exclusions would deduct more than the total; the
	// result must never go negative.
	exclusions := []Interval{
		{day(3, 8, 0), day(3, 18, 0)},
		{day(3, 9, 0), day(3, 17, 0)},
	}
	got, err := ic.ElapsedBusinessHours(day(3, 8, 0), day(3, 18, 0), exclusions)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}
