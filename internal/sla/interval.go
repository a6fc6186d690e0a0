package sla

import (
	"errors"
	"time"
)

// ErrInvalidRange signals that an interval's end precedes its start. It
// is a data/programming error and is never retried.
var ErrInvalidRange = errors.New("interval end precedes start")

// Interval is a half-open span of wall-clock time [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// clip intersects the interval with [start, end); the second return is
// false when the intersection is empty.
func (iv Interval) clip(start, end time.Time) (Interval, bool) {
	s, e := iv.Start, iv.End
	if s.Before(start) {
		s = start
	}
	if e.After(end) {
		e = end
	}
	if !s.Before(e) {
		return Interval{}, false
	}
	return Interval{Start: s, End: e}, true
}

// IntervalCalculator measures elapsed working time against a calendar.
type IntervalCalculator struct {
	cal *Calendar
}

// NewIntervalCalculator wraps a calendar.
func NewIntervalCalculator(cal *Calendar) *IntervalCalculator {
	return &IntervalCalculator{cal: cal}
}

// ElapsedBusinessHours returns the working time between start and end in
// hours, excluding non-business periods and subtracting the portion of
// each exclusion interval that overlaps business time. Exclusions fully
// outside [start, end) are ignored; partial overlaps are clipped. The
// result is clamped to zero against floating error.
func (ic *IntervalCalculator) ElapsedBusinessHours(start, end time.Time, exclusions []Interval) (float64, error) {
	if end.Before(start) {
		return 0, ErrInvalidRange
	}
	if !end.After(start) {
		return 0, nil
	}

	total := ic.businessSpan(start, end)
	for _, ex := range exclusions {
		clipped, ok := ex.clip(start, end)
		if !ok {
			continue
		}
		total -= ic.businessSpan(clipped.Start, clipped.End)
	}
	if total < 0 {
		total = 0
	}
	return total, nil
}

// businessSpan walks day by day from start to end summing the clipped
// business window of each day, in hours.
func (ic *IntervalCalculator) businessSpan(start, end time.Time) float64 {
	var hours float64
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for !day.After(end) {
		win, ok := ic.cal.WindowFor(day)
		if ok {
			winStart := day.Add(time.Duration(win.StartMinute) * time.Minute)
			winEnd := day.Add(time.Duration(win.EndMinute) * time.Minute)
			if winStart.Before(start) {
				winStart = start
			}
			if winEnd.After(end) {
				winEnd = end
			}
			if winEnd.After(winStart) {
				hours += winEnd.Sub(winStart).Hours()
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return hours
}
