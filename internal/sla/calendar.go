package sla

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

const dateKeyLayout = "2006-01-02"

// Window is the working span of a single day, in minutes from midnight.
type Window struct {
	StartMinute int
	EndMinute   int
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return time.Duration(w.EndMinute-w.StartMinute) * time.Minute
}

// Calendar resolves the business window for any date, combining the
// per-weekday table with the holiday set. It is immutable after
// construction and safe for concurrent use.
type Calendar struct {
	windows  map[time.Weekday]Window
	holidays map[string]struct{}
}

// NewCalendar builds a calendar from configuration rows. Inactive rows
// are ignored; an active holiday blanks the whole date.
func NewCalendar(hours []domain.BusinessHours, holidays []domain.Holiday) *Calendar {
	c := &Calendar{
		windows:  make(map[time.Weekday]Window, len(hours)),
		holidays: make(map[string]struct{}, len(holidays)),
	}
	for _, h := range hours {
		if !h.Active || h.EndMinute <= h.StartMinute {
			continue
		}
		c.windows[time.Weekday(h.Weekday)] = Window{StartMinute: h.StartMinute, EndMinute: h.EndMinute}
	}
	for _, h := range holidays {
		if !h.Active {
			continue
		}
		c.holidays[h.Date.Format(dateKeyLayout)] = struct{}{}
	}
	return c
}

// WindowFor returns the business window for the given day, or false when
// the day is fully non-working (no active row, or a holiday).
func (c *Calendar) WindowFor(day time.Time) (Window, bool) {
	if _, holiday := c.holidays[day.Format(dateKeyLayout)]; holiday {
		return Window{}, false
	}
	w, ok := c.windows[day.Weekday()]
	return w, ok
}

// IsHoliday reports whether the date is an active holiday.
func (c *Calendar) IsHoliday(day time.Time) bool {
	_, ok := c.holidays[day.Format(dateKeyLayout)]
	return ok
}
