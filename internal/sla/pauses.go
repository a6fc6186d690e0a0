package sla

import (
	"sort"
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// StatusSet tags which ticket status labels suspend SLA accounting. The
// set is injected at construction so the calculator stays decoupled from
// the ticketing workflow's vocabulary.
type StatusSet map[string]bool

// NewStatusSet builds a set from configured labels.
func NewStatusSet(labels []string) StatusSet {
	set := make(StatusSet, len(labels))
	for _, l := range labels {
		if l != "" {
			set[l] = true
		}
	}
	return set
}

// Contains reports whether the status is tagged paused.
func (s StatusSet) Contains(status string) bool {
	return s[status]
}

// PauseIntervals reconstructs the pause windows of a ticket from its
// status transition log. A transition into a paused status opens an
// interval; the next transition or "now" closes it. Consecutive paused
// transitions merge into a single interval. An empty log yields no
// pauses.
func PauseIntervals(transitions []domain.StatusTransition, paused StatusSet, now time.Time) []Interval {
	if len(transitions) == 0 {
		return nil
	}
	ordered := make([]domain.StatusTransition, len(transitions))
	copy(ordered, transitions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})

	var intervals []Interval
	var open *Interval
	for i, tr := range ordered {
		end := now
		if i+1 < len(ordered) {
			end = ordered[i+1].StartedAt
		} else if tr.EndedAt != nil {
			end = *tr.EndedAt
		}
		if !paused.Contains(tr.Status) {
			if open != nil {
				intervals = append(intervals, *open)
				open = nil
			}
			continue
		}
		if end.Before(tr.StartedAt) {
			end = tr.StartedAt
		}
		if open != nil {
			// adjacent paused transitions extend the same interval
			open.End = end
			continue
		}
		open = &Interval{Start: tr.StartedAt, End: end}
	}
	if open != nil {
		intervals = append(intervals, *open)
	}
	return intervals
}
