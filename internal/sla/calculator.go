package sla

import (
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// DefaultNearDueRatio marks a pending metric near due once elapsed time
// reaches this fraction of the limit.
const DefaultNearDueRatio = 0.8

// severity orders classifications from most to least severe when the two
// metrics disagree.
var severity = map[domain.MetricStatus]int{
	domain.MetricStatusBreached:      6,
	domain.MetricStatusOverdueActive: 5,
	domain.MetricStatusNearDue:       4,
	domain.MetricStatusPaused:        3,
	domain.MetricStatusOnTrack:       2,
	domain.MetricStatusMet:           2,
	domain.MetricStatusNone:          1,
}

// MoreSevere returns the harsher of two classifications.
func MoreSevere(a, b domain.MetricStatus) domain.MetricStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// Inputs bundles everything needed to evaluate one ticket. Config may be
// nil when no active configuration exists for the priority.
type Inputs struct {
	Ticket      domain.Ticket
	Config      *domain.SLAConfiguration
	Transitions []domain.StatusTransition
}

// Calculator evaluates tickets against their configured limits. It is
// pure computation: no I/O, safe to call concurrently.
type Calculator struct {
	intervals    *IntervalCalculator
	paused       StatusSet
	nearDueRatio float64
	now          func() time.Time
}

// NewCalculator builds a calculator over the given calendar and paused
// status set.
func NewCalculator(cal *Calendar, paused StatusSet, nearDueRatio float64, now func() time.Time) *Calculator {
	if nearDueRatio <= 0 || nearDueRatio >= 1 {
		nearDueRatio = DefaultNearDueRatio
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{
		intervals:    NewIntervalCalculator(cal),
		paused:       paused,
		nearDueRatio: nearDueRatio,
		now:          now,
	}
}

// ElapsedExcludingPauses measures working time between start and end with
// the ticket's pause intervals subtracted.
func (c *Calculator) ElapsedExcludingPauses(start, end time.Time, transitions []domain.StatusTransition) (float64, error) {
	pauses := PauseIntervals(transitions, c.paused, c.now())
	return c.intervals.ElapsedBusinessHours(start, end, pauses)
}

// Status computes both metrics and the overall classification for a
// ticket. A configuration reset excludes tickets opened before the reset
// instant: both metrics come back sem_sla.
func (c *Calculator) Status(in Inputs) (domain.SLAStatus, error) {
	now := c.now()
	status := domain.SLAStatus{
		TicketID:   in.Ticket.ID,
		ComputedAt: now,
	}

	cfg := in.Config
	if cfg == nil || !cfg.Active || predatesReset(in.Ticket, cfg) {
		status.Response = domain.MetricResult{Status: domain.MetricStatusNone}
		status.Resolution = domain.MetricResult{Status: domain.MetricStatusNone}
		status.Overall = domain.MetricStatusNone
		return status, nil
	}

	pauses := PauseIntervals(in.Transitions, c.paused, now)
	pausedNow := c.paused.Contains(in.Ticket.Status)

	response, err := c.metric(in.Ticket.OpenedAt, in.Ticket.FirstResponseAt, cfg.ResponseHours, pauses, pausedNow, now)
	if err != nil {
		return domain.SLAStatus{}, err
	}
	resolution, err := c.metric(in.Ticket.OpenedAt, in.Ticket.TerminalAt(), cfg.ResolutionHours, pauses, pausedNow, now)
	if err != nil {
		return domain.SLAStatus{}, err
	}

	status.Response = response
	status.Resolution = resolution
	status.Overall = MoreSevere(response.Status, resolution.Status)
	return status, nil
}

func (c *Calculator) metric(openedAt time.Time, terminal *time.Time, limit float64, pauses []Interval, pausedNow bool, now time.Time) (domain.MetricResult, error) {
	end := now
	done := terminal != nil
	if done {
		end = *terminal
	}
	elapsed, err := c.intervals.ElapsedBusinessHours(openedAt, end, pauses)
	if err != nil {
		return domain.MetricResult{}, err
	}

	result := domain.MetricResult{
		ElapsedHours: elapsed,
		LimitHours:   limit,
	}
	switch {
	case done && elapsed <= limit:
		result.Status = domain.MetricStatusMet
	case done:
		result.Status = domain.MetricStatusBreached
	case pausedNow:
		result.Status = domain.MetricStatusPaused
	case elapsed > limit:
		result.Status = domain.MetricStatusOverdueActive
	case elapsed >= c.nearDueRatio*limit:
		result.Status = domain.MetricStatusNearDue
	default:
		result.Status = domain.MetricStatusOnTrack
	}
	return result, nil
}

// predatesReset reports whether the ticket was opened before the
// configuration's last reset and must therefore be ignored.
func predatesReset(t domain.Ticket, cfg *domain.SLAConfiguration) bool {
	return cfg.LastResetAt != nil && t.OpenedAt.Before(*cfg.LastResetAt)
}
