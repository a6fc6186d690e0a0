package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/domain"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testConfig(priority domain.TicketPriority, responseHours, resolutionHours float64) *domain.SLAConfiguration {
	return &domain.SLAConfiguration{
		ID:              1,
		Priority:        priority,
		ResponseHours:   responseHours,
		ResolutionHours: resolutionHours,
		Active:          true,
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

// Ticket opened Monday 08:00, business hours 08:00-18:00 Mon-Fri, first
// response Monday 14:00: response elapsed is 6h against a 4h limit.
func TestStatusEndToEndMondayScenario(t *testing.T) {
	calc := NewCalculator(weekdayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(day(1, 15, 0)))

	// 2024-01-01 is a Monday.
	ticket := domain.Ticket{
		ID:              7,
		Priority:        domain.TicketPriorityNormal,
		Status:          "Em Andamento",
		OpenedAt:        day(1, 8, 0),
		FirstResponseAt: ptrTime(day(1, 14, 0)),
	}
	status, err := calc.Status(Inputs{Ticket: ticket, Config: testConfig(ticket.Priority, 4, 8)})
	require.NoError(t, err)

	assert.InDelta(t, 6.0, status.Response.ElapsedHours, 1e-9)
	assert.Equal(t, domain.MetricStatusBreached, status.Response.Status)
	// Resolution is still pending at 7h elapsed against 8h: near due.
	assert.InDelta(t, 7.0, status.Resolution.ElapsedHours, 1e-9)
	assert.Equal(t, domain.MetricStatusNearDue, status.Resolution.Status)
	assert.Equal(t, domain.MetricStatusBreached, status.Overall)
}

func TestMetricClassificationBoundaries(t *testing.T) {
	// Single-day window keeps arithmetic exact.
	calc := NewCalculator(weekdayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(day(1, 18, 0)))

	tests := []struct {
		name     string
		ticket   domain.Ticket
		limit    float64
		expected domain.MetricStatus
	}{
		{
			name: "terminal at exactly the limit is met",
			ticket: domain.Ticket{
				OpenedAt:    day(1, 8, 0),
				CompletedAt: ptrTime(day(1, 12, 0)),
				Status:      "Concluído",
			},
			limit:    4,
			expected: domain.MetricStatusMet,
		},
		{
			name: "terminal just past the limit is breached",
			ticket: domain.Ticket{
				OpenedAt:    day(1, 8, 0),
				CompletedAt: ptrTime(day(1, 12, 1)),
				Status:      "Concluído",
			},
			limit:    4,
			expected: domain.MetricStatusBreached,
		},
		{
			name: "pending past the limit is actively overdue",
			ticket: domain.Ticket{
				OpenedAt: day(1, 8, 0),
				Status:   "Em Andamento",
			},
			limit:    4,
			expected: domain.MetricStatusOverdueActive,
		},
		{
			name: "pending at 80 percent is near due",
			ticket: domain.Ticket{
				OpenedAt: day(1, 8, 0),
				Status:   "Em Andamento",
			},
			limit:    12.5, // 10h elapsed == 0.8 * 12.5
			expected: domain.MetricStatusNearDue,
		},
		{
			name: "pending below threshold is on track",
			ticket: domain.Ticket{
				OpenedAt: day(1, 8, 0),
				Status:   "Em Andamento",
			},
			limit:    40,
			expected: domain.MetricStatusOnTrack,
		},
		{
			name: "currently paused pending metric",
			ticket: domain.Ticket{
				OpenedAt: day(1, 8, 0),
				Status:   "Aguardando Cliente",
			},
			limit:    40,
			expected: domain.MetricStatusPaused,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.ticket.Priority = domain.TicketPriorityNormal
			status, err := calc.Status(Inputs{
				Ticket: tc.ticket,
				Config: testConfig(tc.ticket.Priority, tc.limit, tc.limit),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status.Resolution.Status)
		})
	}
}

func TestStatusWithoutConfigurationDegradesToNoSLA(t *testing.T) {
	calc := NewCalculator(weekdayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(day(1, 12, 0)))

	ticket := domain.Ticket{ID: 3, OpenedAt: day(1, 8, 0), Status: "Aberto"}
	status, err := calc.Status(Inputs{Ticket: ticket})
	require.NoError(t, err)

	assert.Equal(t, domain.MetricStatusNone, status.Response.Status)
	assert.Equal(t, domain.MetricStatusNone, status.Resolution.Status)
	assert.Equal(t, domain.MetricStatusNone, status.Overall)
}

// A reset applies to live evaluation: tickets opened before the reset
// instant classify sem_sla on both metrics.
func TestStatusTicketPredatingResetIsExcluded(t *testing.T) {
	calc := NewCalculator(weekdayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(day(8, 12, 0)))

	cfg := testConfig(domain.TicketPriorityHigh, 4, 8)
	cfg.LastResetAt = ptrTime(day(5, 0, 0))

	before := domain.Ticket{ID: 1, Priority: cfg.Priority, OpenedAt: day(2, 9, 0), Status: "Em Andamento"}
	status, err := calc.Status(Inputs{Ticket: before, Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, domain.MetricStatusNone, status.Overall)

	after := domain.Ticket{ID: 2, Priority: cfg.Priority, OpenedAt: day(8, 9, 0), Status: "Em Andamento"}
	status, err = calc.Status(Inputs{Ticket: after, Config: cfg})
	require.NoError(t, err)
	assert.NotEqual(t, domain.MetricStatusNone, status.Overall)
}

func TestStatusPauseDeduction(t *testing.T) {
	now := day(1, 16, 0)
	calc := NewCalculator(weekdayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(now))

	ticket := domain.Ticket{
		ID:       9,
		Priority: domain.TicketPriorityNormal,
		Status:   "Em Andamento",
		OpenedAt: day(1, 8, 0),
	}
	transitions := []domain.StatusTransition{
		transition(1, "Aberto", day(1, 8, 0)),
		transition(2, "Aguardando Cliente", day(1, 9, 0)),
		transition(3, "Em Andamento", day(1, 12, 0)),
	}
	status, err := calc.Status(Inputs{
		Ticket:      ticket,
		Config:      testConfig(ticket.Priority, 24, 24),
		Transitions: transitions,
	})
	require.NoError(t, err)
	// 8h wall-clock business time minus the 3h pause.
	assert.InDelta(t, 5.0, status.Resolution.ElapsedHours, 1e-9)
}

func TestMoreSevereOrdering(t *testing.T) {
	assert.Equal(t, domain.MetricStatusBreached, MoreSevere(domain.MetricStatusBreached, domain.MetricStatusOverdueActive))
	assert.Equal(t, domain.MetricStatusOverdueActive, MoreSevere(domain.MetricStatusNearDue, domain.MetricStatusOverdueActive))
	assert.Equal(t, domain.MetricStatusNearDue, MoreSevere(domain.MetricStatusPaused, domain.MetricStatusNearDue))
	assert.Equal(t, domain.MetricStatusPaused, MoreSevere(domain.MetricStatusPaused, domain.MetricStatusOnTrack))
	assert.Equal(t, domain.MetricStatusMet, MoreSevere(domain.MetricStatusMet, domain.MetricStatusNone))
}
