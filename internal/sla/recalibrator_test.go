package sla

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/domain"
)

// fakeRecalStore serves tickets from memory with the same filtering the
// SQL repositories perform.
type fakeRecalStore struct {
	configs        []domain.SLAConfiguration
	tickets        []domain.Ticket
	transitions    map[int64][]domain.StatusTransition
	transitionsErr map[int64]error
}

func (f *fakeRecalStore) ActiveConfigurations(ctx context.Context) ([]domain.SLAConfiguration, error) {
	var out []domain.SLAConfiguration
	for _, c := range f.configs {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRecalStore) CompletedTickets(ctx context.Context, priority domain.TicketPriority, openedSince time.Time, completedAfter *time.Time) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		terminal := t.TerminalAt()
		if terminal == nil || t.Priority != priority || t.DeletedAt != nil {
			continue
		}
		if t.OpenedAt.Before(openedSince) {
			continue
		}
		if completedAfter != nil && !terminal.After(*completedAfter) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRecalStore) TransitionsFor(ctx context.Context, ticketID int64) ([]domain.StatusTransition, error) {
	if err := f.transitionsErr[ticketID]; err != nil {
		return nil, err
	}
	return f.transitions[ticketID], nil
}

// allDayCalendar works 00:00-24:00 every day so completion hours equal
// wall-clock hours, which keeps the expected P90 values readable.
func allDayCalendar() *Calendar {
	hours := make([]domain.BusinessHours, 0, 7)
	for wd := 0; wd <= 6; wd++ {
		hours = append(hours, domain.BusinessHours{Weekday: wd, StartMinute: 0, EndMinute: 24 * 60, Active: true})
	}
	return NewCalendar(hours, nil)
}

func completedTicket(id int64, priority domain.TicketPriority, openedAt time.Time, hours float64) domain.Ticket {
	done := openedAt.Add(time.Duration(hours * float64(time.Hour)))
	return domain.Ticket{
		ID:          id,
		Priority:    priority,
		Status:      "Concluído",
		OpenedAt:    openedAt,
		CompletedAt: &done,
	}
}

func TestRecalculateByPriorityBatch(t *testing.T) {
	now := day(20, 12, 0)
	store := &fakeRecalStore{
		configs: []domain.SLAConfiguration{
			{ID: 1, Priority: domain.TicketPriorityHigh, ResponseHours: 2, ResolutionHours: 8, Active: true},
		},
	}
	// Ten completions: 1h..10h. P90 index = floor(0.9*9) = 8 -> 9h.
	for i := 1; i <= 10; i++ {
		store.tickets = append(store.tickets,
			completedTicket(int64(i), domain.TicketPriorityHigh, day(10, 8, 0), float64(i)))
	}

	calc := NewCalculator(allDayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(now))
	r := NewRecalibrator(store, calc, Params{}, nil)
	r.now = fixedNow(now)

	recs, err := r.RecalculateByPriority(context.Background())
	require.NoError(t, err)
	require.Contains(t, recs, domain.TicketPriorityHigh)

	rec := recs[domain.TicketPriorityHigh]
	assert.Equal(t, 10, rec.SampleCount)
	assert.InDelta(t, 9.0, rec.P90Hours, 1e-9)
	assert.InDelta(t, 9.0*1.15, rec.RecommendedHours, 0.01)
	assert.Equal(t, 80, rec.CurrentCompliancePct)          // 8 of 10 within 8h
	assert.Equal(t, 100, rec.RecommendedCompliancePct)     // all within 10.35h
	assert.Equal(t, 20, rec.ImprovementPct)
}

func TestRecalculateSkipsSparseAndOutlierSamples(t *testing.T) {
	now := day(20, 12, 0)
	store := &fakeRecalStore{
		configs: []domain.SLAConfiguration{
			{ID: 1, Priority: domain.TicketPriorityLow, ResolutionHours: 8, Active: true},
			{ID: 2, Priority: domain.TicketPriorityHigh, ResolutionHours: 8, Active: true},
		},
		tickets: []domain.Ticket{
			// Only one valid sample for low priority: skipped.
			completedTicket(1, domain.TicketPriorityLow, day(10, 8, 0), 3),
			// High priority: two valid plus one outlier past 720h.
			completedTicket(2, domain.TicketPriorityHigh, day(10, 8, 0), 4),
			completedTicket(3, domain.TicketPriorityHigh, day(10, 8, 0), 6),
			completedTicket(4, domain.TicketPriorityHigh, day(1, 0, 0), 800),
		},
	}

	calc := NewCalculator(allDayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(now))
	r := NewRecalibrator(store, calc, Params{}, nil)
	r.now = fixedNow(now)

	recs, err := r.RecalculateByPriority(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, recs, domain.TicketPriorityLow)
	require.Contains(t, recs, domain.TicketPriorityHigh)
	assert.Equal(t, 2, recs[domain.TicketPriorityHigh].SampleCount)
}

func TestRecalculateHonorsLastReset(t *testing.T) {
	now := day(20, 12, 0)
	reset := day(12, 0, 0)
	store := &fakeRecalStore{
		configs: []domain.SLAConfiguration{
			{ID: 1, Priority: domain.TicketPriorityHigh, ResolutionHours: 8, Active: true, LastResetAt: &reset},
		},
		tickets: []domain.Ticket{
			completedTicket(1, domain.TicketPriorityHigh, day(10, 8, 0), 4), // predates reset
			completedTicket(2, domain.TicketPriorityHigh, day(13, 8, 0), 5),
			completedTicket(3, domain.TicketPriorityHigh, day(14, 8, 0), 6),
		},
	}

	calc := NewCalculator(allDayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(now))
	r := NewRecalibrator(store, calc, Params{}, nil)
	r.now = fixedNow(now)

	recs, err := r.RecalculateByPriority(context.Background())
	require.NoError(t, err)
	require.Contains(t, recs, domain.TicketPriorityHigh)
	assert.Equal(t, 2, recs[domain.TicketPriorityHigh].SampleCount)
}

// Incremental runs folding one completion at a time must match a batch
// run over the same accumulated data at every checkpoint.
func TestIncrementalMatchesBatchAtEveryCheckpoint(t *testing.T) {
	for _, total := range []int{2, 10, 100} {
		t.Run(fmt.Sprintf("samples_%d", total), func(t *testing.T) {
			now := day(20, 12, 0)
			store := &fakeRecalStore{
				configs: []domain.SLAConfiguration{
					{ID: 1, Priority: domain.TicketPriorityNormal, ResolutionHours: 10, Active: true},
				},
			}

			calc := NewCalculator(allDayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(now))
			incremental := NewIncrementalRecalibrator(store, calc, Params{}, nil)
			incremental.now = fixedNow(now)

			for i := 1; i <= total; i++ {
				// Completions arrive in completed-at order, as they do in
				// production; the hours pattern mixes short and long ones.
				hours := float64((i*7)%13 + 1)
				completed := day(6, 0, 0).Add(time.Duration(i) * time.Hour)
				opened := completed.Add(-time.Duration(hours * float64(time.Hour)))
				store.tickets = append(store.tickets, domain.Ticket{
					ID:          int64(i),
					Priority:    domain.TicketPriorityNormal,
					Status:      "Concluído",
					OpenedAt:    opened,
					CompletedAt: &completed,
				})

				incRecs, err := incremental.Run(context.Background())
				require.NoError(t, err)

				batch := NewRecalibrator(store, calc, Params{}, nil)
				batch.now = fixedNow(now)
				batchRecs, err := batch.RecalculateByPriority(context.Background())
				require.NoError(t, err)

				assert.Equal(t, batchRecs[domain.TicketPriorityNormal], incRecs[domain.TicketPriorityNormal],
					"checkpoint %d", i)
			}
		})
	}
}

// Both recalibration modes count per-ticket failures into the
// recommendation instead of aborting.
func TestBatchAndIncrementalCountSkippedTickets(t *testing.T) {
	now := day(20, 12, 0)
	store := &fakeRecalStore{
		configs: []domain.SLAConfiguration{
			{ID: 1, Priority: domain.TicketPriorityHigh, ResolutionHours: 8, Active: true},
		},
		tickets: []domain.Ticket{
			completedTicket(1, domain.TicketPriorityHigh, day(10, 8, 0), 4),
			completedTicket(2, domain.TicketPriorityHigh, day(10, 9, 0), 6),
			completedTicket(3, domain.TicketPriorityHigh, day(10, 10, 0), 8),
		},
		transitionsErr: map[int64]error{3: errBroken},
	}
	calc := NewCalculator(allDayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(now))

	batch := NewRecalibrator(store, calc, Params{}, nil)
	batch.now = fixedNow(now)
	batchRecs, err := batch.RecalculateByPriority(context.Background())
	require.NoError(t, err)
	require.Contains(t, batchRecs, domain.TicketPriorityHigh)
	assert.Equal(t, 2, batchRecs[domain.TicketPriorityHigh].SampleCount)
	assert.Equal(t, 1, batchRecs[domain.TicketPriorityHigh].Errors)

	incremental := NewIncrementalRecalibrator(store, calc, Params{}, nil)
	incremental.now = fixedNow(now)
	incRecs, err := incremental.Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, incRecs, domain.TicketPriorityHigh)
	assert.Equal(t, 2, incRecs[domain.TicketPriorityHigh].SampleCount)
	assert.Equal(t, 1, incRecs[domain.TicketPriorityHigh].Errors)
}

var errBroken = errors.New("transition log unavailable")

func TestIncrementalDropsSamplesAfterReset(t *testing.T) {
	now := day(20, 12, 0)
	cfg := domain.SLAConfiguration{ID: 1, Priority: domain.TicketPriorityNormal, ResolutionHours: 10, Active: true}
	store := &fakeRecalStore{
		configs: []domain.SLAConfiguration{cfg},
		tickets: []domain.Ticket{
			completedTicket(1, domain.TicketPriorityNormal, day(10, 8, 0), 3),
			completedTicket(2, domain.TicketPriorityNormal, day(10, 9, 0), 5),
		},
	}

	calc := NewCalculator(allDayCalendar(), pausedSet, DefaultNearDueRatio, fixedNow(now))
	incremental := NewIncrementalRecalibrator(store, calc, Params{}, nil)
	incremental.now = fixedNow(now)

	recs, err := incremental.Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, recs, domain.TicketPriorityNormal)

	// Reset the configuration: accumulated samples must be discarded and
	// the priority skipped until new completions arrive.
	reset := day(15, 0, 0)
	store.configs[0].LastResetAt = &reset

	recs, err = incremental.Run(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, recs, domain.TicketPriorityNormal)
}
