package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/domain"
)

var pausedSet = NewStatusSet([]string{"Aguardando Cliente", "Pausado"})

func transition(id int64, status string, start time.Time) domain.StatusTransition {
	return domain.StatusTransition{ID: id, TicketID: 1, Status: status, StartedAt: start}
}

func TestPauseIntervalsEmptyLog(t *testing.T) {
	assert.Empty(t, PauseIntervals(nil, pausedSet, day(5, 12, 0)))
}

func TestPauseIntervalsBasic(t *testing.T) {
	transitions := []domain.StatusTransition{
		transition(1, "Aberto", day(1, 9, 0)),
		transition(2, "Aguardando Cliente", day(1, 11, 0)),
		transition(3, "Em Andamento", day(1, 15, 0)),
	}
	got := PauseIntervals(transitions, pausedSet, day(2, 12, 0))
	require.Len(t, got, 1)
	assert.Equal(t, day(1, 11, 0), got[0].Start)
	assert.Equal(t, day(1, 15, 0), got[0].End)
}

func TestPauseIntervalsAdjacentPausedMerge(t *testing.T) {
	transitions := []domain.StatusTransition{
		transition(1, "Aberto", day(1, 9, 0)),
		transition(2, "Aguardando Cliente", day(1, 11, 0)),
		transition(3, "Pausado", day(1, 13, 0)),
		transition(4, "Em Andamento", day(1, 16, 0)),
	}
	got := PauseIntervals(transitions, pausedSet, day(2, 12, 0))
	require.Len(t, got, 1)
	assert.Equal(t, day(1, 11, 0), got[0].Start)
	assert.Equal(t, day(1, 16, 0), got[0].End)
}

func TestPauseIntervalsOpenEndedClosesAtNow(t *testing.T) {
	now := day(2, 10, 30)
	transitions := []domain.StatusTransition{
		transition(1, "Aberto", day(1, 9, 0)),
		transition(2, "Aguardando Cliente", day(2, 9, 0)),
	}
	got := PauseIntervals(transitions, pausedSet, now)
	require.Len(t, got, 1)
	assert.Equal(t, day(2, 9, 0), got[0].Start)
	assert.Equal(t, now, got[0].End)
}

func TestPauseIntervalsMultipleSeparated(t *testing.T) {
	transitions := []domain.StatusTransition{
		transition(1, "Aguardando Cliente", day(1, 9, 0)),
		transition(2, "Em Andamento", day(1, 10, 0)),
		transition(3, "Aguardando Cliente", day(1, 14, 0)),
		transition(4, "Concluído", day(1, 15, 0)),
	}
	got := PauseIntervals(transitions, pausedSet, day(2, 12, 0))
	require.Len(t, got, 2)
	assert.Equal(t, Interval{day(1, 9, 0), day(1, 10, 0)}, got[0])
	assert.Equal(t, Interval{day(1, 14, 0), day(1, 15, 0)}, got[1])
}

func TestPauseIntervalsOutOfOrderInputIsSorted(t *testing.T) {
	transitions := []domain.StatusTransition{
		transition(3, "Em Andamento", day(1, 15, 0)),
		transition(1, "Aberto", day(1, 9, 0)),
		transition(2, "Aguardando Cliente", day(1, 11, 0)),
	}
	got := PauseIntervals(transitions, pausedSet, day(2, 12, 0))
	require.Len(t, got, 1)
	assert.Equal(t, Interval{day(1, 11, 0), day(1, 15, 0)}, got[0])
}

// Deducting a merged pause set must behave the same whether applied once
// or derived twice: the derivation is deterministic and the calculator
// clips each exclusion independently, so no double subtraction occurs.
func TestPauseDeductionIdempotence(t *testing.T) {
	ic := NewIntervalCalculator(weekdayCalendar())
	transitions := []domain.StatusTransition{
		transition(1, "Aberto", day(3, 8, 0)),
		transition(2, "Aguardando Cliente", day(3, 10, 0)),
		transition(3, "Pausado", day(3, 11, 0)),
		transition(4, "Em Andamento", day(3, 12, 0)),
	}
	now := day(3, 18, 0)

	first := PauseIntervals(transitions, pausedSet, now)
	second := PauseIntervals(transitions, pausedSet, now)
	require.Equal(t, first, second)
	require.Len(t, first, 1)

	a, err := ic.ElapsedBusinessHours(day(3, 8, 0), day(3, 18, 0), first)
	require.NoError(t, err)
	b, err := ic.ElapsedBusinessHours(day(3, 8, 0), day(3, 18, 0), second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.InDelta(t, 8.0, a, 1e-9)
}
