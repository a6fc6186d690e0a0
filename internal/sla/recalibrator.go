package sla

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
)

// Recalibration defaults, matching the historical tuning of the system.
const (
	DefaultWindowDays   = 30
	DefaultOutlierHours = 720 // completions beyond 30 days are data-entry anomalies
	DefaultSafetyMargin = 1.15
	DefaultMinSamples   = 2
)

// Params tunes the P90 recalibration.
type Params struct {
	WindowDays   int
	OutlierHours float64
	SafetyMargin float64
	MinSamples   int
}

// withDefaults fills zero fields.
func (p Params) withDefaults() Params {
	if p.WindowDays <= 0 {
		p.WindowDays = DefaultWindowDays
	}
	if p.OutlierHours <= 0 {
		p.OutlierHours = DefaultOutlierHours
	}
	if p.SafetyMargin <= 0 {
		p.SafetyMargin = DefaultSafetyMargin
	}
	if p.MinSamples < DefaultMinSamples {
		p.MinSamples = DefaultMinSamples
	}
	return p
}

// RecalibrationStore is the narrow persistence surface the recalibrators
// need. Implemented by the repository layer; faked in tests.
type RecalibrationStore interface {
	ActiveConfigurations(ctx context.Context) ([]domain.SLAConfiguration, error)
	// CompletedTickets lists completed or cancelled tickets of a priority
	// opened at or after openedSince; when completedAfter is non-nil only
	// tickets whose terminal timestamp is strictly later are returned.
	CompletedTickets(ctx context.Context, priority domain.TicketPriority, openedSince time.Time, completedAfter *time.Time) ([]domain.Ticket, error)
	TransitionsFor(ctx context.Context, ticketID int64) ([]domain.StatusTransition, error)
}

// Recommendation is the advisory outcome for one priority. Applying it
// to the configuration is the caller's decision.
type Recommendation struct {
	Priority                 domain.TicketPriority `json:"prioridade"`
	SampleCount              int                   `json:"chamados_analisados"`
	MinHours                 float64               `json:"tempo_minimo"`
	MeanHours                float64               `json:"tempo_medio"`
	MaxHours                 float64               `json:"tempo_maximo"`
	P90Hours                 float64               `json:"p90"`
	RecommendedHours         float64               `json:"p90_recomendado"`
	CurrentHours             float64               `json:"sla_atual"`
	CurrentCompliancePct     int                   `json:"conformidade_atual"`
	RecommendedCompliancePct int                   `json:"conformidade_com_p90"`
	ImprovementPct           int                   `json:"melhoria"`
	Errors                   int                   `json:"erros"`
}

// Recalibrator recomputes SLA limits from the P90 of recent completion
// times in a single full pass over the window.
type Recalibrator struct {
	store  RecalibrationStore
	calc   *Calculator
	params Params
	logger *zap.Logger
	now    func() time.Time
}

// NewRecalibrator builds a batch recalibrator.
func NewRecalibrator(store RecalibrationStore, calc *Calculator, params Params, logger *zap.Logger) *Recalibrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recalibrator{
		store:  store,
		calc:   calc,
		params: params.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// RecalculateByPriority runs the full-batch statistic for every active
// priority. Priorities with fewer than MinSamples valid completions are
// skipped. Per-ticket failures are counted and never abort the batch.
func (r *Recalibrator) RecalculateByPriority(ctx context.Context) (map[domain.TicketPriority]Recommendation, error) {
	configs, err := r.store.ActiveConfigurations(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	out := make(map[domain.TicketPriority]Recommendation)
	for _, cfg := range configs {
		since := windowStart(now, cfg, r.params)
		tickets, err := r.store.CompletedTickets(ctx, cfg.Priority, since, nil)
		if err != nil {
			return nil, err
		}

		var hours []float64
		errCount := 0
		for _, t := range tickets {
			h, err := r.completionHours(ctx, t)
			if err != nil {
				errCount++
				r.logger.Warn("skipping ticket in recalibration",
					zap.Int64("ticket_id", t.ID), zap.Error(err))
				continue
			}
			if h > 0 && h < r.params.OutlierHours {
				hours = append(hours, h)
			}
		}

		rec, ok := recommend(cfg, hours, r.params)
		if !ok {
			r.logger.Info("insufficient samples for recalibration",
				zap.String("priority", string(cfg.Priority)), zap.Int("samples", len(hours)))
			continue
		}
		rec.Errors = errCount
		out[cfg.Priority] = rec
	}
	return out, nil
}

func (r *Recalibrator) completionHours(ctx context.Context, t domain.Ticket) (float64, error) {
	terminal := t.TerminalAt()
	if terminal == nil {
		return 0, ErrInvalidRange
	}
	transitions, err := r.store.TransitionsFor(ctx, t.ID)
	if err != nil {
		return 0, err
	}
	return r.calc.ElapsedExcludingPauses(t.OpenedAt, *terminal, transitions)
}

// windowStart is now minus the window, pushed forward to the
// configuration's last reset when that is more recent.
func windowStart(now time.Time, cfg domain.SLAConfiguration, p Params) time.Time {
	since := now.AddDate(0, 0, -p.WindowDays)
	if cfg.LastResetAt != nil && cfg.LastResetAt.After(since) {
		since = *cfg.LastResetAt
	}
	return since
}

// recommend computes the P90 statistic over the sample hours. The slice
// is sorted in place.
func recommend(cfg domain.SLAConfiguration, hours []float64, p Params) (Recommendation, bool) {
	if len(hours) < p.MinSamples {
		return Recommendation{}, false
	}
	sort.Float64s(hours)

	n := len(hours)
	idx := int(math.Floor(0.9 * float64(n-1)))
	if idx >= n {
		idx = n - 1
	}
	p90 := hours[idx]
	recommended := p90 * p.SafetyMargin

	var sum float64
	for _, h := range hours {
		sum += h
	}

	return Recommendation{
		Priority:                 cfg.Priority,
		SampleCount:              n,
		MinHours:                 round2(hours[0]),
		MeanHours:                round2(sum / float64(n)),
		MaxHours:                 round2(hours[n-1]),
		P90Hours:                 round2(p90),
		RecommendedHours:         round2(recommended),
		CurrentHours:             cfg.ResolutionHours,
		CurrentCompliancePct:     compliancePct(hours, cfg.ResolutionHours),
		RecommendedCompliancePct: compliancePct(hours, recommended),
		ImprovementPct:           compliancePct(hours, recommended) - compliancePct(hours, cfg.ResolutionHours),
	}, true
}

// compliancePct is the fraction of samples within the limit, as a whole
// percentage.
func compliancePct(hours []float64, limit float64) int {
	if len(hours) == 0 {
		return 0
	}
	within := 0
	for _, h := range hours {
		if h <= limit {
			within++
		}
	}
	return int(float64(within) / float64(len(hours)) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
