package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/cache"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/sla"
)

// MetricsService serves the aggregate dashboard numbers, memoized
// through the two-tier cache.
type MetricsService struct {
	store  *repository.Store
	cache  *cache.Manager
	slaCfg config.SLAConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewMetricsService constructs the service.
func NewMetricsService(store *repository.Store, cacheManager *cache.Manager, slaCfg config.SLAConfig, logger *zap.Logger) *MetricsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsService{
		store:  store,
		cache:  cacheManager,
		slaCfg: slaCfg,
		logger: logger,
		now:    time.Now,
	}
}

// ComplianceSummary reports resolution compliance over a recent window.
type ComplianceSummary struct {
	WindowLabel      string  `json:"window"`
	TicketsCompleted int     `json:"tickets_completed"`
	WithinLimit      int     `json:"within_limit"`
	CompliancePct    float64 `json:"compliance_pct"`
}

// Overview is the full dashboard aggregate.
type Overview struct {
	OpenNow            int64                         `json:"open_now"`
	OpenedToday        int64                         `json:"opened_today"`
	Compliance24h      ComplianceSummary             `json:"compliance_24h"`
	ComplianceMonth    ComplianceSummary             `json:"compliance_month"`
	AvgResponse24h     float64                       `json:"avg_response_hours_24h"`
	AvgResponseMonth   float64                       `json:"avg_response_hours_month"`
	StatusDistribution map[domain.MetricStatus]int64 `json:"status_distribution"`
	ComputedAt         time.Time                     `json:"computed_at"`
}

// Overview computes or serves the cached dashboard aggregate.
func (s *MetricsService) Overview(ctx context.Context) (*Overview, error) {
	raw, err := s.cache.GetOrCompute(ctx, cache.KeyPrefix+"metrics:overview", s.slaCfg.CacheTTL(), func(ctx context.Context) (any, error) {
		return s.computeOverview(ctx)
	})
	if err != nil {
		return nil, err
	}
	var overview Overview
	if err := json.Unmarshal(raw, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

func (s *MetricsService) computeOverview(ctx context.Context) (*Overview, error) {
	now := s.now()
	dayAgo := now.Add(-24 * time.Hour)
	monthAgo := now.AddDate(0, -1, 0)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	openNow, err := s.store.Tickets.CountOpen(ctx)
	if err != nil {
		return nil, err
	}
	openedToday, err := s.store.Tickets.CountOpenedSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	calc, err := s.buildCalculator(ctx)
	if err != nil {
		return nil, err
	}

	day, err := s.complianceSince(ctx, calc, dayAgo, "24h")
	if err != nil {
		return nil, err
	}
	month, err := s.complianceSince(ctx, calc, monthAgo, "30d")
	if err != nil {
		return nil, err
	}

	avgDay, err := s.avgResponseSince(ctx, calc, dayAgo)
	if err != nil {
		return nil, err
	}
	avgMonth, err := s.avgResponseSince(ctx, calc, monthAgo)
	if err != nil {
		return nil, err
	}

	distribution, err := s.store.SLAHistory.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	return &Overview{
		OpenNow:            openNow,
		OpenedToday:        openedToday,
		Compliance24h:      day,
		ComplianceMonth:    month,
		AvgResponse24h:     avgDay,
		AvgResponseMonth:   avgMonth,
		StatusDistribution: distribution,
		ComputedAt:         now,
	}, nil
}

// complianceSince measures resolution compliance over tickets completed
// after the cutoff, evaluated against each ticket's active limits.
func (s *MetricsService) complianceSince(ctx context.Context, calc *sla.Calculator, completedAfter time.Time, label string) (ComplianceSummary, error) {
	tickets, err := s.store.Tickets.ListCompleted(ctx, repository.CompletedTicketFilter{CompletedAfter: &completedAfter})
	if err != nil {
		return ComplianceSummary{}, err
	}

	summary := ComplianceSummary{WindowLabel: label}
	for _, t := range tickets {
		status, err := s.evaluate(ctx, calc, t)
		if err != nil {
			s.logger.Warn("skipping ticket in compliance aggregate", zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		if status.Resolution.Status == domain.MetricStatusNone {
			continue
		}
		summary.TicketsCompleted++
		if status.Resolution.Status == domain.MetricStatusMet {
			summary.WithinLimit++
		}
	}
	if summary.TicketsCompleted > 0 {
		summary.CompliancePct = math.Round(float64(summary.WithinLimit)/float64(summary.TicketsCompleted)*10000) / 100
	}
	return summary, nil
}

// avgResponseSince averages business-hours first-response time over
// tickets completed after the cutoff.
func (s *MetricsService) avgResponseSince(ctx context.Context, calc *sla.Calculator, completedAfter time.Time) (float64, error) {
	tickets, err := s.store.Tickets.ListCompleted(ctx, repository.CompletedTicketFilter{CompletedAfter: &completedAfter})
	if err != nil {
		return 0, err
	}

	var sum float64
	count := 0
	for _, t := range tickets {
		if t.FirstResponseAt == nil {
			continue
		}
		transitions, err := s.store.StatusHistory.ListByTicket(ctx, t.ID)
		if err != nil {
			return 0, err
		}
		h, err := calc.ElapsedExcludingPauses(t.OpenedAt, *t.FirstResponseAt, transitions)
		if err != nil {
			s.logger.Warn("skipping ticket in response aggregate", zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		sum += h
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return math.Round(sum/float64(count)*100) / 100, nil
}

func (s *MetricsService) evaluate(ctx context.Context, calc *sla.Calculator, t domain.Ticket) (domain.SLAStatus, error) {
	cfg, err := s.store.Configs.GetActiveByPriority(ctx, t.Priority)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.SLAStatus{}, err
		}
		cfg = nil
	}
	transitions, err := s.store.StatusHistory.ListByTicket(ctx, t.ID)
	if err != nil {
		return domain.SLAStatus{}, err
	}
	return calc.Status(sla.Inputs{Ticket: t, Config: cfg, Transitions: transitions})
}

func (s *MetricsService) buildCalculator(ctx context.Context) (*sla.Calculator, error) {
	hours, err := s.store.Calendar.ListBusinessHours(ctx)
	if err != nil {
		return nil, err
	}
	holidays, err := s.store.Calendar.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	cal := sla.NewCalendar(hours, holidays)
	return sla.NewCalculator(cal, sla.NewStatusSet(s.slaCfg.PausedStatuses), s.slaCfg.NearDueRatio, s.now), nil
}
