package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/cache"
	"github.com/spec-kit/sla-service/internal/config"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/events"
	"github.com/spec-kit/sla-service/internal/observability"
	"github.com/spec-kit/sla-service/internal/persistence"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/internal/sla"
	"github.com/spec-kit/sla-service/pkg/util"
)

// Atomic runs units of work in transactions, optionally serialized by a
// named advisory lock. Implemented by persistence.TxManager; faked in
// tests.
type Atomic interface {
	ExecuteAtomic(ctx context.Context, fn persistence.TxFunc) persistence.Result
	ExecuteWithLock(ctx context.Context, lockName string, fn persistence.TxFunc) persistence.Result
}

// SLAService coordinates SLA evaluation, historical synchronization,
// resets and limit recalibration.
type SLAService struct {
	store      *repository.Store
	atomic     Atomic
	cache      *cache.Manager
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	slaCfg     config.SLAConfig
	logger     *zap.Logger
	now        func() time.Time

	incMu       sync.Mutex
	incremental *sla.IncrementalRecalibrator
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	Store      *repository.Store
	Atomic     Atomic
	Cache      *cache.Manager
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	SLAConfig  config.SLAConfig
	Logger     *zap.Logger
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAService{
		store:      deps.Store,
		atomic:     deps.Atomic,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		slaCfg:     deps.SLAConfig,
		logger:     logger,
		now:        time.Now,
	}
}

// SyncReport summarizes one historical synchronization pass.
type SyncReport struct {
	TicketsProcessed int   `json:"tickets_processed"`
	Inserted         int64 `json:"inserted"`
	Updated          int64 `json:"updated"`
	Unchanged        int64 `json:"unchanged"`
	Errors           int   `json:"errors"`
}

// DashboardReport summarizes a live recalculation over open tickets.
type DashboardReport struct {
	TicketsProcessed int                         `json:"tickets_processed"`
	Buckets          map[domain.MetricStatus]int `json:"buckets"`
	Errors           int                         `json:"errors"`
	ComputedAt       time.Time                   `json:"computed_at"`
}

// ResetReport summarizes a system-wide SLA reset.
type ResetReport struct {
	ResetAt        time.Time `json:"reset_at"`
	ConfigsStamped int64     `json:"configs_stamped"`
}

// GetSLAStatus evaluates one ticket, serving from cache when a fresh
// entry exists.
func (s *SLAService) GetSLAStatus(ctx context.Context, ticketID int64) (*domain.SLAStatus, error) {
	key := cache.TicketKeyPrefix(ticketID) + "status"
	computed := false
	raw, err := s.cache.GetOrCompute(ctx, key, s.slaCfg.CacheTTL(), func(ctx context.Context) (any, error) {
		computed = true
		return s.computeStatus(ctx, s.store, ticketID)
	})
	if err != nil {
		return nil, err
	}
	if computed {
		s.metrics.RecordCacheMiss()
	} else {
		s.metrics.RecordCacheHit()
	}

	var status domain.SLAStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SyncHistoricalRecords evaluates every ticket and reconciles the SLA
// history table, one row per ticket kept current. The pass runs under an
// advisory lock so concurrent syncs fail fast instead of interleaving.
func (s *SLAService) SyncHistoricalRecords(ctx context.Context) (*SyncReport, error) {
	res := s.atomic.ExecuteWithLock(ctx, persistence.LockHistoricalSync, func(ctx context.Context, store *repository.Store) (any, error) {
		return s.syncAll(ctx, store)
	})
	if res.Err != nil {
		return nil, res.Err
	}
	report := res.Data.(*SyncReport)

	s.cache.InvalidatePrefix(ctx, cache.KeyPrefix)
	_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventMetricsUpdated, events.MetricsUpdatedPayload{
		TicketsProcessed: report.TicketsProcessed,
		Inserted:         report.Inserted,
		Updated:          report.Updated,
		ComputedAt:       s.now(),
	}))

	s.logger.Info("historical records synchronized",
		zap.Int("tickets", report.TicketsProcessed),
		zap.Int64("inserted", report.Inserted),
		zap.Int64("updated", report.Updated),
		zap.Int("errors", report.Errors))
	return report, nil
}

func (s *SLAService) syncAll(ctx context.Context, store *repository.Store) (*SyncReport, error) {
	calc, err := s.buildCalculator(ctx, store)
	if err != nil {
		return nil, err
	}
	tickets, err := store.Tickets.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{TicketsProcessed: len(tickets)}
	for _, t := range tickets {
		status, err := s.evaluate(ctx, store, calc, t)
		if err != nil {
			report.Errors++
			s.logger.Warn("skipping ticket in sync", zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		inserted, updated, err := s.reconcileHistory(ctx, store, t, status)
		if err != nil {
			return nil, err
		}
		switch {
		case inserted:
			report.Inserted++
		case updated:
			report.Updated++
		default:
			report.Unchanged++
		}
	}
	return report, nil
}

// reconcileHistory inserts a snapshot for tickets without one and
// updates the latest snapshot when the evaluation changed.
func (s *SLAService) reconcileHistory(ctx context.Context, store *repository.Store, t domain.Ticket, status domain.SLAStatus) (inserted, updated bool, err error) {
	latest, err := store.SLAHistory.GetLatestByTicket(ctx, t.ID)
	if err != nil {
		return false, false, err
	}

	overall := string(status.Overall)
	if latest == nil {
		rec := &domain.SLAHistoryRecord{
			TicketID:             t.ID,
			Action:               "sync",
			NewStatus:            &overall,
			ResponseHours:        &status.Response.ElapsedHours,
			ResponseLimitHours:   &status.Response.LimitHours,
			ResolutionHours:      &status.Resolution.ElapsedHours,
			ResolutionLimitHours: &status.Resolution.LimitHours,
			OverallStatus:        status.Overall,
		}
		return true, false, store.SLAHistory.Insert(ctx, rec)
	}

	if historyCurrent(latest, status) {
		return false, false, nil
	}

	latest.NewStatus = &overall
	latest.ResponseHours = &status.Response.ElapsedHours
	latest.ResponseLimitHours = &status.Response.LimitHours
	latest.ResolutionHours = &status.Resolution.ElapsedHours
	latest.ResolutionLimitHours = &status.Resolution.LimitHours
	latest.OverallStatus = status.Overall
	return false, true, store.SLAHistory.UpdateLatest(ctx, latest)
}

// historyCurrent reports whether the stored snapshot already reflects
// the evaluation.
func historyCurrent(rec *domain.SLAHistoryRecord, status domain.SLAStatus) bool {
	return rec.OverallStatus == status.Overall &&
		floatPtrEq(rec.ResponseHours, status.Response.ElapsedHours) &&
		floatPtrEq(rec.ResolutionHours, status.Resolution.ElapsedHours) &&
		floatPtrEq(rec.ResponseLimitHours, status.Response.LimitHours) &&
		floatPtrEq(rec.ResolutionLimitHours, status.Resolution.LimitHours)
}

func floatPtrEq(p *float64, v float64) bool {
	return p != nil && *p == v
}

// RecalculateDashboard re-evaluates every open ticket, refreshes its
// history snapshot and buckets the results by overall status. It shares
// the sync advisory lock so the two passes never interleave, then drops
// the aggregate cache so dashboards observe the fresh data.
func (s *SLAService) RecalculateDashboard(ctx context.Context) (*DashboardReport, error) {
	res := s.atomic.ExecuteWithLock(ctx, persistence.LockHistoricalSync, func(ctx context.Context, store *repository.Store) (any, error) {
		return s.recalculateOpen(ctx, store)
	})
	if res.Err != nil {
		return nil, res.Err
	}
	report := res.Data.(*DashboardReport)

	s.cache.InvalidatePrefix(ctx, cache.KeyPrefix+"metrics:")
	_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventMetricsUpdated, events.MetricsUpdatedPayload{
		TicketsProcessed: report.TicketsProcessed,
		Buckets:          report.Buckets,
		ComputedAt:       report.ComputedAt,
	}))
	return report, nil
}

func (s *SLAService) recalculateOpen(ctx context.Context, store *repository.Store) (*DashboardReport, error) {
	calc, err := s.buildCalculator(ctx, store)
	if err != nil {
		return nil, err
	}
	tickets, err := store.Tickets.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	report := &DashboardReport{
		TicketsProcessed: len(tickets),
		Buckets:          make(map[domain.MetricStatus]int),
		ComputedAt:       s.now(),
	}
	for _, t := range tickets {
		status, err := s.evaluate(ctx, store, calc, t)
		if err != nil {
			report.Errors++
			s.logger.Warn("skipping ticket in dashboard recalculation", zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		if _, _, err := s.reconcileHistory(ctx, store, t, status); err != nil {
			return nil, err
		}
		report.Buckets[status.Overall]++
	}
	return report, nil
}

// ResetSLA stamps every active configuration with a reset instant.
// Tickets opened before it evaluate to sem_sla from then on.
func (s *SLAService) ResetSLA(ctx context.Context) (*ResetReport, error) {
	now := s.now()
	res := s.atomic.ExecuteAtomic(ctx, func(ctx context.Context, store *repository.Store) (any, error) {
		return store.Configs.StampReset(ctx, now)
	})
	if res.Err != nil {
		return nil, res.Err
	}
	stamped := res.Data.(int64)

	s.cache.InvalidateAll(ctx)
	_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventSLAReset, events.SLAResetPayload{
		ResetAt:        now,
		ConfigsStamped: stamped,
	}))

	s.logger.Info("sla reset applied", zap.Time("reset_at", now), zap.Int64("configs", stamped))
	return &ResetReport{ResetAt: now, ConfigsStamped: stamped}, nil
}

// RecalibrateBatch recomputes limit recommendations from scratch over
// the full recalibration window.
func (s *SLAService) RecalibrateBatch(ctx context.Context) (map[domain.TicketPriority]sla.Recommendation, error) {
	calc, err := s.buildCalculator(ctx, s.store)
	if err != nil {
		return nil, err
	}
	rec := sla.NewRecalibrator(recalStore{store: s.store}, calc, s.recalParams(), s.logger)
	return rec.RecalculateByPriority(ctx)
}

// RecalibrateIncremental folds completions since the previous run into
// a running sample set. Output matches a batch run at any checkpoint.
func (s *SLAService) RecalibrateIncremental(ctx context.Context) (map[domain.TicketPriority]sla.Recommendation, error) {
	s.incMu.Lock()
	if s.incremental == nil {
		calc, err := s.buildCalculator(ctx, s.store)
		if err != nil {
			s.incMu.Unlock()
			return nil, err
		}
		s.incremental = sla.NewIncrementalRecalibrator(recalStore{store: s.store}, calc, s.recalParams(), s.logger)
	}
	inc := s.incremental
	s.incMu.Unlock()

	return inc.Run(ctx)
}

// ApplyRecommendations writes recommended resolution limits to the
// active configurations in one transaction.
func (s *SLAService) ApplyRecommendations(ctx context.Context, recs map[domain.TicketPriority]sla.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	res := s.atomic.ExecuteAtomic(ctx, func(ctx context.Context, store *repository.Store) (any, error) {
		for priority, rec := range recs {
			if err := store.Configs.SetResolutionLimit(ctx, priority, rec.RecommendedHours); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, util.NewConfigurationMissing(string(priority))
				}
				return nil, err
			}
		}
		return nil, nil
	})
	if res.Err != nil {
		return res.Err
	}

	s.cache.InvalidateAll(ctx)
	for priority, rec := range recs {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventLimitsRecalibrated, events.LimitsRecalibratedPayload{
			Priority:      priority,
			PreviousHours: rec.CurrentHours,
			NewHours:      rec.RecommendedHours,
		}))
		s.logger.Info("resolution limit recalibrated",
			zap.String("priority", string(priority)),
			zap.Float64("previous_hours", rec.CurrentHours),
			zap.Float64("new_hours", rec.RecommendedHours))
	}
	return nil
}

// BackfillReport summarizes one first-response backfill pass.
type BackfillReport struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// BackfillFirstResponse fills missing first-response timestamps from
// the status log: the first transition out of the opening status counts
// as the response. Tickets whose log never left the opening status are
// skipped. Each ticket is written independently so a per-ticket failure
// is counted without losing the rest of the pass.
func (s *SLAService) BackfillFirstResponse(ctx context.Context) (*BackfillReport, error) {
	tickets, err := s.store.Tickets.ListMissingFirstResponse(ctx)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{}
	for _, t := range tickets {
		tr, err := s.store.StatusHistory.FirstTransitionOut(ctx, t.ID, s.slaCfg.OpeningStatus)
		if err != nil {
			report.Errors++
			s.logger.Warn("skipping ticket in first response backfill", zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		if tr == nil {
			report.Skipped++
			continue
		}
		if err := s.store.Tickets.SetFirstResponse(ctx, t.ID, tr.StartedAt); err != nil {
			report.Errors++
			s.logger.Warn("skipping ticket in first response backfill", zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		report.Updated++
	}

	if report.Updated > 0 {
		s.cache.InvalidatePrefix(ctx, cache.KeyPrefix)
	}
	return report, nil
}

// WarmupCache pre-computes the status of every open ticket so the first
// dashboard reads after a cold start or invalidation hit warm entries.
func (s *SLAService) WarmupCache(ctx context.Context) (int, error) {
	tickets, err := s.store.Tickets.ListOpen(ctx)
	if err != nil {
		return 0, err
	}
	warmed := 0
	for _, t := range tickets {
		if _, err := s.GetSLAStatus(ctx, t.ID); err != nil {
			s.logger.Warn("skipping ticket in cache warmup", zap.Int64("ticket_id", t.ID), zap.Error(err))
			continue
		}
		warmed++
	}
	return warmed, nil
}

// InvalidateTicket drops cached metrics derived from one ticket.
func (s *SLAService) InvalidateTicket(ctx context.Context, ticketID int64) {
	s.cache.InvalidateForTicket(ctx, ticketID)
}

func (s *SLAService) computeStatus(ctx context.Context, store *repository.Store, ticketID int64) (*domain.SLAStatus, error) {
	ticket, err := store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	calc, err := s.buildCalculator(ctx, store)
	if err != nil {
		return nil, err
	}
	status, err := s.evaluate(ctx, store, calc, *ticket)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// evaluate loads configuration and transitions for one ticket and runs
// the calculator. A missing configuration is not an error; the ticket
// evaluates to sem_sla.
func (s *SLAService) evaluate(ctx context.Context, store *repository.Store, calc *sla.Calculator, t domain.Ticket) (domain.SLAStatus, error) {
	cfg, err := store.Configs.GetActiveByPriority(ctx, t.Priority)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.SLAStatus{}, err
		}
		cfg = nil
	}
	transitions, err := store.StatusHistory.ListByTicket(ctx, t.ID)
	if err != nil {
		return domain.SLAStatus{}, err
	}
	return calc.Status(sla.Inputs{Ticket: t, Config: cfg, Transitions: transitions})
}

// buildCalculator assembles a calculator over the persisted calendar.
func (s *SLAService) buildCalculator(ctx context.Context, store *repository.Store) (*sla.Calculator, error) {
	hours, err := store.Calendar.ListBusinessHours(ctx)
	if err != nil {
		return nil, err
	}
	holidays, err := store.Calendar.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	cal := sla.NewCalendar(hours, holidays)
	return sla.NewCalculator(cal, sla.NewStatusSet(s.slaCfg.PausedStatuses), s.slaCfg.NearDueRatio, s.now), nil
}

func (s *SLAService) recalParams() sla.Params {
	return sla.Params{
		WindowDays:   s.slaCfg.RecalibrationWindowDays,
		OutlierHours: s.slaCfg.OutlierCutoffHours,
		SafetyMargin: s.slaCfg.SafetyMargin,
		MinSamples:   s.slaCfg.MinSamples,
	}
}

// recalStore adapts the repository bundle to the recalibration surface.
type recalStore struct {
	store *repository.Store
}

func (r recalStore) ActiveConfigurations(ctx context.Context) ([]domain.SLAConfiguration, error) {
	return r.store.Configs.ListActive(ctx)
}

func (r recalStore) CompletedTickets(ctx context.Context, priority domain.TicketPriority, openedSince time.Time, completedAfter *time.Time) ([]domain.Ticket, error) {
	return r.store.Tickets.ListCompleted(ctx, repository.CompletedTicketFilter{
		Priority:       priority,
		OpenedSince:    openedSince,
		CompletedAfter: completedAfter,
	})
}

func (r recalStore) TransitionsFor(ctx context.Context, ticketID int64) ([]domain.StatusTransition, error) {
	return r.store.StatusHistory.ListByTicket(ctx, ticketID)
}
