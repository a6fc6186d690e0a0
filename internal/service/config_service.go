package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/cache"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/pkg/util"
)

// ConfigService manages SLA limits and the working calendar. Every
// write invalidates the metric cache: cached evaluations embed the
// limits and calendar they were computed under.
type ConfigService struct {
	store  *repository.Store
	cache  *cache.Manager
	logger *zap.Logger
}

// NewConfigService constructs the service.
func NewConfigService(store *repository.Store, cacheManager *cache.Manager, logger *zap.Logger) *ConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigService{store: store, cache: cacheManager, logger: logger}
}

// ConfigInput is the write payload for an SLA configuration.
type ConfigInput struct {
	Priority        domain.TicketPriority
	ResponseHours   float64
	ResolutionHours float64
	Description     *string
	Active          bool
}

func (in ConfigInput) validate() error {
	if in.Priority == "" {
		return util.NewValidationError("priority required", nil)
	}
	if in.ResponseHours <= 0 || in.ResolutionHours <= 0 {
		return util.NewValidationError("limits must be positive hours", map[string]any{
			"response_hours":   in.ResponseHours,
			"resolution_hours": in.ResolutionHours,
		})
	}
	if in.ResponseHours > in.ResolutionHours {
		return util.NewValidationError("response limit cannot exceed resolution limit", nil)
	}
	return nil
}

// ListConfigs returns every configuration row.
func (s *ConfigService) ListConfigs(ctx context.Context) ([]domain.SLAConfiguration, error) {
	return s.store.Configs.List(ctx)
}

// CreateConfig inserts a configuration. At most one active row may
// exist per priority.
func (s *ConfigService) CreateConfig(ctx context.Context, in ConfigInput) (*domain.SLAConfiguration, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Active {
		existing, err := s.store.Configs.GetActiveByPriority(ctx, in.Priority)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if existing != nil {
			return nil, util.NewConflict("an active configuration already exists for this priority",
				map[string]any{"priority": in.Priority})
		}
	}

	cfg := &domain.SLAConfiguration{
		Priority:        in.Priority,
		ResponseHours:   in.ResponseHours,
		ResolutionHours: in.ResolutionHours,
		Description:     in.Description,
		Active:          in.Active,
	}
	if err := s.store.Configs.Create(ctx, cfg); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return cfg, nil
}

// UpdateConfig rewrites a configuration row.
func (s *ConfigService) UpdateConfig(ctx context.Context, id int64, in ConfigInput) (*domain.SLAConfiguration, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	cfg, err := s.store.Configs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("sla configuration", map[string]any{"id": id})
		}
		return nil, err
	}

	cfg.Priority = in.Priority
	cfg.ResponseHours = in.ResponseHours
	cfg.ResolutionHours = in.ResolutionHours
	cfg.Description = in.Description
	cfg.Active = in.Active
	if err := s.store.Configs.Update(ctx, cfg); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return cfg, nil
}

// DeleteConfig removes a configuration row.
func (s *ConfigService) DeleteConfig(ctx context.Context, id int64) error {
	if err := s.store.Configs.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("sla configuration", map[string]any{"id": id})
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListBusinessHours returns the working windows per weekday.
func (s *ConfigService) ListBusinessHours(ctx context.Context) ([]domain.BusinessHours, error) {
	return s.store.Calendar.ListBusinessHours(ctx)
}

// UpsertBusinessHours creates or rewrites a weekday window. At most one
// active window may exist per weekday.
func (s *ConfigService) UpsertBusinessHours(ctx context.Context, bh *domain.BusinessHours) error {
	if bh.Weekday < 0 || bh.Weekday > 6 {
		return util.NewValidationError("weekday must be 0..6", map[string]any{"weekday": bh.Weekday})
	}
	if bh.StartMinute < 0 || bh.EndMinute > 24*60 || bh.StartMinute >= bh.EndMinute {
		return util.NewValidationError("window must satisfy 0 <= start < end <= 1440", map[string]any{
			"start_minute": bh.StartMinute,
			"end_minute":   bh.EndMinute,
		})
	}
	if bh.Active {
		existing, err := s.store.Calendar.GetActiveBusinessHours(ctx, bh.Weekday)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if existing != nil && existing.ID != bh.ID {
			return util.NewConflict("an active window already exists for this weekday",
				map[string]any{"weekday": bh.Weekday})
		}
	}

	var err error
	if bh.ID == 0 {
		err = s.store.Calendar.CreateBusinessHours(ctx, bh)
	} else {
		err = s.store.Calendar.UpdateBusinessHours(ctx, bh)
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("business hours", map[string]any{"id": bh.ID})
		}
	}
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// DeleteBusinessHours removes a weekday window.
func (s *ConfigService) DeleteBusinessHours(ctx context.Context, id int64) error {
	if err := s.store.Calendar.DeleteBusinessHours(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("business hours", map[string]any{"id": id})
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListHolidays returns the holiday calendar.
func (s *ConfigService) ListHolidays(ctx context.Context) ([]domain.Holiday, error) {
	return s.store.Calendar.ListHolidays(ctx)
}

// CreateHoliday adds a non-working date. Each date may carry at most
// one active holiday.
func (s *ConfigService) CreateHoliday(ctx context.Context, date time.Time, name string, active bool) (*domain.Holiday, error) {
	if name == "" {
		return nil, util.NewValidationError("name required", nil)
	}
	if active {
		existing, err := s.store.Calendar.GetActiveHoliday(ctx, date)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if existing != nil {
			return nil, util.NewConflict("a holiday already exists for this date",
				map[string]any{"date": date.Format("2006-01-02")})
		}
	}
	h := &domain.Holiday{Date: date, Name: name, Active: active}
	if err := s.store.Calendar.CreateHoliday(ctx, h); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return h, nil
}

// DeleteHoliday removes a holiday.
func (s *ConfigService) DeleteHoliday(ctx context.Context, id int64) error {
	if err := s.store.Calendar.DeleteHoliday(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("holiday", map[string]any{"id": id})
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

// invalidate clears every cached metric. Limit and calendar writes make
// all cached evaluations stale at once, so the whole namespace goes.
func (s *ConfigService) invalidate(ctx context.Context) {
	s.cache.InvalidatePrefix(ctx, cache.KeyPrefix)
	s.logger.Debug("metric cache invalidated after configuration write")
}
