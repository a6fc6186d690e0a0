package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/cache"
	"github.com/spec-kit/sla-service/internal/domain"
	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/pkg/util"
)

func newConfigService() (*ConfigService, *fakeCalendar) {
	calendar := &fakeCalendar{}
	store := &repository.Store{
		Configs:  &fakeConfigs{},
		Calendar: calendar,
	}
	return NewConfigService(store, cache.NewManager(nil, nil), nil), calendar
}

func TestUpsertBusinessHoursRejectsDuplicateWeekday(t *testing.T) {
	svc, calendar := newConfigService()
	ctx := context.Background()

	monday := &domain.BusinessHours{Weekday: 1, StartMinute: 8 * 60, EndMinute: 18 * 60, Active: true}
	require.NoError(t, svc.UpsertBusinessHours(ctx, monday))

	err := svc.UpsertBusinessHours(ctx, &domain.BusinessHours{
		Weekday: 1, StartMinute: 9 * 60, EndMinute: 17 * 60, Active: true,
	})
	require.Error(t, err)

	var domainErr *util.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "CONFLICT", domainErr.Code)

	// Rewriting the existing row is not a duplicate.
	monday.EndMinute = 17 * 60
	require.NoError(t, svc.UpsertBusinessHours(ctx, monday))

	// A different weekday is fine.
	require.NoError(t, svc.UpsertBusinessHours(ctx, &domain.BusinessHours{
		Weekday: 2, StartMinute: 8 * 60, EndMinute: 18 * 60, Active: true,
	}))
	assert.Len(t, calendar.hours, 2)
}

func TestCreateHolidayRejectsDuplicateDate(t *testing.T) {
	svc, calendar := newConfigService()
	ctx := context.Background()

	date := time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreateHoliday(ctx, date, "Natal", true)
	require.NoError(t, err)

	_, err = svc.CreateHoliday(ctx, date, "Natal de novo", true)
	require.Error(t, err)

	var domainErr *util.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Len(t, calendar.holidays, 1)
}
