package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-service/internal/domain"
)

// CalendarRepository manages the business-hours table and the holiday
// set backing the interval calculator.
type CalendarRepository interface {
	ListBusinessHours(ctx context.Context) ([]domain.BusinessHours, error)
	GetActiveBusinessHours(ctx context.Context, weekday int) (*domain.BusinessHours, error)
	CreateBusinessHours(ctx context.Context, bh *domain.BusinessHours) error
	UpdateBusinessHours(ctx context.Context, bh *domain.BusinessHours) error
	DeleteBusinessHours(ctx context.Context, id int64) error
	ListHolidays(ctx context.Context) ([]domain.Holiday, error)
	GetActiveHoliday(ctx context.Context, date time.Time) (*domain.Holiday, error)
	CreateHoliday(ctx context.Context, h *domain.Holiday) error
	UpdateHoliday(ctx context.Context, h *domain.Holiday) error
	DeleteHoliday(ctx context.Context, id int64) error
}

type calendarRepository struct {
	db DBTX
}

// NewCalendarRepository instantiates the repository.
func NewCalendarRepository(db DBTX) CalendarRepository {
	return &calendarRepository{db: db}
}

func (r *calendarRepository) ListBusinessHours(ctx context.Context) ([]domain.BusinessHours, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, weekday, start_minute, end_minute, active, created_at, updated_at
        FROM sla_business_hours ORDER BY weekday`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BusinessHours
	for rows.Next() {
		var bh domain.BusinessHours
		if err := rows.Scan(&bh.ID, &bh.Weekday, &bh.StartMinute, &bh.EndMinute, &bh.Active, &bh.CreatedAt, &bh.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, bh)
	}
	return result, rows.Err()
}

func (r *calendarRepository) GetActiveBusinessHours(ctx context.Context, weekday int) (*domain.BusinessHours, error) {
	var bh domain.BusinessHours
	err := r.db.QueryRow(ctx, `
        SELECT id, weekday, start_minute, end_minute, active, created_at, updated_at
        FROM sla_business_hours WHERE weekday=$1 AND active`, weekday).
		Scan(&bh.ID, &bh.Weekday, &bh.StartMinute, &bh.EndMinute, &bh.Active, &bh.CreatedAt, &bh.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &bh, nil
}

func (r *calendarRepository) CreateBusinessHours(ctx context.Context, bh *domain.BusinessHours) error {
	const query = `
        INSERT INTO sla_business_hours (weekday, start_minute, end_minute, active)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, bh.Weekday, bh.StartMinute, bh.EndMinute, bh.Active).
		Scan(&bh.ID, &bh.CreatedAt, &bh.UpdatedAt)
}

func (r *calendarRepository) UpdateBusinessHours(ctx context.Context, bh *domain.BusinessHours) error {
	cmd, err := r.db.Exec(ctx, `
        UPDATE sla_business_hours SET start_minute=$1, end_minute=$2, active=$3, updated_at=NOW()
        WHERE id=$4`,
		bh.StartMinute, bh.EndMinute, bh.Active, bh.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *calendarRepository) DeleteBusinessHours(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sla_business_hours WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *calendarRepository) ListHolidays(ctx context.Context) ([]domain.Holiday, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, holiday_date, name, active, created_at, updated_at
        FROM sla_holidays ORDER BY holiday_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &h.Active, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (r *calendarRepository) GetActiveHoliday(ctx context.Context, date time.Time) (*domain.Holiday, error) {
	var h domain.Holiday
	err := r.db.QueryRow(ctx, `
        SELECT id, holiday_date, name, active, created_at, updated_at
        FROM sla_holidays WHERE holiday_date=$1::date AND active`, date).
		Scan(&h.ID, &h.Date, &h.Name, &h.Active, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *calendarRepository) CreateHoliday(ctx context.Context, h *domain.Holiday) error {
	const query = `
        INSERT INTO sla_holidays (holiday_date, name, active)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, h.Date, h.Name, h.Active).
		Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
}

func (r *calendarRepository) UpdateHoliday(ctx context.Context, h *domain.Holiday) error {
	cmd, err := r.db.Exec(ctx, `
        UPDATE sla_holidays SET name=$1, active=$2, updated_at=NOW() WHERE id=$3`,
		h.Name, h.Active, h.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *calendarRepository) DeleteHoliday(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sla_holidays WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
