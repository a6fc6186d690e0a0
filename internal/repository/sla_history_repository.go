package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-service/internal/domain"
)

// SLAHistoryRepository owns the per-ticket SLA snapshot table. Sync and
// recalculation passes update the latest row for a ticket or insert one
// when none exists; they never append duplicates freely.
type SLAHistoryRepository interface {
	GetLatestByTicket(ctx context.Context, ticketID int64) (*domain.SLAHistoryRecord, error)
	Insert(ctx context.Context, rec *domain.SLAHistoryRecord) error
	UpdateLatest(ctx context.Context, rec *domain.SLAHistoryRecord) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.SLAHistoryRecord, error)
	StatusCounts(ctx context.Context) (map[domain.MetricStatus]int64, error)
}

const historyColumns = `id, ticket_id, action, prior_status, new_status,
        response_hours, response_limit_hours, resolution_hours, resolution_limit_hours,
        overall_status, created_at, updated_at`

type slaHistoryRepository struct {
	db DBTX
}

// NewSLAHistoryRepository instantiates the repository.
func NewSLAHistoryRepository(db DBTX) SLAHistoryRepository {
	return &slaHistoryRepository{db: db}
}

func (r *slaHistoryRepository) GetLatestByTicket(ctx context.Context, ticketID int64) (*domain.SLAHistoryRecord, error) {
	var rec domain.SLAHistoryRecord
	err := scanHistory(r.db.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM sla_history WHERE ticket_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		ticketID), &rec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *slaHistoryRepository) Insert(ctx context.Context, rec *domain.SLAHistoryRecord) error {
	const query = `
        INSERT INTO sla_history (ticket_id, action, prior_status, new_status,
            response_hours, response_limit_hours, resolution_hours, resolution_limit_hours, overall_status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		rec.TicketID,
		rec.Action,
		rec.PriorStatus,
		rec.NewStatus,
		rec.ResponseHours,
		rec.ResponseLimitHours,
		rec.ResolutionHours,
		rec.ResolutionLimitHours,
		rec.OverallStatus,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

func (r *slaHistoryRepository) UpdateLatest(ctx context.Context, rec *domain.SLAHistoryRecord) error {
	const query = `
        UPDATE sla_history SET new_status=$1, response_hours=$2, response_limit_hours=$3,
            resolution_hours=$4, resolution_limit_hours=$5, overall_status=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.db.Exec(ctx, query,
		rec.NewStatus,
		rec.ResponseHours,
		rec.ResponseLimitHours,
		rec.ResolutionHours,
		rec.ResolutionLimitHours,
		rec.OverallStatus,
		rec.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.SLAHistoryRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+historyColumns+` FROM sla_history WHERE ticket_id=$1 ORDER BY created_at DESC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAHistoryRecord
	for rows.Next() {
		var rec domain.SLAHistoryRecord
		if err := scanHistory(rows, &rec); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// StatusCounts aggregates the latest snapshot per ticket by overall
// status, feeding the dashboard distribution metric.
func (r *slaHistoryRepository) StatusCounts(ctx context.Context) (map[domain.MetricStatus]int64, error) {
	rows, err := r.db.Query(ctx, `
        SELECT overall_status, COUNT(*)
        FROM (
            SELECT DISTINCT ON (ticket_id) overall_status
            FROM sla_history ORDER BY ticket_id, created_at DESC, id DESC
        ) latest
        GROUP BY overall_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.MetricStatus]int64)
	for rows.Next() {
		var status domain.MetricStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanHistory(row pgx.Row, rec *domain.SLAHistoryRecord) error {
	return row.Scan(
		&rec.ID,
		&rec.TicketID,
		&rec.Action,
		&rec.PriorStatus,
		&rec.NewStatus,
		&rec.ResponseHours,
		&rec.ResponseLimitHours,
		&rec.ResolutionHours,
		&rec.ResolutionLimitHours,
		&rec.OverallStatus,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
}
