package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-service/internal/domain"
)

// StatusHistoryRepository reads the ticketing system's status transition
// log, from which pause intervals and first responses are derived.
type StatusHistoryRepository interface {
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.StatusTransition, error)
	// FirstTransitionOut returns the earliest transition whose status
	// differs from openingStatus, or nil when the log has none.
	FirstTransitionOut(ctx context.Context, ticketID int64, openingStatus string) (*domain.StatusTransition, error)
}

type statusHistoryRepository struct {
	db DBTX
}

// NewStatusHistoryRepository instantiates the repository.
func NewStatusHistoryRepository(db DBTX) StatusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

func (r *statusHistoryRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.StatusTransition, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, ticket_id, status, started_at, ended_at
        FROM status_history WHERE ticket_id=$1 ORDER BY started_at`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusTransition
	for rows.Next() {
		var tr domain.StatusTransition
		if err := rows.Scan(&tr.ID, &tr.TicketID, &tr.Status, &tr.StartedAt, &tr.EndedAt); err != nil {
			return nil, err
		}
		result = append(result, tr)
	}
	return result, rows.Err()
}

func (r *statusHistoryRepository) FirstTransitionOut(ctx context.Context, ticketID int64, openingStatus string) (*domain.StatusTransition, error) {
	var tr domain.StatusTransition
	err := r.db.QueryRow(ctx, `
        SELECT id, ticket_id, status, started_at, ended_at
        FROM status_history WHERE ticket_id=$1 AND status<>$2
        ORDER BY started_at LIMIT 1`, ticketID, openingStatus).
		Scan(&tr.ID, &tr.TicketID, &tr.Status, &tr.StartedAt, &tr.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}
