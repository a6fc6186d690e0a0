package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-service/internal/domain"
)

// CompletedTicketFilter narrows completed-ticket listings for
// recalibration.
type CompletedTicketFilter struct {
	Priority       domain.TicketPriority
	OpenedSince    time.Time
	CompletedAfter *time.Time
}

// TicketRepository reads tickets owned by the external ticketing system.
// The single write, SetFirstResponse, backs the maintenance flow that
// fills missing first-response timestamps from the status log.
type TicketRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	ListCompleted(ctx context.Context, filter CompletedTicketFilter) ([]domain.Ticket, error)
	ListMissingFirstResponse(ctx context.Context) ([]domain.Ticket, error)
	SetFirstResponse(ctx context.Context, id int64, at time.Time) error
	CountOpen(ctx context.Context) (int64, error)
	CountOpenedSince(ctx context.Context, since time.Time) (int64, error)
}

const ticketColumns = `id, priority, status, opened_at, first_response_at, completed_at, cancelled_at, deleted_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 AND deleted_at IS NULL`, ticketColumns)
	var t domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE deleted_at IS NULL ORDER BY id`, ticketColumns)
	return r.list(ctx, query)
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE deleted_at IS NULL AND completed_at IS NULL AND cancelled_at IS NULL
        ORDER BY id`, ticketColumns)
	return r.list(ctx, query)
}

func (r *ticketRepository) ListCompleted(ctx context.Context, filter CompletedTicketFilter) ([]domain.Ticket, error) {
	clauses := []string{
		"deleted_at IS NULL",
		"(completed_at IS NOT NULL OR cancelled_at IS NOT NULL)",
	}
	args := []any{}

	if filter.Priority != "" {
		args = append(args, filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if !filter.OpenedSince.IsZero() {
		args = append(args, filter.OpenedSince)
		clauses = append(clauses, fmt.Sprintf("opened_at >= $%d", len(args)))
	}
	if filter.CompletedAfter != nil {
		args = append(args, *filter.CompletedAfter)
		clauses = append(clauses, fmt.Sprintf("COALESCE(completed_at, cancelled_at) > $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY COALESCE(completed_at, cancelled_at)`,
		ticketColumns, strings.Join(clauses, " AND "))
	return r.list(ctx, query, args...)
}

func (r *ticketRepository) ListMissingFirstResponse(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE deleted_at IS NULL AND first_response_at IS NULL
        ORDER BY id`, ticketColumns)
	return r.list(ctx, query)
}

func (r *ticketRepository) SetFirstResponse(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE tickets SET first_response_at=$1 WHERE id=$2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM tickets
        WHERE deleted_at IS NULL AND completed_at IS NULL AND cancelled_at IS NULL`).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountOpenedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM tickets
        WHERE deleted_at IS NULL AND opened_at >= $1`, since).Scan(&count)
	return count, err
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := scanTicket(rows, &t); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row, t *domain.Ticket) error {
	return row.Scan(
		&t.ID,
		&t.Priority,
		&t.Status,
		&t.OpenedAt,
		&t.FirstResponseAt,
		&t.CompletedAt,
		&t.CancelledAt,
		&t.DeletedAt,
	)
}
