package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the querier surface shared by *pgxpool.Pool and pgx.Tx, so the
// same repository runs on the pool or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles every repository over one querier. The transaction
// manager hands a tx-scoped Store to its unit-of-work functions.
type Store struct {
	Tickets       TicketRepository
	Configs       SLAConfigRepository
	Calendar      CalendarRepository
	StatusHistory StatusHistoryRepository
	SLAHistory    SLAHistoryRepository
	MetricCache   MetricCacheRepository
}

// NewStore builds the repository bundle over db.
func NewStore(db DBTX) *Store {
	return &Store{
		Tickets:       NewTicketRepository(db),
		Configs:       NewSLAConfigRepository(db),
		Calendar:      NewCalendarRepository(db),
		StatusHistory: NewStatusHistoryRepository(db),
		SLAHistory:    NewSLAHistoryRepository(db),
		MetricCache:   NewMetricCacheRepository(db),
	}
}
