package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-service/internal/domain"
)

// SLAConfigRepository manages the per-priority limit rows.
type SLAConfigRepository interface {
	Create(ctx context.Context, cfg *domain.SLAConfiguration) error
	Update(ctx context.Context, cfg *domain.SLAConfiguration) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.SLAConfiguration, error)
	GetActiveByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfiguration, error)
	List(ctx context.Context) ([]domain.SLAConfiguration, error)
	ListActive(ctx context.Context) ([]domain.SLAConfiguration, error)
	StampReset(ctx context.Context, at time.Time) (int64, error)
	SetResolutionLimit(ctx context.Context, priority domain.TicketPriority, hours float64) error
}

const configColumns = `id, priority, response_hours, resolution_hours, description, active, last_reset_at, created_at, updated_at`

type slaConfigRepository struct {
	db DBTX
}

// NewSLAConfigRepository instantiates the repository.
func NewSLAConfigRepository(db DBTX) SLAConfigRepository {
	return &slaConfigRepository{db: db}
}

func (r *slaConfigRepository) Create(ctx context.Context, cfg *domain.SLAConfiguration) error {
	const query = `
        INSERT INTO sla_configurations (priority, response_hours, resolution_hours, description, active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		cfg.Priority,
		cfg.ResponseHours,
		cfg.ResolutionHours,
		cfg.Description,
		cfg.Active,
	).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
}

func (r *slaConfigRepository) Update(ctx context.Context, cfg *domain.SLAConfiguration) error {
	const query = `
        UPDATE sla_configurations
        SET response_hours=$1, resolution_hours=$2, description=$3, active=$4, last_reset_at=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.db.Exec(ctx, query,
		cfg.ResponseHours,
		cfg.ResolutionHours,
		cfg.Description,
		cfg.Active,
		cfg.LastResetAt,
		cfg.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaConfigRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sla_configurations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaConfigRepository) GetByID(ctx context.Context, id int64) (*domain.SLAConfiguration, error) {
	return r.fetchSingle(ctx, `SELECT `+configColumns+` FROM sla_configurations WHERE id=$1`, id)
}

func (r *slaConfigRepository) GetActiveByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfiguration, error) {
	return r.fetchSingle(ctx,
		`SELECT `+configColumns+` FROM sla_configurations WHERE priority=$1 AND active ORDER BY id LIMIT 1`,
		priority)
}

func (r *slaConfigRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.SLAConfiguration, error) {
	var cfg domain.SLAConfiguration
	if err := scanConfig(r.db.QueryRow(ctx, query, arg), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *slaConfigRepository) List(ctx context.Context) ([]domain.SLAConfiguration, error) {
	return r.list(ctx, `SELECT `+configColumns+` FROM sla_configurations ORDER BY priority`)
}

func (r *slaConfigRepository) ListActive(ctx context.Context) ([]domain.SLAConfiguration, error) {
	return r.list(ctx, `SELECT `+configColumns+` FROM sla_configurations WHERE active ORDER BY priority`)
}

// StampReset records a system-wide SLA reset on every active
// configuration; subsequent calculations ignore tickets opened earlier.
func (r *slaConfigRepository) StampReset(ctx context.Context, at time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx,
		`UPDATE sla_configurations SET last_reset_at=$1, updated_at=$1 WHERE active`, at)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *slaConfigRepository) SetResolutionLimit(ctx context.Context, priority domain.TicketPriority, hours float64) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE sla_configurations SET resolution_hours=$1, updated_at=NOW() WHERE priority=$2 AND active`,
		hours, priority)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaConfigRepository) list(ctx context.Context, query string) ([]domain.SLAConfiguration, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAConfiguration
	for rows.Next() {
		var cfg domain.SLAConfiguration
		if err := scanConfig(rows, &cfg); err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

func scanConfig(row pgx.Row, cfg *domain.SLAConfiguration) error {
	return row.Scan(
		&cfg.ID,
		&cfg.Priority,
		&cfg.ResponseHours,
		&cfg.ResolutionHours,
		&cfg.Description,
		&cfg.Active,
		&cfg.LastResetAt,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
}
