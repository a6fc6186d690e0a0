package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-service/internal/domain"
)

// MetricCacheRepository is the persisted cache tier: the source of truth
// for cached metrics across processes and restarts.
type MetricCacheRepository interface {
	Get(ctx context.Context, key string) (*domain.MetricCacheEntry, error)
	Put(ctx context.Context, entry domain.MetricCacheEntry) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountExpired(ctx context.Context, now time.Time) (int64, error)
}

type metricCacheRepository struct {
	db DBTX
}

// NewMetricCacheRepository instantiates the repository.
func NewMetricCacheRepository(db DBTX) MetricCacheRepository {
	return &metricCacheRepository{db: db}
}

func (r *metricCacheRepository) Get(ctx context.Context, key string) (*domain.MetricCacheEntry, error) {
	var entry domain.MetricCacheEntry
	err := r.db.QueryRow(ctx, `
        SELECT cache_key, value, computed_at, expires_at
        FROM sla_metric_cache WHERE cache_key=$1`, key).
		Scan(&entry.Key, &entry.Value, &entry.ComputedAt, &entry.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *metricCacheRepository) Put(ctx context.Context, entry domain.MetricCacheEntry) error {
	const query = `
        INSERT INTO sla_metric_cache (cache_key, value, computed_at, expires_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (cache_key) DO UPDATE
        SET value=EXCLUDED.value, computed_at=EXCLUDED.computed_at, expires_at=EXCLUDED.expires_at`
	_, err := r.db.Exec(ctx, query, entry.Key, entry.Value, entry.ComputedAt, entry.ExpiresAt)
	return err
}

func (r *metricCacheRepository) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sla_metric_cache WHERE cache_key LIKE $1 || '%'`, prefix)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *metricCacheRepository) DeleteAll(ctx context.Context) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sla_metric_cache`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *metricCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sla_metric_cache WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *metricCacheRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sla_metric_cache`).Scan(&count)
	return count, err
}

func (r *metricCacheRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sla_metric_cache WHERE expires_at < $1`, now).Scan(&count)
	return count, err
}
