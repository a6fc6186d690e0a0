package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
)

// KeyPrefix namespaces every SLA metric key. Invalidation is broad by
// design: any configuration or ticket write clears the whole prefix
// instead of tracking per-entity dependency sets, a deliberate
// simplicity/precision tradeoff at this dataset size.
const KeyPrefix = "sla:"

// TicketKeyPrefix builds the key prefix for one ticket's derived metrics.
func TicketKeyPrefix(ticketID int64) string {
	return fmt.Sprintf("%sticket:%d:", KeyPrefix, ticketID)
}

// Store is the persisted cache tier. A nil Store degrades the manager to
// memory-only operation.
type Store interface {
	Get(ctx context.Context, key string) (*domain.MetricCacheEntry, error)
	Put(ctx context.Context, entry domain.MetricCacheEntry) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountExpired(ctx context.Context, now time.Time) (int64, error)
}

// Stats reports the state of both tiers.
type Stats struct {
	MemoryEntries    int   `json:"memory_entries"`
	PersistedEntries int64 `json:"database_entries"`
	ExpiredInStore   int64 `json:"expired_in_db"`
}

// Manager memoizes expensive aggregate computations in a process-local
// map backed by the persisted store. Entries are immutable once written;
// they are overwritten wholesale, never mutated in place.
type Manager struct {
	mu     sync.RWMutex
	memory map[string]domain.MetricCacheEntry
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewManager constructs a cache manager. One instance is created per
// process and shared by all callers.
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		memory: make(map[string]domain.MetricCacheEntry),
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// GetOrCompute returns the cached value for key, consulting the memory
// tier, then the persisted tier, then invoking compute and writing the
// serialized result to both tiers with the given TTL. Persisted-tier
// failures degrade to memory-only operation with a warning; they never
// fail the caller's request.
func (m *Manager) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) ([]byte, error) {
	now := m.now()

	m.mu.RLock()
	entry, ok := m.memory[key]
	m.mu.RUnlock()
	if ok && !entry.Expired(now) {
		return entry.Value, nil
	}

	if m.store != nil {
		stored, err := m.store.Get(ctx, key)
		if err != nil {
			m.logger.Warn("persisted cache unreachable, serving memory-only", zap.String("key", key), zap.Error(err))
		} else if stored != nil && !stored.Expired(now) {
			m.mu.Lock()
			m.memory[key] = *stored
			m.mu.Unlock()
			return stored.Value, nil
		}
	}

	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	fresh := domain.MetricCacheEntry{
		Key:        key,
		Value:      raw,
		ComputedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	m.mu.Lock()
	m.memory[key] = fresh
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Put(ctx, fresh); err != nil {
			m.logger.Warn("failed to persist cache entry", zap.String("key", key), zap.Error(err))
		}
	}
	return raw, nil
}

// InvalidateAll drops every entry from both tiers.
func (m *Manager) InvalidateAll(ctx context.Context) {
	m.mu.Lock()
	m.memory = make(map[string]domain.MetricCacheEntry)
	m.mu.Unlock()

	if m.store != nil {
		if _, err := m.store.DeleteAll(ctx); err != nil {
			m.logger.Warn("failed to clear persisted cache", zap.Error(err))
		}
	}
}

// InvalidatePrefix drops every entry whose key starts with prefix.
func (m *Manager) InvalidatePrefix(ctx context.Context, prefix string) {
	m.mu.Lock()
	for key := range m.memory {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.memory, key)
		}
	}
	m.mu.Unlock()

	if m.store != nil {
		if _, err := m.store.DeleteByPrefix(ctx, prefix); err != nil {
			m.logger.Warn("failed to clear persisted cache prefix", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

// InvalidateForTicket drops entries derived from one ticket plus the
// shared aggregates that include it.
func (m *Manager) InvalidateForTicket(ctx context.Context, ticketID int64) {
	m.InvalidatePrefix(ctx, TicketKeyPrefix(ticketID))
	m.InvalidatePrefix(ctx, KeyPrefix+"metrics:")
}

// ClearExpired sweeps expired rows from the persisted tier. The memory
// tier is left alone; its entries re-validate lazily on the next read.
func (m *Manager) ClearExpired(ctx context.Context) (int64, error) {
	if m.store == nil {
		return 0, nil
	}
	return m.store.DeleteExpired(ctx, m.now())
}

// Stats reports entry counts for both tiers. Persisted-tier errors are
// reported as zero counts with a warning.
func (m *Manager) Stats(ctx context.Context) Stats {
	m.mu.RLock()
	memEntries := len(m.memory)
	m.mu.RUnlock()

	stats := Stats{MemoryEntries: memEntries}
	if m.store == nil {
		return stats
	}
	count, err := m.store.Count(ctx)
	if err != nil {
		m.logger.Warn("failed to count persisted cache", zap.Error(err))
		return stats
	}
	expired, err := m.store.CountExpired(ctx, m.now())
	if err != nil {
		m.logger.Warn("failed to count expired cache rows", zap.Error(err))
	}
	stats.PersistedEntries = count
	stats.ExpiredInStore = expired
	return stats
}
