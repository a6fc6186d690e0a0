package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-service/internal/domain"
)

type fakeStore struct {
	entries map[string]domain.MetricCacheEntry
	fail    bool
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]domain.MetricCacheEntry)}
}

func (f *fakeStore) Get(ctx context.Context, key string) (*domain.MetricCacheEntry, error) {
	if f.fail {
		return nil, errors.New("store down")
	}
	e, ok := f.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeStore) Put(ctx context.Context, entry domain.MetricCacheEntry) error {
	if f.fail {
		return errors.New("store down")
	}
	f.entries[entry.Key] = entry
	f.puts++
	return nil
}

func (f *fakeStore) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	if f.fail {
		return 0, errors.New("store down")
	}
	var n int64
	for k := range f.entries {
		if strings.HasPrefix(k, prefix) {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteAll(ctx context.Context) (int64, error) {
	n := int64(len(f.entries))
	f.entries = make(map[string]domain.MetricCacheEntry)
	return n, nil
}

func (f *fakeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for k, e := range f.entries {
		if e.Expired(now) {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.entries)), nil
}

func (f *fakeStore) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, e := range f.entries {
		if e.Expired(now) {
			n++
		}
	}
	return n, nil
}

func testManager(store Store) (*Manager, *time.Time) {
	m := NewManager(store, nil)
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestGetOrComputeComputesExactlyOnce(t *testing.T) {
	m, _ := testManager(newFakeStore())
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (any, error) {
		calls++
		return map[string]int{"value": 42}, nil
	}

	first, err := m.GetOrCompute(ctx, "sla:metrics:compliance", time.Minute, compute)
	require.NoError(t, err)
	second, err := m.GetOrCompute(ctx, "sla:metrics:compliance", time.Minute, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestGetOrComputeRecomputesAfterInvalidation(t *testing.T) {
	m, _ := testManager(newFakeStore())
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	_, err := m.GetOrCompute(ctx, "sla:metrics:compliance", time.Minute, compute)
	require.NoError(t, err)

	m.InvalidateAll(ctx)

	_, err = m.GetOrCompute(ctx, "sla:metrics:compliance", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputeRecomputesAfterExpiry(t *testing.T) {
	store := newFakeStore()
	m, now := testManager(store)
	ctx := context.Background()

	calls := 0
	compute := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	_, err := m.GetOrCompute(ctx, "sla:metrics:avg", time.Minute, compute)
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)

	_, err = m.GetOrCompute(ctx, "sla:metrics:avg", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputePopulatesMemoryFromStore(t *testing.T) {
	store := newFakeStore()
	m, _ := testManager(store)
	ctx := context.Background()

	// Another process already persisted the value.
	store.entries["sla:metrics:dist"] = domain.MetricCacheEntry{
		Key:        "sla:metrics:dist",
		Value:      []byte(`{"dentro_sla":5}`),
		ComputedAt: m.now(),
		ExpiresAt:  m.now().Add(time.Hour),
	}

	got, err := m.GetOrCompute(ctx, "sla:metrics:dist", time.Minute, func(ctx context.Context) (any, error) {
		t.Fatal("compute must not run on a persisted hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"dentro_sla":5}`, string(got))

	stats := m.Stats(ctx)
	assert.Equal(t, 1, stats.MemoryEntries)
}

func TestGetOrComputeDegradesWhenStoreUnreachable(t *testing.T) {
	store := newFakeStore()
	store.fail = true
	m, _ := testManager(store)
	ctx := context.Background()

	calls := 0
	got, err := m.GetOrCompute(ctx, "sla:metrics:open", time.Minute, func(ctx context.Context) (any, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("7"), got)

	// Memory tier still serves the value without recompute.
	_, err = m.GetOrCompute(ctx, "sla:metrics:open", time.Minute, func(ctx context.Context) (any, error) {
		calls++
		return 8, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestInvalidatePrefix(t *testing.T) {
	store := newFakeStore()
	m, _ := testManager(store)
	ctx := context.Background()

	keys := []string{"sla:ticket:1:status", "sla:ticket:2:status", "sla:metrics:compliance"}
	for _, k := range keys {
		_, err := m.GetOrCompute(ctx, k, time.Minute, func(ctx context.Context) (any, error) { return k, nil })
		require.NoError(t, err)
	}

	m.InvalidatePrefix(ctx, TicketKeyPrefix(1))

	stats := m.Stats(ctx)
	assert.Equal(t, 2, stats.MemoryEntries)
	assert.Equal(t, int64(2), stats.PersistedEntries)
}

func TestClearExpiredLeavesMemoryAlone(t *testing.T) {
	store := newFakeStore()
	m, now := testManager(store)
	ctx := context.Background()

	_, err := m.GetOrCompute(ctx, "sla:metrics:old", time.Minute, func(ctx context.Context) (any, error) { return 1, nil })
	require.NoError(t, err)
	_, err = m.GetOrCompute(ctx, "sla:metrics:new", time.Hour, func(ctx context.Context) (any, error) { return 2, nil })
	require.NoError(t, err)

	*now = now.Add(10 * time.Minute)

	removed, err := m.ClearExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	stats := m.Stats(ctx)
	assert.Equal(t, 2, stats.MemoryEntries)
	assert.Equal(t, int64(1), stats.PersistedEntries)
}
