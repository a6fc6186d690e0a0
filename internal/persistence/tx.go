package persistence

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/repository"
	"github.com/spec-kit/sla-service/pkg/util"
)

// LockHistoricalSync serializes the historical record synchronization
// pass across processes.
const LockHistoricalSync = "historico_sla"

// Result carries the outcome of an atomic unit of work.
type Result struct {
	Success bool
	Data    any
	Err     error
}

// TxFunc is a unit of work executed inside a transaction. The Store it
// receives is bound to the transaction; all repository calls within it
// commit or roll back together.
type TxFunc func(ctx context.Context, store *repository.Store) (any, error)

// TxManager runs units of work inside Postgres transactions, optionally
// guarded by a session advisory lock.
type TxManager struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTxManager instantiates the manager.
func NewTxManager(pool *pgxpool.Pool, logger *zap.Logger) *TxManager {
	return &TxManager{pool: pool, logger: logger}
}

// ExecuteAtomic runs fn inside a transaction. Any error from fn rolls
// everything back; panics roll back and re-panic.
func (m *TxManager) ExecuteAtomic(ctx context.Context, fn TxFunc) Result {
	return m.run(ctx, "", fn)
}

// ExecuteWithLock runs fn inside a transaction after acquiring the
// named advisory lock. When another transaction holds the lock the call
// fails fast with a LOCK_BUSY error instead of queueing.
func (m *TxManager) ExecuteWithLock(ctx context.Context, lockName string, fn TxFunc) Result {
	return m.run(ctx, lockName, fn)
}

func (m *TxManager) run(ctx context.Context, lockName string, fn TxFunc) Result {
	if m.pool == nil {
		return Result{Err: util.NewStoreFailure("postgres pool not configured", nil)}
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return Result{Err: util.NewStoreFailure("begin transaction", err)}
	}

	var done bool
	defer func() {
		if !done {
			_ = tx.Rollback(ctx)
		}
	}()

	if lockName != "" {
		if err := m.acquireLock(ctx, tx, lockName); err != nil {
			return Result{Err: err}
		}
	}

	data, err := fn(ctx, repository.NewStore(tx))
	if err != nil {
		m.logger.Warn("transaction rolled back", zap.Error(err))
		return Result{Data: data, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{Err: util.NewStoreFailure("commit transaction", err)}
	}
	done = true
	return Result{Success: true, Data: data}
}

// acquireLock takes a transaction-scoped advisory lock, released
// automatically at commit or rollback.
func (m *TxManager) acquireLock(ctx context.Context, tx pgx.Tx, lockName string) error {
	key := LockKey(lockName)

	var acquired bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, key).Scan(&acquired); err != nil {
		return util.NewStoreFailure("acquire advisory lock", err)
	}
	if !acquired {
		m.logger.Info("advisory lock busy", zap.String("lock", lockName))
		return util.NewLockBusy(lockName)
	}
	return nil
}

// LockKey maps a lock name onto the 64-bit advisory lock keyspace.
func LockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
