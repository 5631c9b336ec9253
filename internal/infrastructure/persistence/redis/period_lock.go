package redis

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD RECOMPUTE LOCK
// ══════════════════════════════════════════════════════════════════════════════

// TTLRecomputeLock is the crash guard applied when the caller passes no TTL.
const TTLRecomputeLock = 30 * time.Second

func recomputeLockKey(periodKey string) string {
	return "lock:carencia:recompute:" + periodKey
}

// PeriodLock serializes recompute runs per (turma, month) key using SETNX.
// The TTL acts as a crash guard: a holder that dies without releasing stops
// blocking recomputes once the key expires. Implements carencia.PeriodLocker.
type PeriodLock struct {
	cache *Cache
}

// NewPeriodLock creates a new PeriodLock on the given cache client.
func NewPeriodLock(cache *Cache) *PeriodLock {
	return &PeriodLock{cache: cache}
}

// Acquire takes the lock for a period key. Returns false when another holder
// owns it.
func (l *PeriodLock) Acquire(ctx context.Context, periodKey string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = TTLRecomputeLock
	}

	ok, err := l.cache.SetNX(ctx, recomputeLockKey(periodKey), time.Now().UTC().Format(time.RFC3339Nano), ttl)
	if err != nil {
		return false, fmt.Errorf("period lock: failed to acquire %s: %w", periodKey, err)
	}

	return ok, nil
}

// Release frees the lock. Releasing a lock that already expired is a no-op.
func (l *PeriodLock) Release(ctx context.Context, periodKey string) error {
	if err := l.cache.Delete(ctx, recomputeLockKey(periodKey)); err != nil {
		return fmt.Errorf("period lock: failed to release %s: %w", periodKey, err)
	}
	return nil
}
