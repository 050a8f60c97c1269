package redis

import (
	"context"
	"time"
)

// DistributedLock is a best-effort lock built on SET NX, used to keep
// multiple worker instances from running the same background job at once.
// The TTL bounds how long a crashed holder can block the next acquisition;
// it is not a fencing token and must not guard correctness-critical
// sections. The overdue sweep is idempotent, so a rare double run is safe.
type DistributedLock struct {
	cache *Cache
}

// NewDistributedLock creates a new DistributedLock.
func NewDistributedLock(cache *Cache) *DistributedLock {
	return &DistributedLock{cache: cache}
}

// TryLock attempts to acquire the lock for a resource.
// Returns false when another holder already owns it.
func (l *DistributedLock) TryLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	return l.cache.SetNX(ctx, LockKey(resource), time.Now().UTC().Format(time.RFC3339), ttl)
}

// Unlock releases the lock for a resource.
func (l *DistributedLock) Unlock(ctx context.Context, resource string) error {
	return l.cache.Delete(ctx, LockKey(resource))
}
