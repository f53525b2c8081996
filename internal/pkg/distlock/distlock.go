// Package distlock provides the single-flight lease used to keep one
// automation batch in flight at a time across processes. Redis is the
// preferred backend; PostgreSQL advisory locks serve deployments that
// run without Redis.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a non-blocking, single-owner lease. Implementations are
// for use from a single goroutine; concurrent holders need separate
// lock instances.
type DistLock interface {
	// Acquire tries to take the lease. Returns true on success, false
	// when another holder has it.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lease back if this instance still owns it.
	Release(ctx context.Context) error
}

// NewLock creates a lease on the best available backend: Redis when a
// client is configured, otherwise a PostgreSQL advisory lock.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock implements DistLock over pg_try_advisory_lock, which is
// session-scoped: a dropped connection releases the lock, giving the
// same crash-safety a Redis TTL provides.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock creates an advisory lock whose numeric ID is derived
// deterministically from the key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
