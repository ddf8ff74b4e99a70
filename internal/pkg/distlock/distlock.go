package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to a database session lock for the given driver
// ("postgres" or "mysql").
func NewLock(redisClient *redis.Client, db *sql.DB, driver, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	if driver == "mysql" {
		return NewMySQLNamedLock(db, key)
	}
	return NewPGAdvisoryLock(db, key)
}

// =============================================================================
// Database session locks (fallback when Redis is unavailable)
// =============================================================================
// Both pg_try_advisory_lock and GET_LOCK are session-scoped, so the lock
// pins one connection from the pool and releases on that same connection.
// The lock is automatically released if the connection drops.

// sessionLock holds the pinned connection shared by the SQL lock flavours.
type sessionLock struct {
	db   *sql.DB
	conn *sql.Conn
}

func (s *sessionLock) acquire(ctx context.Context, query string, arg interface{}) (bool, error) {
	if s.conn != nil {
		return false, errors.New("distlock: lock already held by this instance")
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("distlock: pin connection: %w", err)
	}
	var acquired sql.NullBool
	if err := conn.QueryRowContext(ctx, query, arg).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired.Valid || !acquired.Bool {
		conn.Close()
		return false, nil
	}
	s.conn = conn
	return true, nil
}

func (s *sessionLock) release(ctx context.Context, query string, arg interface{}) error {
	if s.conn == nil {
		return nil
	}
	_, err := s.conn.ExecContext(ctx, query, arg)
	cerr := s.conn.Close()
	s.conn = nil
	if err != nil {
		return err
	}
	return cerr
}

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	sessionLock
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		sessionLock: sessionLock{db: db},
		lockID:      int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	return l.acquire(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID)
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	return l.release(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
}

// MySQLNamedLock implements DistLock using MySQL GET_LOCK/RELEASE_LOCK.
type MySQLNamedLock struct {
	sessionLock
	name string
}

// NewMySQLNamedLock creates a named lock. MySQL caps lock names at 64 chars.
func NewMySQLNamedLock(db *sql.DB, key string) *MySQLNamedLock {
	name := "lock:" + key
	if len(name) > 64 {
		name = name[:64]
	}
	return &MySQLNamedLock{sessionLock: sessionLock{db: db}, name: name}
}

// Acquire tries to take the named lock without waiting.
func (l *MySQLNamedLock) Acquire(ctx context.Context) (bool, error) {
	return l.acquire(ctx, "SELECT GET_LOCK(?, 0)", l.name)
}

// Release releases the named lock.
func (l *MySQLNamedLock) Release(ctx context.Context) error {
	return l.release(ctx, "SELECT RELEASE_LOCK(?)", l.name)
}
