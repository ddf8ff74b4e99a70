package distlock

import (
	"context"
	"time"

	"github.com/ignite/membership-admin/internal/pkg/logger"
)

// Extender is implemented by locks that expire unless refreshed.
type Extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// Run acquires l, calls fn and releases l. It returns ErrLockHeld when
// another process owns the lock. A lock implementing Extender is refreshed
// every ttl/3 while fn runs; if a refresh fails, fn's context is cancelled
// so the work stops before a second owner can start.
func Run(ctx context.Context, l DistLock, ttl time.Duration, fn func(ctx context.Context) error) error {
	acquired, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrLockHeld
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Release(releaseCtx); err != nil {
			logger.Error("distlock: release failed", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if ext, ok := l.(Extender); ok && ttl > 0 {
		go keepAlive(runCtx, cancel, ext, ttl)
	}
	return fn(runCtx)
}

func keepAlive(ctx context.Context, cancel context.CancelFunc, ext Extender, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ext.Extend(ctx, ttl); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("distlock: lost lock, cancelling work", "error", err)
				cancel()
				return
			}
		}
	}
}
