package redis

import (
	"context"
	"sync"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/selivandex/news-digest/pkg/logger"
)

// Locker hands out named, expiring, exclusive locks
type Locker interface {
	// TryLock reports false without error when the lock is held elsewhere
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error
}

// RedLocker takes locks across replicas with the Redlock algorithm
type RedLocker struct {
	lockManager *redlock.RedLock
}

// NewRedLocker creates new redlock-based locker
func NewRedLocker(lockManager *redlock.RedLock) *RedLocker {
	return &RedLocker{lockManager: lockManager}
}

func (l *RedLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	expiry, err := l.lockManager.Lock(ctx, name, ttl)
	if err != nil {
		// redlock reports a held lock as an error
		logger.Debug("lock held by another replica",
			zap.String("lock_name", name),
			zap.Error(err),
		)
		return false, nil
	}

	if expiry <= 0 {
		return false, nil
	}

	return true, nil
}

func (l *RedLocker) Unlock(ctx context.Context, name string) error {
	if err := l.lockManager.UnLock(ctx, name); err != nil {
		logger.Warn("failed to release lock (may have already expired)",
			zap.String("lock_name", name),
			zap.Error(err),
		)
	}
	return nil
}

// LocalLocker keeps locks in process memory. It serves single-replica
// deployments without Redis and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

// NewLocalLocker creates new in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (l *LocalLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, held := l.locks[name]; held && now.Before(expiresAt) {
		return false, nil
	}

	l.locks[name] = now.Add(ttl)
	return true, nil
}

func (l *LocalLocker) Unlock(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, name)
	return nil
}
