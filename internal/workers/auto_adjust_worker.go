package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	redisAdapter "github.com/selivandex/news-digest/internal/adapters/redis"
	"github.com/selivandex/news-digest/internal/preferences"
	"github.com/selivandex/news-digest/pkg/logger"
)

// unlockTimeout bounds lock release, which must outlive a cancelled pass
const unlockTimeout = 5 * time.Second

// ActiveUsers lists users who read something since a point in time
type ActiveUsers interface {
	ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error)
}

// Adjuster applies preferences learned from reading history
type Adjuster interface {
	AutoAdjust(ctx context.Context, userID int64) (preferences.AdjustResult, error)
}

// AutoAdjustWorker periodically re-tunes preferences of recently active
// users. Each user is adjusted under a lock so replicas do not repeat work.
type AutoAdjustWorker struct {
	users    ActiveUsers
	adjuster Adjuster
	locker   redisAdapter.Locker
	lookback time.Duration
	lockTTL  time.Duration
	now      func() time.Time
}

// NewAutoAdjustWorker creates new auto-adjust worker. Users with reads within
// lookback are considered active.
func NewAutoAdjustWorker(
	users ActiveUsers,
	adjuster Adjuster,
	locker redisAdapter.Locker,
	lookback time.Duration,
	lockTTL time.Duration,
) *AutoAdjustWorker {
	return &AutoAdjustWorker{
		users:    users,
		adjuster: adjuster,
		locker:   locker,
		lookback: lookback,
		lockTTL:  lockTTL,
		now:      time.Now,
	}
}

// Name returns worker name
func (w *AutoAdjustWorker) Name() string {
	return "auto_adjust"
}

// Run adjusts every active user once
func (w *AutoAdjustWorker) Run(ctx context.Context) error {
	since := w.now().UTC().Add(-w.lookback)

	userIDs, err := w.users.ListActiveUserIDs(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to list active users: %w", err)
	}

	var adjusted, skipped, failed int

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ok, err := w.adjustUser(ctx, userID)
		switch {
		case err != nil:
			failed++
			logger.Error("auto-adjust failed",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		case ok:
			adjusted++
		default:
			skipped++
		}
	}

	logger.Info("auto-adjust pass finished",
		zap.Int("active_users", len(userIDs)),
		zap.Int("adjusted", adjusted),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

// adjustUser reports false when the user is locked elsewhere or has too
// little history
func (w *AutoAdjustWorker) adjustUser(ctx context.Context, userID int64) (bool, error) {
	lockName := fmt.Sprintf("adjust:lock:%d", userID)

	acquired, err := w.locker.TryLock(ctx, lockName, w.lockTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		logger.Debug("user locked by another replica, skipping",
			zap.Int64("user_id", userID),
		)
		return false, nil
	}
	defer w.unlock(lockName, userID)

	result, err := w.adjuster.AutoAdjust(ctx, userID)
	if err != nil {
		return false, err
	}

	return result.Adjusted, nil
}

func (w *AutoAdjustWorker) unlock(lockName string, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
	defer cancel()

	if err := w.locker.Unlock(ctx, lockName); err != nil {
		logger.Warn("failed to release adjust lock",
			zap.Int64("user_id", userID),
			zap.String("lock", lockName),
			zap.Error(err),
		)
	}
}
