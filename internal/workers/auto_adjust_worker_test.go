package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	redisAdapter "github.com/selivandex/news-digest/internal/adapters/redis"
	"github.com/selivandex/news-digest/internal/preferences"
)

type stubActiveUsers struct {
	ids   []int64
	err   error
	since time.Time
}

func (s *stubActiveUsers) ListActiveUserIDs(ctx context.Context, since time.Time) ([]int64, error) {
	s.since = since
	return s.ids, s.err
}

type recordingAdjuster struct {
	mu       sync.Mutex
	adjusted []int64
	failFor  map[int64]bool
}

func (r *recordingAdjuster) AutoAdjust(ctx context.Context, userID int64) (preferences.AdjustResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failFor[userID] {
		return preferences.AdjustResult{}, errors.New("store unavailable")
	}
	r.adjusted = append(r.adjusted, userID)
	return preferences.AdjustResult{Adjusted: true}, nil
}

func TestAutoAdjustWorker_Run(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	users := &stubActiveUsers{ids: []int64{1, 2, 3, 4}}
	adjuster := &recordingAdjuster{failFor: map[int64]bool{3: true}}
	locker := redisAdapter.NewLocalLocker()

	// user 2 is being adjusted by another replica
	if ok, _ := locker.TryLock(context.Background(), "adjust:lock:2", time.Minute); !ok {
		t.Fatal("Expected to take lock for setup")
	}

	w := NewAutoAdjustWorker(users, adjuster, locker, 6*time.Hour, time.Minute)
	w.now = func() time.Time { return now }

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !users.since.Equal(now.Add(-6 * time.Hour)) {
		t.Errorf("Expected lookback to start at %v, got %v", now.Add(-6*time.Hour), users.since)
	}

	if len(adjuster.adjusted) != 2 || adjuster.adjusted[0] != 1 || adjuster.adjusted[1] != 4 {
		t.Errorf("Expected users 1 and 4 adjusted, got %v", adjuster.adjusted)
	}

	// locks are released after each user
	for _, id := range []string{"adjust:lock:1", "adjust:lock:3", "adjust:lock:4"} {
		ok, _ := locker.TryLock(context.Background(), id, time.Minute)
		if !ok {
			t.Errorf("Expected %s to be released", id)
		}
	}
}

func TestAutoAdjustWorker_ListFailure(t *testing.T) {
	users := &stubActiveUsers{err: errors.New("connection reset")}
	w := NewAutoAdjustWorker(users, &recordingAdjuster{}, redisAdapter.NewLocalLocker(), time.Hour, time.Minute)

	if err := w.Run(context.Background()); err == nil {
		t.Error("Expected error when active users cannot be listed")
	}
}

func TestAutoAdjustWorker_StopsOnCancel(t *testing.T) {
	users := &stubActiveUsers{ids: []int64{1, 2}}
	adjuster := &recordingAdjuster{}
	w := NewAutoAdjustWorker(users, adjuster, redisAdapter.NewLocalLocker(), time.Hour, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(adjuster.adjusted) != 0 {
		t.Errorf("Expected no adjustments after cancel, got %v", adjuster.adjusted)
	}
}

// ctxCheckingLocker fails Unlock on a finished context, like a network call
type ctxCheckingLocker struct {
	*redisAdapter.LocalLocker
	unlockErrs []error
}

func (l *ctxCheckingLocker) Unlock(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		l.unlockErrs = append(l.unlockErrs, err)
		return err
	}
	return l.LocalLocker.Unlock(ctx, name)
}

type cancellingAdjuster struct {
	cancel context.CancelFunc
}

func (a *cancellingAdjuster) AutoAdjust(ctx context.Context, userID int64) (preferences.AdjustResult, error) {
	a.cancel()
	return preferences.AdjustResult{Adjusted: true}, nil
}

func TestAutoAdjustWorker_ReleasesLockAfterShutdown(t *testing.T) {
	users := &stubActiveUsers{ids: []int64{7}}
	locker := &ctxCheckingLocker{LocalLocker: redisAdapter.NewLocalLocker()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewAutoAdjustWorker(users, &cancellingAdjuster{cancel: cancel}, locker, time.Hour, time.Minute)
	_ = w.Run(ctx)

	if len(locker.unlockErrs) != 0 {
		t.Errorf("Expected unlock on a live context, got %v", locker.unlockErrs)
	}
	if ok, _ := locker.TryLock(context.Background(), "adjust:lock:7", time.Minute); !ok {
		t.Error("Expected adjust:lock:7 to be released after shutdown")
	}
}
