package redis

import (
	"context"
	"testing"
	"time"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	locker := NewLocalLocker()
	locker.now = func() time.Time { return current }

	t.Run("exclusive until released", func(t *testing.T) {
		ok, err := locker.TryLock(ctx, "adjust:lock:1", time.Minute)
		if err != nil || !ok {
			t.Fatalf("Expected first lock acquired, got %v, %v", ok, err)
		}

		if ok, _ := locker.TryLock(ctx, "adjust:lock:1", time.Minute); ok {
			t.Error("Expected second lock to be refused")
		}

		if ok, _ := locker.TryLock(ctx, "adjust:lock:2", time.Minute); !ok {
			t.Error("Expected other name to be independent")
		}

		if err := locker.Unlock(ctx, "adjust:lock:1"); err != nil {
			t.Fatalf("Unlock failed: %v", err)
		}
		if ok, _ := locker.TryLock(ctx, "adjust:lock:1", time.Minute); !ok {
			t.Error("Expected lock available after release")
		}
	})

	t.Run("expires after ttl", func(t *testing.T) {
		if ok, _ := locker.TryLock(ctx, "adjust:lock:3", time.Minute); !ok {
			t.Fatal("Expected lock acquired")
		}

		current = current.Add(61 * time.Second)
		if ok, _ := locker.TryLock(ctx, "adjust:lock:3", time.Minute); !ok {
			t.Error("Expected expired lock to be taken over")
		}
	})

	t.Run("unlock of unknown name", func(t *testing.T) {
		if err := locker.Unlock(ctx, "missing"); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})
}

func TestPrefixedLocker(t *testing.T) {
	ctx := context.Background()
	inner := NewLocalLocker()
	locker := &prefixedLocker{locker: inner, prefix: "newsdigest:"}

	if ok, _ := locker.TryLock(ctx, "adjust:lock:7", time.Minute); !ok {
		t.Fatal("Expected lock acquired")
	}

	if ok, _ := inner.TryLock(ctx, "newsdigest:adjust:lock:7", time.Minute); ok {
		t.Error("Expected lock to be held under the prefixed name")
	}

	if err := locker.Unlock(ctx, "adjust:lock:7"); err != nil {
		t.Fatalf("Unexpected unlock error: %v", err)
	}
	if ok, _ := inner.TryLock(ctx, "newsdigest:adjust:lock:7", time.Minute); !ok {
		t.Error("Expected prefixed lock released")
	}
}
