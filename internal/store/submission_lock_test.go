package store

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLock(t *testing.T) (*SubmissionLock, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewSubmissionLock(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestSubmissionLockMutualExclusion(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()
	key := "exam_lock:paper1:7"

	ok, err := lock.TryAcquire(ctx, key, "token-a", 30*time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	ok, err = lock.TryAcquire(ctx, key, "token-b", 30*time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to be rejected while held")
	}
}

func TestSubmissionLockReleaseRequiresMatchingToken(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()
	key := "exam_lock:paper1:7"

	if _, err := lock.TryAcquire(ctx, key, "token-a", 30*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	released, err := lock.Release(ctx, key, "token-b")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released {
		t.Fatal("expected release with foreign token to be refused")
	}

	released, err = lock.Release(ctx, key, "token-a")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released {
		t.Fatal("expected release with matching token to succeed")
	}

	// Lock is free again.
	ok, err := lock.TryAcquire(ctx, key, "token-c", 30*time.Second)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if !ok {
		t.Fatal("expected reacquire after release to succeed")
	}
}

func TestSubmissionLockLeaseExpiry(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()
	key := "exam_lock:paper1:7"

	if _, err := lock.TryAcquire(ctx, key, "token-a", 30*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	mr.FastForward(31 * time.Second)

	ok, err := lock.TryAcquire(ctx, key, "token-b", 30*time.Second)
	if err != nil {
		t.Fatalf("acquire after lease expiry: %v", err)
	}
	if !ok {
		t.Fatal("expected lock to self-expire after its lease")
	}

	// The stale holder must not be able to free the new holder's lock.
	released, err := lock.Release(ctx, key, "token-a")
	if err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if released {
		t.Fatal("expected stale token release to be refused")
	}
}
