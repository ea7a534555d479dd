package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AceBNeato/sdmdweb-sub001/internal/auth"
	_ "github.com/AceBNeato/sdmdweb-sub001/testing"
)

func newLimiter(t *testing.T, max int) (*auth.Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return auth.NewLimiter(client, max), mr
}

func TestLimiterAllowsFreshKey(t *testing.T) {
	limiter, _ := newLimiter(t, 3)
	key := auth.LimitKey{Guard: auth.GuardAdmin, Identifier: "admin@test.local", Origin: "10.0.0.1"}

	attempt, err := limiter.Check(context.Background(), key)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !attempt.Allowed {
		t.Fatalf("fresh key should be allowed")
	}
	if attempt.Remaining != 3 {
		t.Fatalf("expected 3 remaining, got %d", attempt.Remaining)
	}
}

func TestLimiterLocksAfterThreshold(t *testing.T) {
	limiter, _ := newLimiter(t, 3)
	ctx := context.Background()
	key := auth.LimitKey{Guard: auth.GuardAdmin, Identifier: "admin@test.local", Origin: "10.0.0.1"}
	window := 60 * time.Second

	for i := 0; i < 2; i++ {
		remaining, err := limiter.RecordFailure(ctx, key, window)
		if err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
		if remaining != 2-i {
			t.Fatalf("after failure %d expected %d remaining, got %d", i+1, 2-i, remaining)
		}
		attempt, err := limiter.Check(ctx, key)
		if err != nil {
			t.Fatalf("check after failure %d: %v", i+1, err)
		}
		if !attempt.Allowed {
			t.Fatalf("should still be allowed after %d failures", i+1)
		}
	}

	remaining, err := limiter.RecordFailure(ctx, key, window)
	if err != nil {
		t.Fatalf("third failure: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining after third failure, got %d", remaining)
	}

	attempt, err := limiter.Check(ctx, key)
	if err != nil {
		t.Fatalf("check after lockout: %v", err)
	}
	if attempt.Allowed {
		t.Fatalf("fourth attempt should be rejected")
	}
	if attempt.RetryAfter <= 0 || attempt.RetryAfter > window {
		t.Fatalf("retry-after should be within the window, got %s", attempt.RetryAfter)
	}
}

func TestLimiterWindowRunsFromLockout(t *testing.T) {
	limiter, _ := newLimiter(t, 3)
	ctx := context.Background()
	key := auth.LimitKey{Guard: auth.GuardAdmin, Identifier: "admin@test.local", Origin: "10.0.0.1"}
	window := 60 * time.Second

	for i := 0; i < 3; i++ {
		if _, err := limiter.RecordFailure(ctx, key, window); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	// The threshold-crossing failure re-stamps the TTL, so the full recovery
	// delay counts from the lockout itself, not from the first failure.
	attempt, err := limiter.Check(ctx, key)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if attempt.RetryAfter != window {
		t.Fatalf("expected retry-after %s, got %s", window, attempt.RetryAfter)
	}
}

func TestLimiterExpiresAfterWindow(t *testing.T) {
	limiter, mr := newLimiter(t, 3)
	ctx := context.Background()
	key := auth.LimitKey{Guard: auth.GuardStaff, Identifier: "staff@test.local", Origin: "10.0.0.2"}
	window := 15 * time.Minute

	for i := 0; i < 3; i++ {
		if _, err := limiter.RecordFailure(ctx, key, window); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	attempt, err := limiter.Check(ctx, key)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if attempt.Allowed {
		t.Fatalf("expected lockout")
	}

	mr.FastForward(window + time.Second)

	attempt, err = limiter.Check(ctx, key)
	if err != nil {
		t.Fatalf("check after window: %v", err)
	}
	if !attempt.Allowed {
		t.Fatalf("counter should expire with the window")
	}
	if attempt.Remaining != 3 {
		t.Fatalf("expected full allowance after expiry, got %d", attempt.Remaining)
	}
}

func TestLimiterClearOnSuccess(t *testing.T) {
	limiter, _ := newLimiter(t, 3)
	ctx := context.Background()
	key := auth.LimitKey{Guard: auth.GuardTechnician, Identifier: "tech@test.local", Origin: "10.0.0.3"}

	for i := 0; i < 2; i++ {
		if _, err := limiter.RecordFailure(ctx, key, time.Minute); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := limiter.Clear(ctx, key); err != nil {
		t.Fatalf("clear: %v", err)
	}

	attempt, err := limiter.Check(ctx, key)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !attempt.Allowed || attempt.Remaining != 3 {
		t.Fatalf("clear should reset the allowance, got allowed=%v remaining=%d", attempt.Allowed, attempt.Remaining)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := newLimiter(t, 3)
	ctx := context.Background()
	locked := auth.LimitKey{Guard: auth.GuardAdmin, Identifier: "admin@test.local", Origin: "10.0.0.1"}

	for i := 0; i < 3; i++ {
		if _, err := limiter.RecordFailure(ctx, locked, time.Minute); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	others := []auth.LimitKey{
		{Guard: auth.GuardStaff, Identifier: "admin@test.local", Origin: "10.0.0.1"},
		{Guard: auth.GuardAdmin, Identifier: "other@test.local", Origin: "10.0.0.1"},
		{Guard: auth.GuardAdmin, Identifier: "admin@test.local", Origin: "10.0.0.9"},
	}
	for _, key := range others {
		attempt, err := limiter.Check(ctx, key)
		if err != nil {
			t.Fatalf("check %v: %v", key, err)
		}
		if !attempt.Allowed {
			t.Fatalf("key %v should be unaffected by the locked counter", key)
		}
	}
}

func TestLimiterConcurrentFailures(t *testing.T) {
	limiter, _ := newLimiter(t, 3)
	ctx := context.Background()
	key := auth.LimitKey{Guard: auth.GuardAdmin, Identifier: "admin@test.local", Origin: "10.0.0.1"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = limiter.RecordFailure(ctx, key, time.Minute)
		}()
	}
	wg.Wait()

	attempt, err := limiter.Check(ctx, key)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if attempt.Allowed {
		t.Fatalf("ten concurrent failures must not lose the lockout")
	}
}
