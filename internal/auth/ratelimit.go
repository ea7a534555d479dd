package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitKey identifies one lockout counter: attempts are tracked per
// (guard, identifier, origin), so an attacker hammering one account from one
// address cannot lock the account out for everyone else.
type LimitKey struct {
	Guard      GuardClass
	Identifier string
	Origin     string
}

func (k LimitKey) redisKey() string {
	return fmt.Sprintf("lockout:%s:%s:%s", k.Guard, k.Identifier, k.Origin)
}

// Attempt is the rate-limiter's answer for one login try.
type Attempt struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter tracks failed login attempts in Redis. The counter lives in the
// shared store so lockouts hold cluster-wide, and the increment runs as a
// single server-side script so concurrent failures never lose updates.
type Limiter struct {
	client *redis.Client
	max    int
}

// failScript atomically increments the counter and stamps the window TTL: on
// creation, and again on the attempt that crosses the threshold so the full
// recovery delay runs from the lockout itself.
var failScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or n >= tonumber(ARGV[2]) then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// NewLimiter constructs a Limiter with the given attempt threshold.
func NewLimiter(client *redis.Client, maxAttempts int) *Limiter {
	return &Limiter{client: client, max: maxAttempts}
}

// Check must run before any credential verification. A locked key is
// rejected here without ever touching the password hash.
func (l *Limiter) Check(ctx context.Context, key LimitKey) (Attempt, error) {
	count, err := l.client.Get(ctx, key.redisKey()).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Attempt{Allowed: true, Remaining: l.max}, nil
		}
		return Attempt{}, fmt.Errorf("auth: limiter check: %w", err)
	}
	if count >= l.max {
		ttl, err := l.client.TTL(ctx, key.redisKey()).Result()
		if err != nil {
			return Attempt{}, fmt.Errorf("auth: limiter ttl: %w", err)
		}
		if ttl < 0 {
			ttl = 0
		}
		return Attempt{Allowed: false, RetryAfter: ttl}, nil
	}
	return Attempt{Allowed: true, Remaining: l.max - count}, nil
}

// RecordFailure bumps the counter, creating it with the window TTL if
// absent. Returns the attempts now remaining before lockout.
func (l *Limiter) RecordFailure(ctx context.Context, key LimitKey, window time.Duration) (int, error) {
	count, err := failScript.Run(ctx, l.client, []string{key.redisKey()}, window.Milliseconds(), l.max).Int()
	if err != nil {
		return 0, fmt.Errorf("auth: limiter record: %w", err)
	}
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Clear wipes the counter entirely. Called on every successful login.
func (l *Limiter) Clear(ctx context.Context, key LimitKey) error {
	if err := l.client.Del(ctx, key.redisKey()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth: limiter clear: %w", err)
	}
	return nil
}
