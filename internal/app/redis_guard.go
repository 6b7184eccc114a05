package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var bookingRateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisBookingRateLimiter implements distributed fixed-window rate limiting
// using Redis. A nil limiter or nil client disables limiting.
type RedisBookingRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBookingRateLimiter(client redis.UniversalClient, prefix string) *RedisBookingRateLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "inspecto:rate_limit"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisBookingRateLimiter{
		client: client,
		prefix: trimmedPrefix,
	}
}

func (r *RedisBookingRateLimiter) ConsumeRateLimit(
	ctx context.Context,
	scope string,
	subject string,
	limit int,
	window time.Duration,
) (count int, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}

	normalizedScope := strings.TrimSpace(scope)
	normalizedSubject := strings.TrimSpace(subject)
	if normalizedScope == "" || normalizedSubject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, normalizedScope, normalizedSubject)
	rawResult, err := bookingRateLimitScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}

	currentCount, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return int(currentCount), 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return int(currentCount), retryAfter, nil
}

// RedisEventGuard deduplicates webhook deliveries by event id. A nil guard or
// nil client lets every event through.
type RedisEventGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisEventGuard(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisEventGuard {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "inspecto:webhook_event"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisEventGuard{client: client, prefix: trimmedPrefix, ttl: ttl}
}

// ClaimEvent returns true when this process is the first to see the event id.
// Redis errors fail open: settlement is idempotent at the store level, so a
// duplicate getting through costs a no-op write, not a double credit.
func (g *RedisEventGuard) ClaimEvent(ctx context.Context, eventID string) (bool, error) {
	if g == nil || g.client == nil || strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	key := fmt.Sprintf("%s:%s", g.prefix, eventID)
	claimed, err := g.client.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return true, err
	}
	return claimed, nil
}

// ReleaseEvent drops a claim so a redelivery of the same event id is processed
// again. Best effort: on a Redis error the claim expires with its TTL.
func (g *RedisEventGuard) ReleaseEvent(ctx context.Context, eventID string) {
	if g == nil || g.client == nil || strings.TrimSpace(eventID) == "" {
		return
	}
	key := fmt.Sprintf("%s:%s", g.prefix, eventID)
	if err := g.client.Del(ctx, key).Err(); err != nil {
		log.Printf("WARN: failed to release event claim %s: %v", eventID, err)
	}
}
