// Package ratelimit implements a Redis-backed token bucket keyed by client IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ipKeyPrefix is the Redis key prefix for IP rate limits.
	ipKeyPrefix = "ratelimit:ip:"
	// minKeyTTL is the shortest TTL for bucket keys.
	minKeyTTL = 10 * time.Second
)

// Result contains the result of a rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript is a Lua script implementing the token bucket algorithm.
// It's atomic and handles token refill and consumption in a single operation.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])      -- tokens per second
	local burst = tonumber(ARGV[2])     -- max tokens (bucket capacity)
	local now = tonumber(ARGV[3])       -- current time in seconds
	local ttl = tonumber(ARGV[4])       -- TTL in seconds

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	local elapsed = math.max(0, now - last_update)
	tokens = math.min(burst, tokens + (elapsed * rate))

	local allowed = 0
	local retry_after = 0

	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// IPLimiter limits requests per client IP.
type IPLimiter struct {
	client *redis.Client
	rate   float64
	burst  int
	keyTTL time.Duration
	now    func() time.Time
}

// NewIPLimiter creates a limiter allowing rps requests per second with the
// given burst. IPs are hashed before they reach Redis.
func NewIPLimiter(client *redis.Client, rps float64, burst int) (*IPLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("ratelimit: redis client is required")
	}
	if rps <= 0 {
		return nil, fmt.Errorf("ratelimit: rps must be positive, got %v", rps)
	}
	if burst < 1 {
		burst = 1
	}

	// Keep the key long enough to refill a full bucket.
	ttl := time.Duration(math.Ceil(float64(burst)/rps)) * time.Second
	if ttl < minKeyTTL {
		ttl = minKeyTTL
	}

	return &IPLimiter{
		client: client,
		rate:   rps,
		burst:  burst,
		keyTTL: ttl,
		now:    time.Now,
	}, nil
}

// SetClock overrides the time source.
func (l *IPLimiter) SetClock(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Limit reports the configured requests per second.
func (l *IPLimiter) Limit() float64 {
	return l.rate
}

// Allow consumes one token for ip.
func (l *IPLimiter) Allow(ctx context.Context, ip string) (*Result, error) {
	key := ipKeyPrefix + hashIP(ip)
	now := l.now()

	res, err := tokenBucketScript.Run(ctx, l.client,
		[]string{key},
		l.rate, l.burst, now.Unix(), int(l.keyTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	return &Result{
		Allowed:    res[0] == 1,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(float64(time.Second) / l.rate)),
		RetryAfter: time.Duration(res[1]) * time.Second,
	}, nil
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8]) // 16 hex chars
}
