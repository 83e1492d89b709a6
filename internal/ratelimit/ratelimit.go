// Package ratelimit implements a fixed-window rate limiter over a shared
// Redis counter. Window accounting is atomic: the INCR and expiry run in a
// single Lua script, so concurrent instances never double-count.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow increments the counter for the window containing now_ms and
// sets its expiry on first touch. Returns {count, remaining, reset_ms}.
var fixedWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local window_start_ms = math.floor(now_ms / window_ms) * window_ms
local window_key = key .. ':' .. window_start_ms

local count = redis.call('INCR', window_key)
if count == 1 then
    redis.call('PEXPIRE', window_key, window_ms)
end

local remaining = limit - count
if remaining < 0 then
    remaining = 0
end

return {count, remaining, window_start_ms + window_ms}
`)

// Result reports one limiter decision.
type Result struct {
	// Allowed is false once the window's count exceeds the limit.
	Allowed bool

	// Limit is the configured ceiling per window.
	Limit int

	// Remaining is how many requests are left in the current window.
	Remaining int

	// Reset is when the current window closes.
	Reset time.Time
}

// Limiter is a fixed-window rate limiter keyed by an identifier (user id,
// client IP). One limiter per guarded resource, sharing the Redis client.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// New creates a limiter allowing limit requests per window, namespaced
// under prefix.
func New(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Limit records one request for the identifier and reports whether it is
// allowed in the current window.
func (l *Limiter) Limit(ctx context.Context, identifier string) (*Result, error) {
	key := l.prefix + ":" + identifier
	now := time.Now()

	raw, err := fixedWindow.Run(ctx, l.client,
		[]string{key},
		l.limit,
		l.window.Milliseconds(),
		now.UnixMilli(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 3 {
		return nil, fmt.Errorf("unexpected rate limit script reply: %v", raw)
	}
	return l.parseReply(vals)
}

// parseReply converts the script's {count, remaining, reset_ms} reply.
func (l *Limiter) parseReply(vals []interface{}) (*Result, error) {
	nums := make([]int64, 3)
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected rate limit script value: %v", v)
		}
		nums[i] = n
	}
	return &Result{
		Allowed:   nums[0] <= int64(l.limit),
		Limit:     l.limit,
		Remaining: int(nums[1]),
		Reset:     time.UnixMilli(nums[2]),
	}, nil
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
