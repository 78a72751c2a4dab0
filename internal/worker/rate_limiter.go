package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter caps outbound sends per second across all worker processes
// using an atomic Redis Lua script. A GET → check → INCR sequence would
// race under concurrent workers; the script checks and increments in one
// step.
type RateLimiter struct {
	redis          *redis.Client
	sendsPerSecond int
	script         *redis.Script
}

const sendLimitLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
    return 0
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end
return 1
`

// NewRateLimiter creates a limiter allowing sendsPerSecond sends per
// gateway per second.
func NewRateLimiter(client *redis.Client, sendsPerSecond int) *RateLimiter {
	return &RateLimiter{
		redis:          client,
		sendsPerSecond: sendsPerSecond,
		script:         redis.NewScript(sendLimitLuaScript),
	}
}

// Allow reports whether one more send through the given gateway fits in
// the current one-second window. Fails open on Redis errors: a broken
// limiter must not stop delivery.
func (rl *RateLimiter) Allow(ctx context.Context, gateway string) (bool, error) {
	key := fmt.Sprintf("newsletter:sends:%s:%d", gateway, time.Now().Unix())

	res, err := rl.script.Run(ctx, rl.redis, []string{key}, rl.sendsPerSecond, 2).Int()
	if err != nil {
		return true, fmt.Errorf("rate limit check: %w", err)
	}
	return res == 1, nil
}
