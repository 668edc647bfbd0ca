package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter throttles flow-start commands per user with an INCR+EXPIRE
// window counter.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}

	return count <= int64(limit), nil
}

func UserCommandKey(userID int64, command string) string {
	return fmt.Sprintf("rate_limit:%d:%s", userID, command)
}

// CommandLimiter binds a RateLimiter to the per-minute budget the command
// router expects.
type CommandLimiter struct {
	rl        *RateLimiter
	perMinute int
}

func NewCommandLimiter(rl *RateLimiter, perMinute int) *CommandLimiter {
	return &CommandLimiter{rl: rl, perMinute: perMinute}
}

func (c *CommandLimiter) Allow(ctx context.Context, userID int64, command string) (bool, error) {
	if c.perMinute <= 0 {
		return true, nil
	}
	return c.rl.Allow(ctx, UserCommandKey(userID, command), c.perMinute, time.Minute)
}
