package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Fixed-window defaults: 10 attempts per 15 minutes, per key.
const (
	defaultMaxAttempts = 10
	defaultWindow      = 15 * 60 // seconds
)

// LoginLimiter implements oneaccount.RateLimiter with a fixed window
// counter per key. Key format: ratelimit:<key>.
type LoginLimiter struct {
	client *redis.Client

	// MaxAttempts and WindowSeconds override the defaults when positive.
	MaxAttempts   int
	WindowSeconds int

	Logger zerolog.Logger
}

// NewLoginLimiter creates a limiter wrapping the given Redis client.
func NewLoginLimiter(client *redis.Client) *LoginLimiter {
	return &LoginLimiter{client: client}
}

// Allow increments the key's window counter and reports whether the attempt
// is still under MaxAttempts. On Redis failure the attempt is allowed: an
// unavailable limiter must not lock everyone out.
func (l *LoginLimiter) Allow(ctx context.Context, key string) bool {
	maxAttempts := l.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	window := l.WindowSeconds
	if window <= 0 {
		window = defaultWindow
	}

	redisKey := "ratelimit:" + key
	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, time.Duration(window)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		l.Logger.Warn().Err(err).Msg("rate limiter unavailable, allowing attempt")
		return true
	}
	return count.Val() <= int64(maxAttempts)
}
