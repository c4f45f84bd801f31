package oneaccount

import "context"

// RateLimiter throttles login attempts. Keys are caller-chosen (the login
// handler uses "login:<email>"). A nil limiter means no throttling.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}
