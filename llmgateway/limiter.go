package llmgateway

import (
	"sync"
	"time"
)

// RateLimiterConfig bounds the gateway's best-effort global call rate
// (§5: "LLM rate: global best-effort; retries backoff without
// serializing across users").
type RateLimiterConfig struct {
	MaxCalls int
	Window   time.Duration
}

func (c *RateLimiterConfig) applyDefaults() {
	if c.MaxCalls <= 0 {
		c.MaxCalls = 60
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
}

// RateLimiter is a simple sliding-window call counter, adapted from the
// pack's per-node rate limiter to gate the gateway as a whole.
type RateLimiter struct {
	mu    sync.Mutex
	cfg   RateLimiterConfig
	calls []time.Time
}

// NewRateLimiter builds a RateLimiter, applying defaults for any
// zero-valued field.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	cfg.applyDefaults()
	return &RateLimiter{cfg: cfg, calls: make([]time.Time, 0, cfg.MaxCalls)}
}

// allow reports whether a call attempt is within the configured rate and
// records it only when it is; every allowed attempt counts, retried calls
// included, while rejected attempts are not recorded.
func (rl *RateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	valid := rl.calls[:0]
	for _, t := range rl.calls {
		if now.Sub(t) < rl.cfg.Window {
			valid = append(valid, t)
		}
	}
	rl.calls = valid

	if len(rl.calls) >= rl.cfg.MaxCalls {
		return false
	}
	rl.calls = append(rl.calls, now)
	return true
}
