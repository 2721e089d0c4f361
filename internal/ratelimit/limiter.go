// Package ratelimit paces spotdl launches with a token bucket so a large
// batch does not hammer the lookup services at startup.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/spdl/spdl/internal/logging"
)

// warnAfter is the wait above which a throttled launch is logged.
const warnAfter = 2 * time.Second

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
type RateLimiter struct {
	tokens       float64
	maxTokens    float64
	refillRate   float64
	lastRefill   time.Time
	lastWarnTime time.Time
	logger       *logging.Logger
	now          func() time.Time
	mu           sync.Mutex
}

// NewRateLimiter creates a limiter that starts with a full bucket.
// tokensPerSecond must be positive; burstSize below 1 is raised to 1.
func NewRateLimiter(tokensPerSecond, burstSize float64, logger *logging.Logger) *RateLimiter {
	if burstSize < 1 {
		burstSize = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	rl := &RateLimiter{
		tokens:     burstSize,
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		logger:     logger,
		now:        time.Now,
	}
	rl.lastRefill = rl.now()
	return rl
}

// ForLaunches returns a limiter for launchesPerSecond spotdl starts with a
// burst of one launch per worker, or nil when the rate is not positive.
func ForLaunches(launchesPerSecond float64, workers int, logger *logging.Logger) *RateLimiter {
	if launchesPerSecond <= 0 {
		return nil
	}
	return NewRateLimiter(launchesPerSecond, float64(workers), logger)
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.tryAcquire() {
		return nil
	}

	if wait := rl.timeUntilNextToken(); wait > warnAfter {
		rl.mu.Lock()
		if rl.now().Sub(rl.lastWarnTime) > 10*time.Second {
			rl.logger.Info().Dur("wait", wait).Msg("Launch rate limit reached, pausing")
			rl.lastWarnTime = rl.now()
		}
		rl.mu.Unlock()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rl.tryAcquire() {
			return nil
		}

		timer := time.NewTimer(rl.timeUntilNextToken())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill adds the tokens earned since the last refill. Caller holds mu.
func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1.0 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	needed := 1.0 - rl.tokens
	if needed <= 0 {
		return 0
	}
	return time.Duration(needed / rl.refillRate * float64(time.Second))
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}
