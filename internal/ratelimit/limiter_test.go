package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock returns a limiter whose time only moves when advance is called.
func fakeClock(rl *RateLimiter) (advance func(time.Duration)) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.lastRefill = now
	return func(d time.Duration) { now = now.Add(d) }
}

func TestTryAcquireConsumesBurst(t *testing.T) {
	rl := NewRateLimiter(1.0, 3.0, nil)
	fakeClock(rl)

	for i := 0; i < 3; i++ {
		if !rl.tryAcquire() {
			t.Fatalf("tryAcquire() failed on attempt %d", i+1)
		}
	}
	if rl.tryAcquire() {
		t.Error("tryAcquire() should fail when the bucket is empty")
	}
}

func TestRefill(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		burst   float64
		elapsed time.Duration
		want    float64
	}{
		{"partial", 10, 10, 200 * time.Millisecond, 2},
		{"capped", 100, 5, time.Second, 5},
		{"slow", 0.5, 4, 2 * time.Second, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rate, tt.burst, nil)
			advance := fakeClock(rl)
			for rl.tryAcquire() {
			}
			advance(tt.elapsed)
			if got := rl.Tokens(); got < tt.want-0.01 || got > tt.want+0.01 {
				t.Errorf("Tokens() = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestTimeUntilNextToken(t *testing.T) {
	rl := NewRateLimiter(4.0, 1.0, nil)
	fakeClock(rl)
	rl.tryAcquire()

	if got := rl.timeUntilNextToken(); got != 250*time.Millisecond {
		t.Errorf("timeUntilNextToken() = %v, want 250ms", got)
	}
}

func TestWaitBlocksUntilToken(t *testing.T) {
	rl := NewRateLimiter(20.0, 1.0, nil)
	rl.tryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected to block ~50ms", elapsed)
	}
}

func TestWaitCancelled(t *testing.T) {
	rl := NewRateLimiter(0.01, 1.0, nil)
	rl.tryAcquire()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestForLaunches(t *testing.T) {
	if ForLaunches(0, 4, nil) != nil {
		t.Error("zero rate should disable pacing")
	}
	rl := ForLaunches(2, 4, nil)
	if rl == nil {
		t.Fatal("expected a limiter")
	}
	if rl.maxTokens != 4 {
		t.Errorf("burst = %v, want one per worker", rl.maxTokens)
	}
}
