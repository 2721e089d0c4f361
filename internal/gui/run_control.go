package gui

import (
	"context"
	"sync"
	"time"
)

// runControl owns the context of the batch started from the window so that
// closing the window can wait for it or kill it.
type runControl struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// begin returns the context for a new run. end must be called when the run
// returns.
func (r *runControl) begin() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()
	return ctx
}

func (r *runControl) end() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		return
	}
	r.cancel()
	close(r.done)
	r.done, r.cancel = nil, nil
}

// shutdown asks the run to stop, waits up to grace for in-flight tracks and
// cancels the context after that so the spotdl process groups are killed.
// It reports whether the run returned before killWait ran out.
func (r *runControl) shutdown(stop func(), grace, killWait time.Duration) bool {
	r.mu.Lock()
	done, cancel := r.done, r.cancel
	r.mu.Unlock()
	if done == nil {
		return true
	}

	stop()
	select {
	case <-done:
		return true
	case <-time.After(grace):
	}

	guiLogger.Warn().Dur("grace", grace).Msg("Run still active, killing in-flight downloads")
	cancel()
	select {
	case <-done:
		return true
	case <-time.After(killWait):
		return false
	}
}
