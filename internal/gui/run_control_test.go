package gui

import (
	"context"
	"testing"
	"time"
)

func TestRunControlShutdownIdle(t *testing.T) {
	var rc runControl
	called := false
	if !rc.shutdown(func() { called = true }, time.Millisecond, time.Millisecond) {
		t.Error("idle shutdown should report done")
	}
	if called {
		t.Error("stop should not be called without a run")
	}
}

func TestRunControlShutdownCooperative(t *testing.T) {
	var rc runControl
	ctx := rc.begin()
	stopCh := make(chan struct{})
	go func() {
		<-stopCh
		rc.end()
	}()

	if !rc.shutdown(func() { close(stopCh) }, 5*time.Second, time.Second) {
		t.Fatal("run should finish after stop")
	}
	// end cancels the context once the run returned
	if ctx.Err() == nil {
		t.Error("context should be cancelled after end")
	}
}

func TestRunControlShutdownKills(t *testing.T) {
	var rc runControl
	ctx := rc.begin()
	go func() {
		// Ignores the cooperative stop, like spotdl stuck on one track.
		<-ctx.Done()
		rc.end()
	}()

	start := time.Now()
	if !rc.shutdown(func() {}, 20*time.Millisecond, 5*time.Second) {
		t.Fatal("run should return once its context is cancelled")
	}
	if ctx.Err() != context.Canceled {
		t.Errorf("ctx.Err() = %v, want context.Canceled", ctx.Err())
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("shutdown should wait for the grace period before cancelling")
	}
}

func TestRunControlShutdownTimesOut(t *testing.T) {
	var rc runControl
	rc.begin()
	defer rc.end()

	if rc.shutdown(func() {}, time.Millisecond, 10*time.Millisecond) {
		t.Error("shutdown should report a run that never returns")
	}
}
