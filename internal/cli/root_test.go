package cli

import (
	"bytes"
	"context"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestHandleSignalsStopThenCancel(t *testing.T) {
	sigs := make(chan os.Signal)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stops atomic.Int32
	hook := func() { stops.Add(1) }

	var out bytes.Buffer
	done := make(chan struct{})
	go func() {
		handleSignals(sigs, func() func() { return hook }, cancel, &out)
		close(done)
	}()

	sigs <- os.Interrupt
	sigs <- syscall.SIGTERM // handled only after the first one returned
	close(sigs)
	<-done

	if got := stops.Load(); got != 1 {
		t.Errorf("stop hook called %d times, want 1", got)
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("second signal did not cancel the context")
	}
}

func TestHandleSignalsWithoutHook(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs <- os.Interrupt
	close(sigs)
	handleSignals(sigs, func() func() { return nil }, cancel, &bytes.Buffer{})

	if ctx.Err() == nil {
		t.Error("interrupt with no running batch should cancel")
	}
}

func TestStopHook(t *testing.T) {
	if currentStopHook() != nil {
		t.Fatal("expected no hook initially")
	}
	called := false
	setStopHook(func() { called = true })
	currentStopHook()()
	setStopHook(nil)

	if !called {
		t.Error("hook was not called")
	}
	if currentStopHook() != nil {
		t.Error("hook should be cleared")
	}
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	for _, name := range []string{"download", "doctor", "config", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestCompletionCmd(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash"})
	if err := root.Execute(); err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if out.Len() == 0 {
		t.Error("empty completion script")
	}

	root.SetArgs([]string{"completion", "tcsh"})
	if err := root.Execute(); err == nil {
		t.Error("expected error for unsupported shell")
	}
}
