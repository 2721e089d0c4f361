package events

import (
	"errors"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	// Subscribe to progress events
	ch := bus.Subscribe(EventProgress)

	// Publish a progress event
	testEvent := &ProgressEvent{
		BaseEvent: BaseEvent{
			EventType: EventProgress,
			Time:      time.Now(),
		},
		RunID:     "run-1",
		Completed: 5,
		Total:     10,
		Progress:  0.5,
	}

	bus.Publish(testEvent)

	// Receive the event
	select {
	case received := <-ch:
		progress, ok := received.(*ProgressEvent)
		if !ok {
			t.Fatal("Expected ProgressEvent")
		}
		if progress.RunID != "run-1" {
			t.Errorf("Expected run id 'run-1', got '%s'", progress.RunID)
		}
		if progress.Progress != 0.5 {
			t.Errorf("Expected progress 0.5, got %f", progress.Progress)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventLog)
	ch2 := bus.Subscribe(EventLog)

	bus.PublishLog(InfoLevel, "Test log", "download", "", nil)

	received1 := false
	received2 := false

	select {
	case <-ch1:
		received1 = true
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case <-ch2:
		received2 = true
	case <-time.After(100 * time.Millisecond):
	}

	if !received1 || !received2 {
		t.Error("Not all subscribers received the event")
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	startedCh := bus.Subscribe(EventTrackStarted)
	failedCh := bus.Subscribe(EventTrackFailed)

	bus.PublishTrack(EventTrackStarted, TrackEvent{Index: 1, Label: "Band — Song"})

	select {
	case ev := <-startedCh:
		if ev.Type() != EventTrackStarted {
			t.Errorf("Expected %s, got %s", EventTrackStarted, ev.Type())
		}
		if ev.Timestamp().IsZero() {
			t.Error("PublishTrack should stamp the event time")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Started subscriber didn't receive event")
	}

	select {
	case <-failedCh:
		t.Error("Failed subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
		// Expected - timeout means no event
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.PublishProgress("run", 1, 2, 0, time.Second, time.Second)
	bus.PublishTrack(EventTrackCompleted, TrackEvent{Index: 1})

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2) // Small buffer
	defer bus.Close()

	ch := bus.Subscribe(EventProgress)

	// Fill the buffer
	for i := 0; i < 10; i++ {
		bus.PublishProgress("run", i, 10, 0, 0, 0)
	}

	// Should not block - excess events are dropped
	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:

	if count != 2 {
		t.Errorf("Expected 2 buffered events, got %d", count)
	}
	if dropped := bus.GetDroppedEventCount(); dropped != 8 {
		t.Errorf("Expected 8 dropped events, got %d", dropped)
	}
	if bus.ResetDroppedEventCount() != 8 || bus.GetDroppedEventCount() != 0 {
		t.Error("ResetDroppedEventCount should return the old value and zero the counter")
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventProgress)

	bus.Close()

	// Channel should be closed
	_, ok := <-ch
	if ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.PublishProgress("run", 0, 0, 0, 0, 0)

	// Subscribing after close returns a closed channel
	if _, ok := <-bus.SubscribeAll(); ok {
		t.Error("SubscribeAll after Close should return a closed channel")
	}
}

func TestEventBus_NilIsNoop(t *testing.T) {
	var bus *EventBus
	// Must not panic
	bus.PublishLog(InfoLevel, "ignored", "", "", nil)
	bus.PublishTrack(EventTrackStarted, TrackEvent{})
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventComplete)
	bus.Unsubscribe(EventComplete, ch)

	bus.Publish(&CompleteEvent{BaseEvent: BaseEvent{EventType: EventComplete, Time: time.Now()}})

	select {
	case <-ch:
		t.Error("Unsubscribed channel should not receive events")
	case <-time.After(20 * time.Millisecond):
	}

	all := bus.SubscribeAll()
	bus.UnsubscribeAll(all)
	bus.PublishLog(InfoLevel, "x", "", "", nil)
	select {
	case <-all:
		t.Error("UnsubscribeAll channel should not receive events")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level %d: expected %s, got %s", tt.level, tt.expected, got)
		}
	}
}

func TestConvenienceMethods(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	logCh := bus.Subscribe(EventLog)
	progressCh := bus.Subscribe(EventProgress)
	stateCh := bus.Subscribe(EventStateChange)

	bus.PublishLog(ErrorLevel, "spotdl failed", "download", "Band — Song", errors.New("exit status 1"))

	select {
	case event := <-logCh:
		log, ok := event.(*LogEvent)
		if !ok {
			t.Fatal("Expected LogEvent")
		}
		if log.Message != "spotdl failed" || log.Track != "Band — Song" || log.Error == nil {
			t.Errorf("Unexpected log event: %+v", log)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for log event")
	}

	bus.PublishProgress("run-1", 3, 4, 1, 30*time.Second, 10*time.Second)

	select {
	case event := <-progressCh:
		progress, ok := event.(*ProgressEvent)
		if !ok {
			t.Fatal("Expected ProgressEvent")
		}
		if progress.Progress != 0.75 {
			t.Errorf("Expected progress 0.75, got %f", progress.Progress)
		}
		if progress.ETA != 10*time.Second {
			t.Errorf("Expected ETA 10s, got %v", progress.ETA)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for progress event")
	}

	bus.PublishStateChange("run-1", "idle", "running", "")

	select {
	case event := <-stateCh:
		state, ok := event.(*StateChangeEvent)
		if !ok {
			t.Fatal("Expected StateChangeEvent")
		}
		if state.NewState != "running" {
			t.Errorf("Expected new state 'running', got '%s'", state.NewState)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for state change event")
	}
}

func TestPublishProgress_ZeroTotal(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(EventProgress)
	bus.PublishProgress("run", 0, 0, 0, 0, 0)

	ev := (<-ch).(*ProgressEvent)
	if ev.Progress != 0 {
		t.Errorf("Expected 0 progress for empty batch, got %f", ev.Progress)
	}
}
