// Package events carries download progress from the coordinator to the
// CLI progress bars and the GUI window.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/spdl/spdl/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventProgress    EventType = "progress"     // Aggregate batch progress
	EventLog         EventType = "log"          // Human readable log line
	EventStateChange EventType = "state_change" // Run state transitions (idle/running/stopping/finished)
	EventComplete    EventType = "complete"     // Batch finished

	// Per-track lifecycle
	EventTrackQueued    EventType = "track_queued"    // Track accepted into the batch
	EventTrackStarted   EventType = "track_started"   // spotdl process launched
	EventTrackCompleted EventType = "track_completed" // spotdl exited 0
	EventTrackFailed    EventType = "track_failed"    // Failed with no retries left
	EventTrackRetry     EventType = "track_retry"     // Failed, parked in the retry queue
	EventTrackSkipped   EventType = "track_skipped"   // Already downloaded by a previous run
	EventTrackCancelled EventType = "track_cancelled" // Never ran or killed by a hard stop
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ProgressEvent represents aggregate batch progress
type ProgressEvent struct {
	BaseEvent
	RunID     string
	Completed int
	Total     int
	Failed    int
	Progress  float64 // 0.0 to 1.0
	Elapsed   time.Duration
	ETA       time.Duration
	Message   string
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	Stage   string
	Track   string
	Error   error
}

// StateChangeEvent represents run state transitions
type StateChangeEvent struct {
	BaseEvent
	RunID    string
	OldState string
	NewState string
	Message  string
}

// TrackEvent represents a per-track lifecycle step
type TrackEvent struct {
	BaseEvent
	RunID    string
	Index    int
	Label    string // "artist — title"
	Playlist string
	Attempt  int
	Worker   int
	Duration time.Duration
	Error    error
}

// CompleteEvent represents batch completion
type CompleteEvent struct {
	BaseEvent
	RunID        string
	Total        int
	Succeeded    int
	Failed       int
	Skipped      int
	Cancelled    int
	Stopped      bool
	StartedAt    time.Time
	FinishedAt   time.Time
	ErrorLogPath string
}

// Duration returns the wall-clock time of the batch.
func (e *CompleteEvent) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer // Use optimized default (1000)
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer // Cap at maximum
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers (non-blocking with optimized buffer).
// Publishing on a nil bus is a no-op so headless callers can pass nil.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	// Send to specific type subscribers
	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
			// Successfully sent
		default:
			// Channel full - event dropped, tracked for monitoring
			eb.droppedEvents.Add(1)
		}
	}

	// Send to all-events subscribers
	for _, ch := range eb.all {
		select {
		case ch <- event:
			// Successfully sent
		default:
			// Channel full - event dropped
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	// Close specific type channels
	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	// Close all-events channels
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, stage, track string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{
			EventType: EventLog,
			Time:      time.Now(),
		},
		Level:   level,
		Message: message,
		Stage:   stage,
		Track:   track,
		Error:   err,
	})
}

// PublishProgress is a convenience method for publishing progress events
func (eb *EventBus) PublishProgress(runID string, completed, total, failed int, elapsed, eta time.Duration) {
	var fraction float64
	if total > 0 {
		fraction = float64(completed) / float64(total)
	}
	eb.Publish(&ProgressEvent{
		BaseEvent: BaseEvent{
			EventType: EventProgress,
			Time:      time.Now(),
		},
		RunID:     runID,
		Completed: completed,
		Total:     total,
		Failed:    failed,
		Progress:  fraction,
		Elapsed:   elapsed,
		ETA:       eta,
	})
}

// PublishStateChange is a convenience method for publishing state change events
func (eb *EventBus) PublishStateChange(runID, oldState, newState, message string) {
	eb.Publish(&StateChangeEvent{
		BaseEvent: BaseEvent{
			EventType: EventStateChange,
			Time:      time.Now(),
		},
		RunID:    runID,
		OldState: oldState,
		NewState: newState,
		Message:  message,
	})
}

// PublishTrack is a convenience method for publishing per-track events.
// eventType must be one of the EventTrack* types.
func (eb *EventBus) PublishTrack(eventType EventType, ev TrackEvent) {
	ev.EventType = eventType
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	eb.Publish(&ev)
}

// Unsubscribe removes a subscription channel from a specific event type
// This prevents memory leaks from abandoned subscriptions
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	// Find and remove the channel from the event type's subscribers
	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			// Remove channel by replacing with last element and truncating
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
// Use this when cleaning up a subscriber that subscribed to multiple event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	// Remove from all event type subscribers
	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	// Remove from all-events subscribers
	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
// Useful for monitoring and detecting if buffer sizes need adjustment
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
// Useful for periodic monitoring windows
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
