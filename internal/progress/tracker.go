package progress

import (
	"fmt"
	"sync"
	"time"
)

// Tracker keeps aggregate batch progress. It is safe for concurrent use,
// although the download collector is its only writer.
type Tracker struct {
	mu        sync.Mutex
	total     int
	completed int
	failed    int
	start     time.Time
	now       func() time.Time
}

// NewTracker starts tracking a batch of total tracks.
func NewTracker(total int) *Tracker {
	t := &Tracker{total: total, now: time.Now}
	t.start = t.now()
	return t
}

// Complete records one finished track. Calls beyond total are ignored so
// the fraction never exceeds 1.
func (t *Tracker) Complete(failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.completed >= t.total {
		return
	}
	t.completed++
	if failed {
		t.failed++
	}
}

// Snapshot is a point-in-time copy of the tracker state.
type Snapshot struct {
	Completed int
	Total     int
	Failed    int
	Fraction  float64 // 0..1
	Percent   float64 // 0..100
	Elapsed   time.Duration
	ETA       time.Duration // zero until the first completion
}

// Snapshot returns the current state with elapsed time and ETA.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Completed: t.completed,
		Total:     t.total,
		Failed:    t.failed,
		Elapsed:   t.now().Sub(t.start),
	}
	if t.total > 0 {
		s.Fraction = float64(t.completed) / float64(t.total)
		s.Percent = s.Fraction * 100
	}
	if t.completed > 0 {
		perTrack := s.Elapsed / time.Duration(t.completed)
		s.ETA = perTrack * time.Duration(t.total-t.completed)
	}
	return s
}

// Label renders "completed / total (pp.ppp%)".
func (s Snapshot) Label() string {
	return fmt.Sprintf("%d / %d (%.3f%%)", s.Completed, s.Total, s.Percent)
}

// FormatETA renders whole seconds as "1h 2m 3s", "2m 3s" or "3s".
// Zero and negative values render as "0s".
func FormatETA(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}
	m, s := seconds/60, seconds%60
	h, m := m/60, m%60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatDuration is FormatETA for a time.Duration, truncated to seconds.
func FormatDuration(d time.Duration) string {
	return FormatETA(int(d / time.Second))
}
