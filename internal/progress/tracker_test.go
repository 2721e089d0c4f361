package progress

import (
	"testing"
	"time"
)

func TestFormatETA(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{-5, "0s"},
		{0, "0s"},
		{1, "1s"},
		{59, "59s"},
		{60, "1m 0s"},
		{61, "1m 1s"},
		{3599, "59m 59s"},
		{3600, "1h 0m 0s"},
		{3725, "1h 2m 5s"},
		{90000, "25h 0m 0s"},
	}

	for _, tt := range tests {
		if got := FormatETA(tt.seconds); got != tt.want {
			t.Errorf("FormatETA(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(90*time.Second + 900*time.Millisecond); got != "1m 30s" {
		t.Errorf("FormatDuration() = %q, want 1m 30s", got)
	}
}

func TestSnapshotLabel(t *testing.T) {
	tests := []struct {
		completed, total int
		want             string
	}{
		{0, 3, "0 / 3 (0.000%)"},
		{1, 3, "1 / 3 (33.333%)"},
		{3, 3, "3 / 3 (100.000%)"},
		{0, 0, "0 / 0 (0.000%)"},
	}

	for _, tt := range tests {
		tr := NewTracker(tt.total)
		for i := 0; i < tt.completed; i++ {
			tr.Complete(false)
		}
		if got := tr.Snapshot().Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}

func TestTrackerETA(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(4)
	tr.now = func() time.Time { return clock }
	tr.start = clock

	clock = clock.Add(10 * time.Second)
	if s := tr.Snapshot(); s.ETA != 0 {
		t.Errorf("ETA before first completion = %v, want 0", s.ETA)
	}

	tr.Complete(false)
	tr.Complete(true)
	clock = clock.Add(10 * time.Second) // 20s elapsed, 2 of 4 done

	s := tr.Snapshot()
	if s.ETA != 20*time.Second {
		t.Errorf("ETA = %v, want 20s", s.ETA)
	}
	if s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
	if s.Fraction != 0.5 {
		t.Errorf("Fraction = %f, want 0.5", s.Fraction)
	}
}

func TestTrackerNeverExceedsTotal(t *testing.T) {
	tr := NewTracker(2)
	for i := 0; i < 5; i++ {
		tr.Complete(false)
	}
	s := tr.Snapshot()
	if s.Completed != 2 || s.Fraction != 1 {
		t.Errorf("Completed=%d Fraction=%f, want 2 and 1", s.Completed, s.Fraction)
	}
	if s.ETA != 0 {
		t.Errorf("ETA = %v, want 0 when done", s.ETA)
	}
}
