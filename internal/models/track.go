package models

import (
	"fmt"
	"strings"
	"time"
)

// Track is one download request: a row of the track CSV or a playlist link.
type Track struct {
	Index     int // 1-based position in the source
	Title     string
	Artist    string
	Playlist  string
	SpotifyID string
}

// Query returns what is handed to spotdl: the track URL when the Spotify ID
// is known, otherwise an "artist - title" search string.
func (t Track) Query() string {
	if t.SpotifyID != "" {
		return "https://open.spotify.com/track/" + t.SpotifyID
	}
	if t.Artist == "" {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// Label returns the display form used in logs, the error log and the UI.
func (t Track) Label() string {
	return fmt.Sprintf("%s — %s", t.Artist, t.Title)
}

// Key returns a stable identity used by the resume archive.
func (t Track) Key() string {
	if t.SpotifyID != "" {
		return "spotify:" + t.SpotifyID
	}
	return strings.ToLower(strings.Join([]string{t.Artist, t.Title, t.Playlist}, "|"))
}

// Outcome is the terminal state of a track in a batch.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"   // already downloaded in a previous run
	OutcomeCancelled Outcome = "cancelled" // never ran, or killed by a hard stop
)

// TrackResult is what a worker reports for one attempt.
type TrackResult struct {
	Track      Track
	Outcome    Outcome
	Attempts   int
	Err        error
	Output     string // tail of spotdl output, kept for failures
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the attempt ran.
func (r TrackResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary aggregates a finished batch.
type Summary struct {
	RunID        string
	Total        int
	Succeeded    int
	Failed       int
	Skipped      int
	Cancelled    int
	Stopped      bool // Stop was requested before the queue drained
	StartedAt    time.Time
	FinishedAt   time.Time
	OutputRoot   string
	ErrorLogPath string // empty when no track failed
	FailedTracks []Track
}

// Duration returns the wall-clock time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Completed returns the number of tracks that reached a terminal outcome
// other than cancelled.
func (s Summary) Completed() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// Errors returns the error count shown in the completion summary.
func (s Summary) Errors() int {
	return s.Failed
}
