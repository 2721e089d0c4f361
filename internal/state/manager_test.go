package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spdl/spdl/internal/models"
)

func TestManager_RecordAndReload(t *testing.T) {
	path := DefaultPath(t.TempDir())
	m := NewManager(path)

	ok := models.Track{Artist: "Band", Title: "Song", Playlist: "Mix"}
	bad := models.Track{Artist: "Band", Title: "Other, with comma", Playlist: "Mix", SpotifyID: "abc"}

	if err := m.Record(models.TrackResult{Track: ok, Outcome: models.OutcomeSucceeded, Attempts: 1}); err != nil {
		t.Fatal(err)
	}
	if err := m.Record(models.TrackResult{Track: bad, Outcome: models.OutcomeFailed, Attempts: 3, Err: errors.New("exit 1")}); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	reloaded := NewManager(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !reloaded.IsCompleted(ok) {
		t.Error("succeeded track should be completed after reload")
	}
	if reloaded.IsCompleted(bad) {
		t.Error("failed track must not be completed")
	}

	r := reloaded.Get(bad)
	if r == nil {
		t.Fatal("failed record missing")
	}
	if r.Attempts != 3 || r.Error != "exit 1" || r.Title != "Other, with comma" {
		t.Errorf("record = %+v", r)
	}

	s := reloaded.Stats()
	if s.Total != 2 || s.Succeeded != 1 || s.Failed != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestManager_IgnoresSkippedAndCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.csv")
	m := NewManager(path)

	tr := models.Track{Artist: "Band", Title: "Song"}
	m.Record(models.TrackResult{Track: tr, Outcome: models.OutcomeCancelled})
	m.Record(models.TrackResult{Track: tr, Outcome: models.OutcomeSkipped})

	if m.Stats().Total != 0 {
		t.Errorf("Stats() = %+v, want empty", m.Stats())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be written for ignored outcomes")
	}
}

func TestManager_LaterResultWins(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "state.csv"))
	tr := models.Track{Artist: "Band", Title: "Song"}

	m.Record(models.TrackResult{Track: tr, Outcome: models.OutcomeFailed})
	m.Record(models.TrackResult{Track: tr, Outcome: models.OutcomeSucceeded})

	if !m.IsCompleted(tr) {
		t.Error("a later success should replace the failure")
	}
	if m.Stats().Total != 1 {
		t.Errorf("Total = %d, want 1", m.Stats().Total)
	}
}

func TestManager_LoadMissingFile(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing.csv"))
	if err := m.Load(); err != nil {
		t.Errorf("Load() on missing file error = %v", err)
	}
}
