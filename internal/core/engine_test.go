package core

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spdl/spdl/internal/cloud"
	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/diskspace"
	"github.com/spdl/spdl/internal/events"
	"github.com/spdl/spdl/internal/logging"
	"github.com/spdl/spdl/internal/models"
	"github.com/spdl/spdl/internal/spotdl"
)

// fileRunner pretends to be spotdl: it writes an mp3 into the playlist folder
// unless the query contains "Bad".
type fileRunner struct {
	mu      sync.Mutex
	queries []string
	gate    chan struct{} // when set, each download waits for a value
	started chan struct{}
}

func (r *fileRunner) Download(ctx context.Context, req spotdl.Request) (spotdl.Result, error) {
	r.mu.Lock()
	r.queries = append(r.queries, req.Query)
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return spotdl.Result{}, ctx.Err()
		}
	}

	if strings.Contains(req.Query, "Bad") {
		return spotdl.Result{Output: "LookupError: No results found", ExitCode: 1},
			&spotdl.ExitError{Code: 1, Output: "LookupError: No results found"}
	}
	name := filepath.Join(req.OutputDir, req.Query+".mp3")
	return spotdl.Result{Output: "Downloaded"}, os.WriteFile(name, []byte("id3"), 0644)
}

func (r *fileRunner) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func writeTracks(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.csv")
	content := "Track name,Artist name,Playlist name,Spotify - id\n" + rows
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testEngine(t *testing.T, runner spotdl.Runner, bus *events.EventBus) (*Engine, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 2
	cfg.MaxRetries = 0

	e := NewEngine(cfg, bus, logging.NewNopLogger())
	e.newRunner = func(*config.Config, string, *logging.Logger) spotdl.Runner { return runner }
	e.checkSpace = func(string, int64, float64) error { return nil }
	return e, cfg
}

func TestOutputRoot(t *testing.T) {
	tests := []struct {
		name      string
		subfolder string
		want      string
	}{
		{"sanitized", "Spotify/Downloads", filepath.Join("/music", "Spotify_Downloads")},
		{"default", "Spotify Downloads", filepath.Join("/music", "Spotify Downloads")},
		// Blank means the output folder itself, not an "Unknown" folder.
		{"empty", "", "/music"},
		{"blank", "  ", "/music"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{OutputDir: "/music", Subfolder: tt.subfolder}
			if got := OutputRoot(cfg); got != tt.want {
				t.Errorf("OutputRoot(%q) = %q, want %q", tt.subfolder, got, tt.want)
			}
		})
	}
}

func TestLoadTracks_Errors(t *testing.T) {
	if _, err := LoadTracks(Request{}); !errors.Is(err, ErrNoInput) {
		t.Errorf("empty request error = %v, want ErrNoInput", err)
	}
	if _, err := LoadTracks(Request{CSVPath: "a.csv", PlaylistURL: "https://x"}); err == nil {
		t.Error("expected error when both inputs are set")
	}
	if _, err := LoadTracks(Request{CSVPath: filepath.Join(t.TempDir(), "missing.csv")}); err == nil {
		t.Error("expected error for missing CSV")
	}
	if _, err := LoadTracks(Request{CSVPath: t.TempDir()}); err == nil {
		t.Error("expected error for a directory")
	}
}

func TestEngine_RunCSV(t *testing.T) {
	bus := events.NewEventBus(500)
	complete := bus.Subscribe(events.EventComplete)

	runner := &fileRunner{}
	e, cfg := testEngine(t, runner, bus)

	csvPath := writeTracks(t, "Song 1,Band,Mix,\nSong 2,Band,Mix,\nBad Song,Band,Broken,\n")
	failedCSV := filepath.Join(t.TempDir(), "failed.csv")

	summary, err := e.Run(context.Background(), Request{CSVPath: csvPath, FailedCSV: failedCSV})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.RunID == "" {
		t.Error("RunID should be set")
	}

	root := OutputRoot(cfg)
	if _, err := os.Stat(filepath.Join(root, "Mix", "Band - Song 1.mp3")); err != nil {
		t.Errorf("downloaded file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "Broken")); !os.IsNotExist(err) {
		t.Error("empty playlist folder should have been removed")
	}
	if summary.ErrorLogPath == "" {
		t.Error("error log path should be set")
	}

	failed, err := config.LoadTracksCSV(failedCSV)
	if err != nil {
		t.Fatalf("failed CSV: %v", err)
	}
	if len(failed) != 1 || failed[0].Title != "Bad Song" || failed[0].Playlist != "Broken" {
		t.Errorf("failed tracks = %+v", failed)
	}

	select {
	case ev := <-complete:
		c := ev.(*events.CompleteEvent)
		if c.RunID != summary.RunID || c.Failed != 1 || c.Succeeded != 2 {
			t.Errorf("complete event = %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("no complete event")
	}

	if e.Running() {
		t.Error("engine should be idle after Run")
	}
}

func TestEngine_KeepEmptyDirs(t *testing.T) {
	e, cfg := testEngine(t, &fileRunner{}, nil)
	cfg.DeleteEmptyDirs = false

	csvPath := writeTracks(t, "Bad Song,Band,Broken,\n")
	if _, err := e.Run(context.Background(), Request{CSVPath: csvPath}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(OutputRoot(cfg), "Broken")); err != nil {
		t.Errorf("folder should be kept: %v", err)
	}
}

func TestEngine_PlaylistLink(t *testing.T) {
	runner := &fileRunner{}
	e, cfg := testEngine(t, runner, nil)

	link := "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M"
	summary, err := e.Run(context.Background(), Request{PlaylistURL: link})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 1 || summary.Succeeded != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if q := runner.Queries(); len(q) != 1 || q[0] != link {
		t.Errorf("queries = %v", q)
	}
	if _, err := os.Stat(filepath.Join(OutputRoot(cfg), "Playlist")); err != nil {
		t.Errorf("playlist folder missing: %v", err)
	}
}

func TestEngine_SkipCompleted(t *testing.T) {
	runner := &fileRunner{}
	e, cfg := testEngine(t, runner, nil)
	cfg.SkipCompleted = true

	csvPath := writeTracks(t, "Song 1,Band,Mix,\nBad Song,Band,Mix,\n")
	if _, err := e.Run(context.Background(), Request{CSVPath: csvPath}); err != nil {
		t.Fatal(err)
	}
	first := len(runner.Queries())

	summary, err := e.Run(context.Background(), Request{CSVPath: csvPath})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Failed != 1 {
		t.Errorf("second run summary = %+v, want 1 skipped 1 failed", summary)
	}
	if got := len(runner.Queries()) - first; got != 1 {
		t.Errorf("second run made %d downloads, want 1 (the failed track)", got)
	}
	if _, err := os.Stat(filepath.Join(OutputRoot(cfg), ".spdl-state.csv")); err != nil {
		t.Errorf("state file missing: %v", err)
	}
}

func TestEngine_AlreadyRunningAndStop(t *testing.T) {
	runner := &fileRunner{gate: make(chan struct{}), started: make(chan struct{}, 10)}
	e, cfg := testEngine(t, runner, nil)
	cfg.Workers = 1

	csvPath := writeTracks(t, "Song 1,Band,Mix,\nSong 2,Band,Mix,\nSong 3,Band,Mix,\n")

	type outcome struct {
		summary models.Summary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := e.Run(context.Background(), Request{CSVPath: csvPath})
		done <- outcome{s, err}
	}()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first download never started")
	}

	if !e.Running() {
		t.Error("Running() should be true")
	}
	if _, err := e.Run(context.Background(), Request{CSVPath: csvPath}); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run error = %v, want ErrAlreadyRunning", err)
	}

	e.Stop()
	runner.gate <- struct{}{}

	var res outcome
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if res.err != nil {
		t.Fatal(res.err)
	}
	if !res.summary.Stopped || res.summary.Succeeded != 1 || res.summary.Cancelled != 2 {
		t.Errorf("summary = %+v, want stopped with 1 succeeded 2 cancelled", res.summary)
	}
}

func TestEngine_DiskSpace(t *testing.T) {
	runner := &fileRunner{}
	e, _ := testEngine(t, runner, nil)
	e.checkSpace = func(path string, required int64, margin float64) error {
		return &diskspace.InsufficientSpaceError{Path: path, RequiredBytes: required}
	}

	_, err := e.Run(context.Background(), Request{CSVPath: writeTracks(t, "Song 1,Band,Mix,\n")})
	if !diskspace.IsInsufficientSpaceError(err) {
		t.Errorf("Run() error = %v, want InsufficientSpaceError", err)
	}
	if len(runner.Queries()) != 0 {
		t.Error("nothing should be downloaded when space is short")
	}
}

func TestEngine_InvalidConfig(t *testing.T) {
	e, cfg := testEngine(t, &fileRunner{}, nil)
	cfg.Workers = 0
	if _, err := e.Run(context.Background(), Request{CSVPath: writeTracks(t, "Song 1,Band,Mix,\n")}); err == nil {
		t.Error("expected validation error")
	}
}

type memUploader struct {
	mu   sync.Mutex
	keys []string
}

func (m *memUploader) Upload(ctx context.Context, localPath, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func TestEngine_Publish(t *testing.T) {
	e, cfg := testEngine(t, &fileRunner{}, nil)
	cfg.UploadTarget = "s3://library/spdl"

	up := &memUploader{}
	var gotTarget cloud.Target
	e.newUploader = func(ctx context.Context, c *config.Config, target cloud.Target, client *nethttp.Client) (cloud.Uploader, error) {
		gotTarget = target
		return up, nil
	}

	csvPath := writeTracks(t, "Song 1,Band,Mix,\nSong 2,Band,Other,\nBad Song,Band,Broken,\n")
	if _, err := e.Run(context.Background(), Request{CSVPath: csvPath}); err != nil {
		t.Fatal(err)
	}

	if gotTarget.Bucket != "library" || gotTarget.Prefix != "spdl" {
		t.Errorf("target = %+v", gotTarget)
	}
	want := map[string]bool{
		"spdl/Mix/Band - Song 1.mp3":   true,
		"spdl/Other/Band - Song 2.mp3": true,
	}
	if len(up.keys) != len(want) {
		t.Fatalf("uploaded %v, want %d keys", up.keys, len(want))
	}
	for _, k := range up.keys {
		if !want[k] {
			t.Errorf("unexpected key %q", k)
		}
	}
}

func TestEngine_UpdateConfig(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	cfg := config.DefaultConfig()
	cfg.Workers = 8
	if err := e.UpdateConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if e.GetConfig().Workers != 8 {
		t.Errorf("Workers = %d, want 8", e.GetConfig().Workers)
	}

	bad := config.DefaultConfig()
	bad.Workers = 100
	if err := e.UpdateConfig(bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestEngine_LaunchRate(t *testing.T) {
	runner := &fileRunner{}
	e, cfg := testEngine(t, runner, nil)
	cfg.LaunchRate = 50 // burst of 2, then one launch every 20ms

	csvPath := writeTracks(t, "A,Band,Mix,\nB,Band,Mix,\nC,Band,Mix,\nD,Band,Mix,\n")
	start := time.Now()
	summary, err := e.Run(context.Background(), Request{CSVPath: csvPath})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Succeeded != 4 {
		t.Errorf("summary = %+v", summary)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("4 launches at 50/s with burst 2 took %v, expected pacing", elapsed)
	}
}
