// Package core wires configuration, the spotdl runner, the download
// coordinator and the post-run steps into one Engine shared by the CLI and
// the GUI.
package core

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spdl/spdl/internal/cloud"
	"github.com/spdl/spdl/internal/config"
	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/diskspace"
	"github.com/spdl/spdl/internal/download"
	"github.com/spdl/spdl/internal/events"
	"github.com/spdl/spdl/internal/http"
	"github.com/spdl/spdl/internal/localfs"
	"github.com/spdl/spdl/internal/logging"
	"github.com/spdl/spdl/internal/models"
	"github.com/spdl/spdl/internal/pathutil"
	"github.com/spdl/spdl/internal/progress"
	"github.com/spdl/spdl/internal/ratelimit"
	"github.com/spdl/spdl/internal/spotdl"
	"github.com/spdl/spdl/internal/state"
	"github.com/spdl/spdl/internal/util/sanitize"
)

// Run states published as StateChangeEvents.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateFinished = "finished"
)

// proxyProbeTarget is the host whose proxy setting is handed to spotdl.
const proxyProbeTarget = "https://open.spotify.com"

var (
	// ErrAlreadyRunning is returned by Run while another batch is active.
	ErrAlreadyRunning = errors.New("a download batch is already running")

	// ErrNoInput is returned when a Request names neither a CSV nor a link.
	ErrNoInput = errors.New("no track list or playlist link given")
)

// Request describes one batch.
type Request struct {
	// Exactly one of CSVPath and PlaylistURL is set.
	CSVPath     string
	PlaylistURL string

	// FailedCSV, when set, receives the failed tracks in track CSV format
	// so they can be fed back in.
	FailedCSV string

	// Observer gets synchronous per-track callbacks (terminal UIs).
	Observer download.Observer
	// Reporter renders the optional library publish step.
	Reporter progress.Reporter
}

// RunnerFactory builds the spotdl runner for a batch. proxy is empty for a
// direct connection.
type RunnerFactory func(cfg *config.Config, proxy string, logger *logging.Logger) spotdl.Runner

// UploaderFactory builds the publish backend for a target.
type UploaderFactory func(ctx context.Context, cfg *config.Config, target cloud.Target, client *nethttp.Client) (cloud.Uploader, error)

// Engine is the main orchestrator for download batches.
type Engine struct {
	config   *config.Config
	eventBus *events.EventBus
	logger   *logging.Logger

	newRunner   RunnerFactory
	newUploader UploaderFactory
	checkSpace  func(path string, requiredBytes int64, margin float64) error

	mu            sync.Mutex
	running       bool
	stopRequested bool
	coord         *download.Coordinator
	runID         string
}

// NewEngine creates a new engine instance. A nil cfg loads defaults; a nil
// bus disables events; a nil logger discards logs.
func NewEngine(cfg *config.Config, bus *events.EventBus, logger *logging.Logger) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		config:      cfg,
		eventBus:    bus,
		logger:      logger,
		newRunner:   NewSpotDLRunner,
		newUploader: cloud.NewUploader,
		checkSpace:  diskspace.CheckAvailableSpace,
	}
}

// NewSpotDLRunner is the default RunnerFactory.
func NewSpotDLRunner(cfg *config.Config, proxy string, logger *logging.Logger) spotdl.Runner {
	r := spotdl.NewExecRunner(cfg.SpotDLPath)
	if cfg.Format != "" {
		r.Format = cfg.Format
	}
	if cfg.OutputTemplate != "" {
		r.OutputTemplate = cfg.OutputTemplate
	}
	r.Timeout = cfg.Timeout()
	r.Proxy = proxy
	r.Logger = logger
	if cfg.FFmpegPath != "" && cfg.FFmpegPath != constants.FFmpegCommand {
		r.ExtraArgs = append(r.ExtraArgs, "--ffmpeg", cfg.FFmpegPath)
	}
	return r
}

// GetConfig returns the current configuration.
func (e *Engine) GetConfig() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// UpdateConfig swaps the configuration used by the next Run.
func (e *Engine) UpdateConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.config = cfg
	e.publishLog(events.InfoLevel, "Configuration updated", "")
	return nil
}

// Events returns the event bus (may be nil).
func (e *Engine) Events() *events.EventBus {
	return e.eventBus
}

// Running reports whether a batch is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stop requests a cooperative stop of the active batch: in-flight tracks
// finish, nothing new starts. A no-op when idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running || e.stopRequested {
		e.mu.Unlock()
		return
	}
	e.stopRequested = true
	coord := e.coord
	runID := e.runID
	e.mu.Unlock()

	if coord != nil {
		coord.Stop()
	}
	e.eventBus.PublishStateChange(runID, StateRunning, StateStopping, "Stopping after in-flight tracks")
	e.logger.Info().Msg("Stop requested, waiting for in-flight tracks")
}

// OutputRoot returns the folder a batch writes into.
func OutputRoot(cfg *config.Config) string {
	sub := strings.TrimSpace(cfg.Subfolder)
	if sub == "" {
		return cfg.OutputDir
	}
	return filepath.Join(cfg.OutputDir, sanitize.ForFilesystem(sub, "_"))
}

// LoadTracks resolves a request into tracks without running anything.
func LoadTracks(req Request) ([]models.Track, error) {
	csvPath := strings.TrimSpace(req.CSVPath)
	link := strings.TrimSpace(req.PlaylistURL)

	switch {
	case csvPath != "" && link != "":
		return nil, fmt.Errorf("give either a track list or a playlist link, not both")
	case link != "":
		return config.TracksFromPlaylistLink(link)
	case csvPath != "":
		info, err := os.Stat(csvPath)
		if err != nil {
			return nil, fmt.Errorf("track list: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("track list %s is a directory", csvPath)
		}
		return config.LoadTracksCSV(csvPath)
	default:
		return nil, ErrNoInput
	}
}

// Run executes one batch and blocks until it is finished. Cancelling ctx
// kills in-flight spotdl processes; Stop lets them finish. The error is
// non-nil only when the batch could not start; per-track failures are
// reported in the Summary.
func (e *Engine) Run(ctx context.Context, req Request) (models.Summary, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return models.Summary{}, ErrAlreadyRunning
	}
	runID := uuid.NewString()
	cfgCopy := *e.config
	e.running = true
	e.stopRequested = false
	e.runID = runID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.coord = nil
		e.mu.Unlock()
	}()

	cfg := &cfgCopy
	summary, err := e.run(ctx, runID, cfg, req)
	if err != nil {
		e.logger.Error().Err(err).Str("run_id", runID).Msg("Batch could not start")
		e.publishLog(events.ErrorLevel, err.Error(), "")
		e.eventBus.PublishStateChange(runID, StateRunning, StateIdle, err.Error())
		return summary, err
	}

	e.eventBus.Publish(&events.CompleteEvent{
		BaseEvent:    events.BaseEvent{EventType: events.EventComplete, Time: time.Now()},
		RunID:        runID,
		Total:        summary.Total,
		Succeeded:    summary.Succeeded,
		Failed:       summary.Failed,
		Skipped:      summary.Skipped,
		Cancelled:    summary.Cancelled,
		Stopped:      summary.Stopped,
		StartedAt:    summary.StartedAt,
		FinishedAt:   summary.FinishedAt,
		ErrorLogPath: summary.ErrorLogPath,
	})
	e.eventBus.PublishStateChange(runID, StateRunning, StateFinished, "")
	return summary, nil
}

func (e *Engine) run(ctx context.Context, runID string, cfg *config.Config, req Request) (models.Summary, error) {
	empty := models.Summary{RunID: runID}

	if err := cfg.Validate(); err != nil {
		return empty, fmt.Errorf("invalid configuration: %w", err)
	}
	outDir, err := pathutil.ResolveAbsolutePath(cfg.OutputDir)
	if err != nil {
		return empty, fmt.Errorf("output directory: %w", err)
	}
	cfg.OutputDir = outDir
	if cfg.StateFile != "" {
		if cfg.StateFile, err = pathutil.ExpandHome(cfg.StateFile); err != nil {
			return empty, fmt.Errorf("state file: %w", err)
		}
	}
	tracks, err := LoadTracks(req)
	if err != nil {
		return empty, err
	}

	outRoot := OutputRoot(cfg)
	required := int64(len(tracks)) * constants.EstimatedTrackBytes
	if err := e.checkSpace(outRoot, required, constants.DiskSpaceSafetyMargin); err != nil {
		return empty, err
	}

	proxy, err := http.ProxyURLFor(cfg, proxyProbeTarget)
	if err != nil {
		return empty, err
	}

	var archive *state.Manager
	if cfg.SkipCompleted {
		path := cfg.StateFile
		if path == "" {
			path = state.DefaultPath(outRoot)
		}
		archive = state.NewManager(path)
		if err := archive.Load(); err != nil {
			return empty, fmt.Errorf("resume archive: %w", err)
		}
		stats := archive.Stats()
		e.logger.Info().Str("file", path).Int("completed", stats.Succeeded).Msg("Loaded resume archive")
	}

	e.eventBus.PublishStateChange(runID, StateIdle, StateRunning,
		fmt.Sprintf("Downloading %d tracks into %s", len(tracks), outRoot))

	// Playlist folders with at least one success, for the publish step.
	// OnResult runs on the collector goroutine only.
	succeededFolders := make(map[string]bool)

	opts := download.Options{
		Workers:             cfg.Workers,
		MaxRetries:          cfg.MaxRetries,
		RetryAfterSuccesses: cfg.RetryAfterSuccesses,
		RunID:               runID,
		DetailedErrorLog:    cfg.DetailedLogging,
		Bus:                 e.eventBus,
		Logger:              e.logger,
		Observer:            req.Observer,
		OnResult: func(res models.TrackResult) {
			if res.Outcome == models.OutcomeSucceeded {
				succeededFolders[sanitize.ForFilesystem(res.Track.Playlist, "_")] = true
			}
			if archive != nil {
				if err := archive.Record(res); err != nil {
					e.logger.Warn().Err(err).Msg("Failed to update resume archive")
				}
			}
		},
	}
	if archive != nil {
		opts.Skip = archive.IsCompleted
	}
	if lim := ratelimit.ForLaunches(cfg.LaunchRate, cfg.Workers, e.logger); lim != nil {
		opts.Limiter = lim
	}

	coord := download.NewCoordinator(e.newRunner(cfg, proxy, e.logger), opts)
	e.mu.Lock()
	e.coord = coord
	stopEarly := e.stopRequested
	e.mu.Unlock()
	if stopEarly {
		coord.Stop()
	}

	summary, err := coord.Run(ctx, tracks, outRoot)
	if err != nil {
		return summary, err
	}

	e.postProcess(ctx, cfg, req, outRoot, &summary, archive, succeededFolders)
	return summary, nil
}

// postProcess runs the steps after the last worker exited. Failures here are
// logged; they never turn a finished batch into an error.
func (e *Engine) postProcess(ctx context.Context, cfg *config.Config, req Request, outRoot string,
	summary *models.Summary, archive *state.Manager, folders map[string]bool) {

	if cfg.DeleteEmptyDirs {
		removed, err := localfs.RemoveEmptyDirs(outRoot)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Could not remove some empty playlist folders")
		}
		for _, name := range removed {
			e.logger.Debug().Str("folder", name).Msg("Removed empty playlist folder")
		}
	}

	if archive != nil {
		if err := archive.Save(); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to save resume archive")
		}
	}

	if req.FailedCSV != "" && len(summary.FailedTracks) > 0 {
		if err := config.SaveTracksCSV(req.FailedCSV, summary.FailedTracks); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to write failed-tracks CSV")
		} else {
			e.publishLog(events.InfoLevel, fmt.Sprintf("Failed tracks written to %s", req.FailedCSV), "")
		}
	}

	if cfg.UploadTarget != "" && !summary.Stopped && ctx.Err() == nil && len(folders) > 0 {
		names := make([]string, 0, len(folders))
		for name := range folders {
			names = append(names, name)
		}
		sort.Strings(names)
		if err := e.publish(ctx, cfg, req, outRoot, names); err != nil {
			e.logger.Error().Err(err).Str("target", cfg.UploadTarget).Msg("Library publish failed")
			e.publishLog(events.ErrorLevel, "Library publish failed: "+err.Error(), "")
		}
	}
}

func (e *Engine) publish(ctx context.Context, cfg *config.Config, req Request, outRoot string, folders []string) error {
	target, err := cloud.ParseTarget(cfg.UploadTarget)
	if err != nil {
		return err
	}
	client, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return err
	}
	// Per-request deadlines come from ctx; a whole-client timeout would cut off large files
	client.Timeout = 0

	uploader, err := e.newUploader(ctx, cfg, target, client)
	if err != nil {
		return err
	}

	reporter := req.Reporter
	if reporter == nil {
		reporter = progress.NewGUIProgress(e.eventBus, "publish")
	}
	res, err := cloud.Publish(ctx, outRoot, folders, cloud.PublishOptions{
		Uploader: uploader,
		Target:   target,
		Reporter: reporter,
		Logger:   e.logger,
	})
	e.logger.Info().Int("uploaded", res.Uploaded).Int("failed", res.Failed).
		Str("target", target.String()).Msg("Library publish finished")
	return err
}

func (e *Engine) publishLog(level events.LogLevel, message, track string) {
	e.eventBus.PublishLog(level, message, "engine", track, nil)
}
