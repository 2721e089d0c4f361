// Package download coordinates a batch of spotdl invocations: a bounded
// worker pool, a single collector that owns aggregate state, a deferred
// retry queue and cooperative or hard cancellation.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/events"
	"github.com/spdl/spdl/internal/logging"
	"github.com/spdl/spdl/internal/models"
	"github.com/spdl/spdl/internal/progress"
	"github.com/spdl/spdl/internal/spotdl"
	"github.com/spdl/spdl/internal/util/sanitize"
)

// Observer receives synchronous callbacks for terminal UIs.
// TrackStarted runs on worker goroutines; the other two on the collector.
type Observer interface {
	TrackStarted(worker int, track models.Track, attempt int)
	TrackRetry(result models.TrackResult)
	TrackFinished(result models.TrackResult, snap progress.Snapshot)
}

// Limiter blocks until another spotdl process may start.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Options configures a Coordinator. Zero values fall back to defaults.
type Options struct {
	Workers             int
	MaxRetries          int // extra attempts per track; negative disables retries
	RetryAfterSuccesses int
	RunID               string
	DetailedErrorLog    bool

	Bus      *events.EventBus
	Logger   *logging.Logger
	Observer Observer

	// Limiter paces spotdl launches across workers. Nil means no pacing.
	Limiter Limiter

	// Skip reports tracks that are already done (resume). Called from the collector.
	Skip func(models.Track) bool
	// OnResult is called from the collector for every terminal result.
	OnResult func(models.TrackResult)
}

// Coordinator runs one batch. It is not reusable once Run has returned.
type Coordinator struct {
	runner spotdl.Runner
	opts   Options
	logger *logging.Logger

	stopCh   chan struct{}
	stopOnce sync.Once

	// Progress tracking
	mu      sync.Mutex
	tracker *progress.Tracker
	running bool
}

type workItem struct {
	track   models.Track
	attempt int
	lastErr error // previous attempt, for deferred retries
}

type workResult struct {
	item   workItem
	result models.TrackResult
}

// NewCoordinator creates a coordinator that downloads through runner.
func NewCoordinator(runner spotdl.Runner, opts Options) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = constants.DefaultWorkers
	}
	if opts.Workers > constants.MaxWorkers {
		opts.Workers = constants.MaxWorkers
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryAfterSuccesses <= 0 {
		opts.RetryAfterSuccesses = constants.RetryAfterSuccessCount
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Coordinator{
		runner: runner,
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Stop requests a cooperative stop: nothing new is dispatched and in-flight
// tracks run to completion. Safe to call more than once and from any goroutine.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// Snapshot returns the current progress. It is zero before Run starts.
func (c *Coordinator) Snapshot() progress.Snapshot {
	c.mu.Lock()
	tr := c.tracker
	c.mu.Unlock()
	if tr == nil {
		return progress.Snapshot{}
	}
	return tr.Snapshot()
}

// Run downloads tracks into outRoot/<playlist>/ and blocks until every
// worker has exited. Cancelling ctx kills in-flight spotdl processes.
// Per-track failures are reported in the summary, not as an error.
func (c *Coordinator) Run(ctx context.Context, tracks []models.Track, outRoot string) (models.Summary, error) {
	c.mu.Lock()
	if c.running || c.tracker != nil {
		c.mu.Unlock()
		return models.Summary{}, errors.New("coordinator already used")
	}
	c.running = true
	c.tracker = progress.NewTracker(len(tracks))
	c.mu.Unlock()

	summary := models.Summary{
		RunID:      c.opts.RunID,
		Total:      len(tracks),
		StartedAt:  time.Now(),
		OutputRoot: outRoot,
	}

	if err := os.MkdirAll(outRoot, 0755); err != nil {
		return summary, fmt.Errorf("failed to create output folder: %w", err)
	}

	errLog := NewErrorLog(outRoot, summary.StartedAt, c.opts.DetailedErrorLog)
	defer errLog.Close()

	c.logf(events.InfoLevel, "", "Starting batch of %d tracks with %d workers", len(tracks), c.opts.Workers)
	for _, t := range tracks {
		c.opts.Bus.PublishTrack(events.EventTrackQueued, c.trackEvent(t, 0, 0))
	}

	jobs := make(chan workItem)
	results := make(chan workResult)

	var wg sync.WaitGroup
	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		go c.worker(ctx, &wg, i+1, outRoot, jobs, results)
	}

	stopProgress := make(chan struct{})
	go c.progressReporter(stopProgress)

	col := &collector{
		c:       c,
		pending: append([]models.Track(nil), tracks...),
		summary: &summary,
		errLog:  errLog,
	}
	col.loop(ctx, jobs, results)

	close(jobs)
	wg.Wait()
	close(stopProgress)

	summary.FinishedAt = time.Now()
	summary.ErrorLogPath = errLog.Path()
	c.publishProgress()

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.logf(events.InfoLevel, "", "Batch finished: %d succeeded, %d failed, %d skipped, %d cancelled in %s",
		summary.Succeeded, summary.Failed, summary.Skipped, summary.Cancelled,
		progress.FormatDuration(summary.Duration()))

	return summary, nil
}

// worker executes items until jobs is closed.
func (c *Coordinator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int, outRoot string, jobs <-chan workItem, results chan<- workResult) {
	defer wg.Done()

	for item := range jobs {
		res := c.download(ctx, workerID, outRoot, item)
		results <- workResult{item: item, result: res}
	}
}

func (c *Coordinator) download(ctx context.Context, workerID int, outRoot string, item workItem) models.TrackResult {
	track := item.track
	res := models.TrackResult{
		Track:     track,
		Attempts:  item.attempt,
		StartedAt: time.Now(),
	}

	if err := ctx.Err(); err != nil {
		res.Outcome = models.OutcomeCancelled
		res.Err = err
		res.FinishedAt = time.Now()
		return res
	}

	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			res.Outcome = models.OutcomeCancelled
			res.Err = err
			res.FinishedAt = time.Now()
			return res
		}
	}

	folder := filepath.Join(outRoot, sanitize.ForFilesystem(track.Playlist, "_"))
	if err := os.MkdirAll(folder, 0755); err != nil {
		res.Outcome = models.OutcomeFailed
		res.Err = fmt.Errorf("failed to create playlist folder: %w", err)
		res.FinishedAt = time.Now()
		return res
	}

	c.opts.Bus.PublishTrack(events.EventTrackStarted, c.trackEvent(track, item.attempt, workerID))
	if c.opts.Observer != nil {
		c.opts.Observer.TrackStarted(workerID, track, item.attempt)
	}
	c.logger.Debug().
		Int("worker", workerID).
		Int("attempt", item.attempt).
		Str("track", track.Label()).
		Msg("download started")

	out, err := c.runner.Download(ctx, spotdl.Request{
		Query:     sanitize.SanitizeQuery(track.Query()),
		OutputDir: folder,
	})
	res.FinishedAt = time.Now()
	res.Output = out.Output
	res.Err = err

	switch {
	case err == nil:
		res.Outcome = models.OutcomeSucceeded
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		res.Outcome = models.OutcomeCancelled
	default:
		res.Outcome = models.OutcomeFailed
	}
	return res
}

func (c *Coordinator) trackEvent(t models.Track, attempt, worker int) events.TrackEvent {
	return events.TrackEvent{
		RunID:    c.opts.RunID,
		Index:    t.Index,
		Label:    t.Label(),
		Playlist: t.Playlist,
		Attempt:  attempt,
		Worker:   worker,
	}
}

func (c *Coordinator) publishProgress() {
	s := c.Snapshot()
	c.opts.Bus.PublishProgress(c.opts.RunID, s.Completed, s.Total, s.Failed, s.Elapsed, s.ETA)
}

// progressReporter refreshes elapsed/ETA for listeners while tracks are in flight.
func (c *Coordinator) progressReporter(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.publishProgress()
		case <-stop:
			return
		}
	}
}

// logf logs through zerolog and mirrors the message on the event bus.
func (c *Coordinator) logf(level events.LogLevel, track, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	switch level {
	case events.ErrorLevel:
		c.logger.Error().Str("track", track).Msg(message)
	case events.WarnLevel:
		c.logger.Warn().Str("track", track).Msg(message)
	case events.DebugLevel:
		c.logger.Debug().Str("track", track).Msg(message)
	default:
		c.logger.Info().Msg(message)
	}
	c.opts.Bus.PublishLog(level, message, "download", track, nil)
}
