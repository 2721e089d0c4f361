// Package progress provides batch progress tracking and its renderers:
// mpb bars and a single progressbar for the CLI, event bus updates for the GUI.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/spdl/spdl/internal/events"
	"github.com/spdl/spdl/internal/models"
)

// Reporter is the interface for reporting progress in both CLI and GUI modes.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements progress reporting for CLI mode using progress bars.
type CLIProgress struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewCLIProgress creates a new CLI progress reporter.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{out: os.Stderr}
}

// Start initializes the progress bar with total count and description.
func (p *CLIProgress) Start(total int64, description string) {
	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// GUIProgress implements progress reporting for GUI mode using event bus.
// It reports secondary stages such as library publishing as log events so
// they do not fight with the batch progress bar.
type GUIProgress struct {
	eventBus *events.EventBus
	stage    string
	desc     string
	total    int64
	current  int64
}

// NewGUIProgress creates a new GUI progress reporter.
func NewGUIProgress(eventBus *events.EventBus, stage string) *GUIProgress {
	return &GUIProgress{
		eventBus: eventBus,
		stage:    stage,
	}
}

// Start initializes progress tracking.
func (p *GUIProgress) Start(total int64, description string) {
	p.total = total
	p.current = 0
	p.desc = description
	p.eventBus.PublishLog(events.InfoLevel, fmt.Sprintf("%s (0/%d)", description, total), p.stage, "", nil)
}

// Update publishes progress update to event bus.
func (p *GUIProgress) Update(current int64) {
	p.current = current
	p.eventBus.PublishLog(events.InfoLevel, fmt.Sprintf("%s (%d/%d)", p.desc, current, p.total), p.stage, "", nil)
}

// Finish publishes completion.
func (p *GUIProgress) Finish() {
	p.eventBus.PublishLog(events.InfoLevel, fmt.Sprintf("%s done (%d/%d)", p.desc, p.total, p.total), p.stage, "", nil)
}

// Error publishes error event.
func (p *GUIProgress) Error(err error) {
	if err != nil {
		p.eventBus.PublishLog(events.ErrorLevel, err.Error(), p.stage, "", err)
	}
}

// SetDescription updates the stage description.
func (p *GUIProgress) SetDescription(desc string) {
	p.desc = desc
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Start does nothing.
func (p *NoOpProgress) Start(total int64, description string) {}

// Update does nothing.
func (p *NoOpProgress) Update(current int64) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}

// SetDescription does nothing.
func (p *NoOpProgress) SetDescription(desc string) {}

// ReporterObserver drives a Reporter from coordinator callbacks. It backs
// `download --simple`.
type ReporterObserver struct {
	reporter Reporter
}

// NewReporterObserver starts r for a batch of total tracks.
func NewReporterObserver(r Reporter, total int) *ReporterObserver {
	r.Start(int64(total), "Downloading")
	return &ReporterObserver{reporter: r}
}

// TrackStarted shows the track being fetched.
func (o *ReporterObserver) TrackStarted(worker int, track models.Track, attempt int) {
	o.reporter.SetDescription(truncate(track.Label(), 40))
}

// TrackRetry does nothing; the retry shows up when it starts again.
func (o *ReporterObserver) TrackRetry(result models.TrackResult) {}

// TrackFinished advances the bar.
func (o *ReporterObserver) TrackFinished(result models.TrackResult, snap Snapshot) {
	o.reporter.Update(int64(snap.Completed))
}

// Finish completes the underlying reporter.
func (o *ReporterObserver) Finish() {
	o.reporter.Finish()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
