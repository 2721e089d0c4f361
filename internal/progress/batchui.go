package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/models"
)

// BatchUI renders one overall bar plus a spinner per in-flight track using mpb.
// On a non-terminal it degrades to one text line per finished track.
type BatchUI struct {
	progress   *mpb.Progress
	overall    *mpb.Bar
	bars       sync.Map // track index -> *mpb.Bar
	isTerminal bool
	total      int
	out        io.Writer
	snap       atomic.Value // Snapshot
}

// NewBatchUI creates the UI for a batch of total tracks.
func NewBatchUI(total int) *BatchUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	return newBatchUI(total, isTerminal, os.Stderr, os.Stdout)
}

func newBatchUI(total int, isTerminal bool, barOut, textOut io.Writer) *BatchUI {
	u := &BatchUI{
		isTerminal: isTerminal,
		total:      total,
		out:        textOut,
	}
	u.snap.Store(Snapshot{Total: total})

	if !isTerminal {
		return u
	}

	if f, ok := barOut.(*os.File); ok {
		// Enable ANSI escape sequences on Windows for proper progress bar rendering
		enableANSIOnWindows(f)
	}
	u.progress = mpb.New(
		mpb.WithOutput(barOut),
		mpb.WithRefreshRate(constants.ProgressRefreshRate),
		mpb.WithWidth(60),
	)
	if total > 0 {
		u.overall = u.progress.New(int64(total),
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.BarPriority(math.MaxInt32), // keep the overall bar below the spinners
			mpb.PrependDecorators(
				decor.Name("Downloads ", decor.WCSyncSpaceR),
				decor.Any(func(decor.Statistics) string {
					return u.snapshot().Label()
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.Any(func(decor.Statistics) string {
					s := u.snapshot()
					return fmt.Sprintf("elapsed %s  ETA %s", FormatDuration(s.Elapsed), FormatDuration(s.ETA))
				}, decor.WCSyncSpace),
			),
		)
	}
	return u
}

func (u *BatchUI) snapshot() Snapshot {
	return u.snap.Load().(Snapshot)
}

// TrackStarted adds a spinner for the track.
func (u *BatchUI) TrackStarted(worker int, track models.Track, attempt int) {
	if !u.isTerminal {
		return
	}

	label := track.Label()
	if attempt > 1 {
		label = fmt.Sprintf("%s (retry %d)", label, attempt-1)
	}
	bar := u.progress.New(1,
		mpb.SpinnerStyle(),
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("#%d", worker), decor.WCSyncSpaceR),
			decor.Name(label, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
		),
	)
	u.bars.Store(track.Index, bar)
}

// TrackRetry removes the spinner and notes the deferred retry.
func (u *BatchUI) TrackRetry(result models.TrackResult) {
	u.dropBar(result.Track.Index)
	u.printf("↻ %s: attempt %d failed, retry queued\n", result.Track.Label(), result.Attempts)
}

// TrackFinished removes the spinner, advances the overall bar and prints a result line.
func (u *BatchUI) TrackFinished(result models.TrackResult, snap Snapshot) {
	u.snap.Store(snap)
	u.dropBar(result.Track.Index)

	if u.overall != nil {
		u.overall.SetCurrent(int64(snap.Completed))
	}

	switch result.Outcome {
	case models.OutcomeSucceeded:
		u.printf("✓ %s (%s)\n", result.Track.Label(), result.Duration().Round(time.Second))
	case models.OutcomeFailed:
		u.printf("✗ %s: %v (after %d attempts)\n", result.Track.Label(), result.Err, result.Attempts)
	case models.OutcomeSkipped:
		if !u.isTerminal {
			u.printf("- %s (already downloaded)\n", result.Track.Label())
		}
	}

	if !u.isTerminal && result.Outcome != models.OutcomeCancelled {
		fmt.Fprintf(u.out, "  %s\n", snap.Label())
	}
}

func (u *BatchUI) dropBar(index int) {
	if v, ok := u.bars.LoadAndDelete(index); ok {
		v.(*mpb.Bar).Abort(true)
	}
}

// printf writes through mpb so lines land above the bars.
func (u *BatchUI) printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if u.isTerminal && u.progress != nil {
		_, _ = u.progress.Write([]byte(msg))
		return
	}
	fmt.Fprint(u.out, msg)
}

// Wait settles any remaining bars and blocks until mpb has rendered the final frame.
func (u *BatchUI) Wait() {
	if u.progress == nil {
		return
	}
	u.bars.Range(func(key, v interface{}) bool {
		v.(*mpb.Bar).Abort(true)
		u.bars.Delete(key)
		return true
	})
	if u.overall != nil && !u.overall.Completed() {
		// Stopped runs never reach total
		u.overall.Abort(false)
	}
	u.progress.Wait()
}

// Writer returns an io.Writer that prints above the progress bars.
func (u *BatchUI) Writer() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return os.Stderr
}

// IsTerminal returns whether bars are being rendered.
func (u *BatchUI) IsTerminal() bool {
	return u.isTerminal
}
