package download

import (
	"context"
	"errors"

	"github.com/spdl/spdl/internal/events"
	"github.com/spdl/spdl/internal/models"
)

var errNotDispatched = errors.New("stopped before dispatch")

// collector is owned by the goroutine running Coordinator.Run. It is the
// only writer of the summary, the queues and the tracker.
type collector struct {
	c       *Coordinator
	summary *models.Summary
	errLog  *ErrorLog

	pending []models.Track // first attempts, in source order
	ready   []workItem     // retries released for dispatch
	retries []workItem     // deferred retries waiting for a release

	fromReady bool // whether the current head came from ready
	inflight  int
	successes int // since the last retry release
	stopping  bool
}

func (col *collector) loop(ctx context.Context, jobs chan<- workItem, results <-chan workResult) {
	stopCh := col.c.stopCh
	done := ctx.Done()

	for {
		if !col.stopping {
			select {
			case <-stopCh:
				col.stop("Stop requested, waiting for in-flight tracks")
			case <-done:
				col.stop("Cancelled, killing in-flight downloads")
			default:
			}
		}
		if col.stopping {
			// Workers see ctx directly; the collector only drains results now.
			stopCh, done = nil, nil
		}

		var out chan<- workItem
		var next workItem
		if !col.stopping {
			if item, ok := col.peek(); ok {
				out = jobs
				next = item
			}
		}
		if out == nil && col.inflight == 0 {
			break
		}

		select {
		case out <- next:
			col.pop()
			col.inflight++
		case r := <-results:
			col.inflight--
			col.handle(ctx, r)
		case <-stopCh:
			col.stop("Stop requested, waiting for in-flight tracks")
		case <-done:
			col.stop("Cancelled, killing in-flight downloads")
		}
	}

	col.abandon()
}

func (col *collector) stop(msg string) {
	if col.stopping {
		return
	}
	col.stopping = true
	col.summary.Stopped = true
	col.c.logf(events.WarnLevel, "", "%s", msg)
}

// peek returns the next item to dispatch: released retries first, then the
// source order, then whatever retries remain once the source is exhausted.
func (col *collector) peek() (workItem, bool) {
	if len(col.ready) > 0 {
		col.fromReady = true
		return col.ready[0], true
	}

	for len(col.pending) > 0 {
		t := col.pending[0]
		if col.c.opts.Skip != nil && col.c.opts.Skip(t) {
			col.pending = col.pending[1:]
			col.finish(models.TrackResult{Track: t, Outcome: models.OutcomeSkipped})
			continue
		}
		col.fromReady = false
		return workItem{track: t, attempt: 1}, true
	}

	if len(col.retries) > 0 {
		col.release("Source list finished")
		col.fromReady = true
		return col.ready[0], true
	}
	return workItem{}, false
}

func (col *collector) pop() {
	if col.fromReady {
		col.ready = col.ready[1:]
	} else {
		col.pending = col.pending[1:]
	}
}

// release moves the deferred retries into the dispatch queue.
func (col *collector) release(reason string) {
	col.c.logf(events.InfoLevel, "", "%s, retrying %d failed tracks", reason, len(col.retries))
	col.ready = append(col.ready, col.retries...)
	col.retries = nil
	col.successes = 0
}

func (col *collector) handle(ctx context.Context, r workResult) {
	res := r.result

	switch res.Outcome {
	case models.OutcomeSucceeded:
		col.successes++
		col.finish(res)
		if col.successes >= col.c.opts.RetryAfterSuccesses && len(col.retries) > 0 {
			col.release("Download streak reached")
		}

	case models.OutcomeFailed:
		if !col.stopping && ctx.Err() == nil && r.item.attempt <= col.c.opts.MaxRetries {
			if len(col.retries) == 0 {
				// The streak starts with the first deferred retry.
				col.successes = 0
			}
			col.retries = append(col.retries, workItem{
				track:   res.Track,
				attempt: r.item.attempt + 1,
				lastErr: res.Err,
			})
			col.c.logf(events.WarnLevel, res.Track.Label(), "Attempt %d failed, deferring retry: %v", r.item.attempt, res.Err)
			ev := col.c.trackEvent(res.Track, r.item.attempt, 0)
			ev.Error = res.Err
			col.c.opts.Bus.PublishTrack(events.EventTrackRetry, ev)
			if col.c.opts.Observer != nil {
				col.c.opts.Observer.TrackRetry(res)
			}
			return
		}
		col.finish(res)

	default:
		col.finish(res)
	}
}

// finish records a terminal result. Every track passes through here exactly once.
func (col *collector) finish(res models.TrackResult) {
	c := col.c
	s := col.summary
	ev := c.trackEvent(res.Track, res.Attempts, 0)
	ev.Duration = res.Duration()

	switch res.Outcome {
	case models.OutcomeSucceeded:
		s.Succeeded++
		c.tracker.Complete(false)
		c.opts.Bus.PublishTrack(events.EventTrackCompleted, ev)
		c.logger.Info().Str("track", res.Track.Label()).Dur("took", ev.Duration).Msg("downloaded")

	case models.OutcomeSkipped:
		s.Skipped++
		c.tracker.Complete(false)
		c.opts.Bus.PublishTrack(events.EventTrackSkipped, ev)
		c.logger.Debug().Str("track", res.Track.Label()).Msg("already downloaded, skipping")

	case models.OutcomeFailed:
		s.Failed++
		s.FailedTracks = append(s.FailedTracks, res.Track)
		c.tracker.Complete(true)
		if err := col.errLog.Append(res.Track, res.Err); err != nil {
			c.logger.Error().Err(err).Msg("failed to write error log")
		}
		ev.Error = res.Err
		c.opts.Bus.PublishTrack(events.EventTrackFailed, ev)
		c.logf(events.ErrorLevel, res.Track.Label(), "%s failed: %v", res.Track.Label(), res.Err)

	case models.OutcomeCancelled:
		s.Cancelled++
		c.opts.Bus.PublishTrack(events.EventTrackCancelled, ev)
	}

	if c.opts.OnResult != nil {
		c.opts.OnResult(res)
	}
	if c.opts.Observer != nil {
		c.opts.Observer.TrackFinished(res, c.tracker.Snapshot())
	}
	c.publishProgress()
}

// abandon settles everything that was never dispatched after a stop.
// Tracks waiting for a retry already failed once and are reported as failed.
// Untouched tracks the resume archive already has stay skipped.
func (col *collector) abandon() {
	for _, item := range append(col.ready, col.retries...) {
		col.finish(models.TrackResult{
			Track:    item.track,
			Outcome:  models.OutcomeFailed,
			Attempts: item.attempt - 1,
			Err:      item.lastErr,
		})
	}
	col.ready, col.retries = nil, nil

	for _, t := range col.pending {
		if col.c.opts.Skip != nil && col.c.opts.Skip(t) {
			col.finish(models.TrackResult{Track: t, Outcome: models.OutcomeSkipped})
			continue
		}
		col.finish(models.TrackResult{
			Track:   t,
			Outcome: models.OutcomeCancelled,
			Err:     errNotDispatched,
		})
	}
	col.pending = nil
}
