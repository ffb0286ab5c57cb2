package timelapse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/b3eb0o/LyngvigFyr/internal/clock"
	"github.com/b3eb0o/LyngvigFyr/internal/logging"
	"github.com/b3eb0o/LyngvigFyr/internal/schedule"
	"github.com/b3eb0o/LyngvigFyr/internal/stream"
)

// FrameGrabber writes one still frame from url to path.
type FrameGrabber interface {
	Grab(ctx context.Context, url, path string) error
}

// CaptureLoop grabs frames at a fixed interval until the day's quota is
// met or its window closes. Each Run resolves its own stream handle.
type CaptureLoop struct {
	clock    clock.Clock
	grabber  FrameGrabber
	resolver stream.Resolver
	frame    schedule.RetryPolicy
	lookup   schedule.RetryPolicy
	logger   *slog.Logger

	onFrame func(*DayCaptureState)
}

// NewCaptureLoop creates a capture loop.
func NewCaptureLoop(c clock.Clock, grabber FrameGrabber, resolver stream.Resolver, frame, lookup schedule.RetryPolicy, logger *slog.Logger) *CaptureLoop {
	return &CaptureLoop{
		clock:    c,
		grabber:  grabber,
		resolver: resolver,
		frame:    frame,
		lookup:   lookup,
		logger:   logger,
	}
}

// OnFrame registers a hook called after every recorded frame.
func (l *CaptureLoop) OnFrame(fn func(*DayCaptureState)) {
	l.onFrame = fn
}

// Run captures into state. Reaching the quota or the end of the window is
// a normal exit; the only error returned is context cancellation.
// The handle never outlives the call.
func (l *CaptureLoop) Run(ctx context.Context, params schedule.CaptureParameters, sched schedule.DaySchedule, state *DayCaptureState) error {
	logger := logging.WithSession(logging.WithDate(l.logger, state.Date), state.SessionID)
	var handle *stream.Handle

	logger.Info("capture started",
		"target_frames", params.TotalFrames,
		"interval", params.Interval.String(),
		"window_end", sched.CaptureEnd.Format("15:04:05"),
	)

	for state.FramesCaptured < params.TotalFrames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !sched.Contains(l.clock.Now()) {
			break
		}

		if handle.Stale() {
			h, err := l.resolver.Resolve(ctx)
			if err != nil {
				err = fmt.Errorf("%w: resolve stream: %w", ErrTransientLookup, err)
				logger.Warn("stream resolution failed, retrying",
					"error", err,
					"retry_in", l.lookup.Delay.String(),
				)
				if err := l.clock.Sleep(ctx, l.lookup.Delay); err != nil {
					return err
				}
				continue
			}
			if handle != nil {
				logger.Debug("stream handle refreshed",
					"uses", handle.Uses,
					"age", h.ResolvedAt.Sub(handle.ResolvedAt).Round(time.Second).String(),
				)
			}
			handle = h
		}

		path := state.NextFramePath()
		if err := l.grabber.Grab(ctx, handle.URL, path); err != nil {
			err = fmt.Errorf("%w: %w", ErrFrameAcquisition, err)
			if !l.frame.ShouldRetry(err) {
				return err
			}
			logger.Debug("frame grab failed, retrying",
				"frame", state.FramesCaptured,
				"error", err,
			)
			if err := l.clock.Sleep(ctx, l.frame.Delay); err != nil {
				return err
			}
			continue
		}

		state.Record(path)
		handle.MarkUsed()
		if l.onFrame != nil {
			l.onFrame(state)
		}

		if err := l.clock.Sleep(ctx, params.Interval); err != nil {
			return err
		}
	}

	logger.Info("capture finished",
		"frames", state.FramesCaptured,
		"target_frames", params.TotalFrames,
	)
	return nil
}
