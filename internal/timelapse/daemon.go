package timelapse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/b3eb0o/LyngvigFyr/internal/catalog"
	"github.com/b3eb0o/LyngvigFyr/internal/clock"
	"github.com/b3eb0o/LyngvigFyr/internal/logging"
	"github.com/b3eb0o/LyngvigFyr/internal/schedule"
	"github.com/b3eb0o/LyngvigFyr/internal/sun"
)

// progressSaveEvery is how often, in frames, capture progress is written
// to the ledger.
const progressSaveEvery = 25

// DayStore is the subset of the ledger the daemon writes to.
type DayStore interface {
	GetDay(ctx context.Context, date string) (*catalog.Day, error)
	UpsertDay(ctx context.Context, day *catalog.Day) error
}

// Config is the daemon's fixed-at-start configuration.
type Config struct {
	Location      string
	Loc           *time.Location
	PreRun        time.Duration
	PostRun       time.Duration
	MinInterval   time.Duration
	FPS           int
	LengthSeconds int
	FramesDir     string
	OutputDir     string
	Lookup        schedule.RetryPolicy
}

// Status is a read-only snapshot of the state machine.
type Status struct {
	State          State                       `json:"state"`
	Date           string                      `json:"date,omitempty"`
	Location       string                      `json:"location"`
	Schedule       *schedule.DaySchedule       `json:"schedule,omitempty"`
	Parameters     *schedule.CaptureParameters `json:"parameters,omitempty"`
	FramesCaptured int                         `json:"frames_captured"`
	LastFrameAt    time.Time                   `json:"last_frame_at,omitzero"`
	LastVideo      string                      `json:"last_video,omitempty"`
	LastError      string                      `json:"last_error,omitempty"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// Daemon is the capture state machine. Run drives it on a single goroutine;
// Status may be called concurrently.
type Daemon struct {
	cfg       Config
	clock     clock.Clock
	sun       sun.Source
	loop      *CaptureLoop
	assembler *Assembler
	days      DayStore
	logger    *slog.Logger

	state    State
	lastDate string
	sched    *schedule.DaySchedule
	params   *schedule.CaptureParameters
	capture  *DayCaptureState

	mu     sync.RWMutex
	status Status
}

// NewDaemon creates a daemon in the idle state.
func NewDaemon(cfg Config, c clock.Clock, sunSource sun.Source, loop *CaptureLoop, assembler *Assembler, days DayStore, logger *slog.Logger) *Daemon {
	if cfg.Loc == nil {
		cfg.Loc = time.Local
	}
	d := &Daemon{
		cfg:       cfg,
		clock:     c,
		sun:       sunSource,
		loop:      loop,
		assembler: assembler,
		days:      days,
		logger:    logger,
		state:     StateIdle,
		status:    Status{State: StateIdle, Location: cfg.Location},
	}
	loop.OnFrame(d.frameRecorded)
	return d
}

// Status returns the latest published snapshot.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Run drives the state machine until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := SweepFrameDirs(d.cfg.FramesDir, d.logger); err != nil {
		d.logger.Warn("failed to sweep frame dirs", "error", err)
	}

	d.logger.Info("timelapse daemon started", "location", d.cfg.Location)
	for ctx.Err() == nil {
		d.step(ctx)
	}
	d.logger.Info("timelapse daemon stopped", "state", string(d.state))
	return nil
}

func (d *Daemon) step(ctx context.Context) {
	now := d.clock.Now().In(d.cfg.Loc)
	today := clock.DateOf(now)

	if d.state != StateCapturing && d.state != StateAssembling && today != d.lastDate {
		if d.lastDate != "" {
			d.logger.Info("date rolled over", "from", d.lastDate, "to", today)
		}
		d.lastDate = today
		d.sched, d.params, d.capture = nil, nil, nil
		d.transition(StateComputing)
	}

	switch d.state {
	case StateIdle, StateDayComplete:
		d.sleepUntil(ctx, clock.NextMidnight(now))
	case StateComputing:
		d.computeSchedule(ctx, now)
	case StateWaitingForWindow:
		d.waitForWindow(ctx, now)
	case StateCapturing:
		d.runCapture(ctx)
	case StateAssembling:
		d.assemble(ctx)
	}
}

func (d *Daemon) computeSchedule(ctx context.Context, now time.Time) {
	date := clock.DateOf(now)
	logger := logging.WithDate(d.logger, date)

	if rec, err := d.days.GetDay(ctx, date); err != nil {
		logger.Warn("failed to read day record", "error", err)
	} else if rec != nil && rec.IsTerminal() {
		logger.Info("day already settled", "status", rec.Status)
		if rec.Status == catalog.DayStatusCompleted {
			d.transition(StateDayComplete)
		} else {
			d.transition(StateIdle)
		}
		return
	}

	times, err := d.sun.Times(ctx, now)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, sun.ErrNoSunEvent) {
			d.skipDay(ctx, date, fmt.Errorf("%w: %w", schedule.ErrInvalidSchedule, err))
			return
		}
		err = fmt.Errorf("%w: sun times: %w", ErrTransientLookup, err)
		d.setError(err)
		logger.Warn("sun times lookup failed, retrying",
			"error", err,
			"retry_in", d.cfg.Lookup.Delay.String(),
		)
		d.sleep(ctx, d.cfg.Lookup.Delay)
		return
	}

	if !now.Before(times.Sunset.Add(d.cfg.PostRun)) {
		d.sched = &schedule.DaySchedule{
			Date:         date,
			Sunrise:      times.Sunrise,
			Sunset:       times.Sunset,
			CaptureStart: times.Sunrise.Add(-d.cfg.PreRun),
			CaptureEnd:   times.Sunset.Add(d.cfg.PostRun),
		}
		logger.Info("capture window already closed", "window_end", d.sched.CaptureEnd.Format(time.RFC3339))
		d.publishPlan()
		d.transition(StateWaitingForWindow)
		return
	}

	sched, err := schedule.ComputeWindow(times.Sunrise, times.Sunset, d.cfg.PreRun, d.cfg.PostRun, now)
	if err != nil {
		d.skipDay(ctx, date, err)
		return
	}
	sched.Date = date

	params, err := schedule.ComputeParameters(sched, d.cfg.FPS, d.cfg.LengthSeconds, d.cfg.MinInterval)
	if err != nil {
		d.skipDay(ctx, date, err)
		return
	}

	d.sched, d.params = &sched, &params
	d.publishPlan()
	d.save(ctx, catalog.DayStatusScheduled, "")

	logger.Info("capture scheduled",
		"sunrise", sched.Sunrise.Format("15:04:05"),
		"sunset", sched.Sunset.Format("15:04:05"),
		"capture_start", sched.CaptureStart.Format("15:04:05"),
		"capture_end", sched.CaptureEnd.Format("15:04:05"),
		"interval", params.Interval.String(),
		"total_frames", params.TotalFrames,
		"expected_length_s", params.ExpectedLength,
	)
	d.transition(StateWaitingForWindow)
}

func (d *Daemon) skipDay(ctx context.Context, date string, err error) {
	logging.WithDate(d.logger, date).Warn("skipping day", "error", err)
	d.setError(err)
	d.save(ctx, catalog.DayStatusSkipped, err.Error())
	d.transition(StateIdle)
}

func (d *Daemon) waitForWindow(ctx context.Context, now time.Time) {
	if d.sched == nil {
		d.transition(StateComputing)
		return
	}

	switch {
	case d.sched.Pending(now):
		wake := d.sched.CaptureStart
		if midnight := clock.NextMidnight(now); midnight.Before(wake) {
			wake = midnight
		}
		d.logger.Info("waiting for capture window", "wake_at", wake.Format(time.RFC3339))
		d.sleepUntil(ctx, wake)

	case d.sched.Closed(now) || d.params == nil:
		wake := d.nextWindowStart(ctx, now)
		d.logger.Info("window closed, waiting for tomorrow", "wake_at", wake.Format(time.RFC3339))
		d.sleepUntil(ctx, wake)

	default:
		state, err := NewDayCaptureState(d.cfg.FramesDir, d.sched.Date, catalog.NewID())
		if err != nil {
			d.logger.Error("failed to prepare frame dir", "error", err)
			d.setError(err)
			d.sleep(ctx, d.cfg.Lookup.Delay)
			return
		}
		d.capture = state
		d.save(ctx, catalog.DayStatusCapturing, "")
		d.transition(StateCapturing)
	}
}

// nextWindowStart is tomorrow's capture start, or tomorrow's midnight when
// tomorrow's sun times are unavailable.
func (d *Daemon) nextWindowStart(ctx context.Context, now time.Time) time.Time {
	midnight := clock.NextMidnight(now)
	times, err := d.sun.Times(ctx, midnight)
	if err != nil {
		d.logger.Warn("tomorrow's sun times unavailable", "error", err)
		return midnight
	}
	start := times.Sunrise.Add(-d.cfg.PreRun)
	if !start.After(midnight) {
		return midnight
	}
	return start
}

func (d *Daemon) runCapture(ctx context.Context) {
	if err := d.loop.Run(ctx, *d.params, *d.sched, d.capture); err != nil {
		if ctx.Err() != nil {
			return
		}
		d.logger.Error("capture loop aborted", "error", err)
		d.setError(err)
	}
	d.save(ctx, catalog.DayStatusAssembling, "")
	d.transition(StateAssembling)
}

func (d *Daemon) assemble(ctx context.Context) {
	state := d.capture
	out := VideoPath(d.cfg.OutputDir, d.cfg.Location, state.Date)

	err := d.assembler.Assemble(ctx, state, out, d.cfg.FPS)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		d.logger.Error("assembly failed", "date", state.Date, "frames", state.FramesCaptured, "error", err)
		d.setError(err)
		d.save(ctx, catalog.DayStatusFailed, err.Error())
		d.transition(StateIdle)
		return
	}

	d.mu.Lock()
	d.status.LastVideo = state.VideoPath
	d.status.LastError = ""
	d.mu.Unlock()
	d.save(ctx, catalog.DayStatusCompleted, "")
	d.transition(StateDayComplete)
}

func (d *Daemon) frameRecorded(state *DayCaptureState) {
	now := d.clock.Now()
	d.mu.Lock()
	d.status.FramesCaptured = state.FramesCaptured
	d.status.LastFrameAt = now
	d.status.UpdatedAt = now
	d.mu.Unlock()

	if state.FramesCaptured%progressSaveEvery == 0 {
		d.save(context.Background(), catalog.DayStatusCapturing, "")
	}
}

// save writes the current day to the ledger. Ledger failures never stop
// the capture cycle.
func (d *Daemon) save(ctx context.Context, status, errMsg string) {
	day := &catalog.Day{Date: d.lastDate, Status: status, Error: errMsg}
	if d.sched != nil {
		day.Date = d.sched.Date
		day.Sunrise = d.sched.Sunrise
		day.Sunset = d.sched.Sunset
		day.CaptureStart = d.sched.CaptureStart
		day.CaptureEnd = d.sched.CaptureEnd
	}
	if d.params != nil {
		day.IntervalSeconds = int(d.params.Interval / time.Second)
		day.FramesTarget = d.params.TotalFrames
	}
	if d.capture != nil {
		day.Date = d.capture.Date
		day.SessionID = d.capture.SessionID
		day.FramesCaptured = d.capture.FramesCaptured
		day.VideoPath = d.capture.VideoPath
		day.VideoBytes = d.capture.VideoBytes
	}
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := d.days.UpsertDay(ctx, day); err != nil {
		d.logger.Warn("failed to save day record", "date", day.Date, "status", status, "error", err)
	}
}

func (d *Daemon) transition(to State) {
	if d.state != to {
		d.logger.Debug("state transition", "from", string(d.state), "to", string(to))
	}
	d.state = to

	d.mu.Lock()
	d.status.State = to
	d.status.Date = d.lastDate
	d.status.UpdatedAt = d.clock.Now()
	if to == StateComputing {
		d.status.Schedule = nil
		d.status.Parameters = nil
		d.status.FramesCaptured = 0
	}
	d.mu.Unlock()
}

func (d *Daemon) publishPlan() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sched != nil {
		s := *d.sched
		d.status.Schedule = &s
	}
	if d.params != nil {
		p := *d.params
		d.status.Parameters = &p
	}
}

func (d *Daemon) setError(err error) {
	d.mu.Lock()
	d.status.LastError = err.Error()
	d.mu.Unlock()
}

func (d *Daemon) sleepUntil(ctx context.Context, t time.Time) {
	d.sleep(ctx, t.Sub(d.clock.Now()))
}

func (d *Daemon) sleep(ctx context.Context, dur time.Duration) {
	if dur <= 0 {
		return
	}
	if err := d.clock.Sleep(ctx, dur); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		d.logger.Warn("sleep interrupted", "error", err)
	}
}
