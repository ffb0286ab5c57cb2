// Package schedule computes the daily capture window and the capture rate
// that fits it into a fixed-length timelapse.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSchedule is returned when the capture window is empty after
// clamping a late start.
var ErrInvalidSchedule = errors.New("invalid schedule")

// DaySchedule is the capture window for one calendar date. It is derived
// once per day and never mutated.
type DaySchedule struct {
	Date         string    `json:"date"`
	Sunrise      time.Time `json:"sunrise"`
	Sunset       time.Time `json:"sunset"`
	CaptureStart time.Time `json:"capture_start"`
	CaptureEnd   time.Time `json:"capture_end"`
}

// ComputeWindow returns the capture window for the day of sunrise, opening
// preRun before sunrise and closing postRun after sunset. A start already in
// the past is clamped to now.
func ComputeWindow(sunrise, sunset time.Time, preRun, postRun time.Duration, now time.Time) (DaySchedule, error) {
	start := sunrise.Add(-preRun)
	end := sunset.Add(postRun)

	if now.After(start) {
		start = now
	}
	if !end.After(start) {
		return DaySchedule{}, fmt.Errorf("%w: capture end %s is not after start %s",
			ErrInvalidSchedule, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	return DaySchedule{
		Date:         sunrise.Format("2006-01-02"),
		Sunrise:      sunrise,
		Sunset:       sunset,
		CaptureStart: start,
		CaptureEnd:   end,
	}, nil
}

// Window returns the capture window length truncated to whole seconds.
func (s DaySchedule) Window() time.Duration {
	return s.CaptureEnd.Sub(s.CaptureStart).Truncate(time.Second)
}

// Closed reports whether the window has ended at now.
func (s DaySchedule) Closed(now time.Time) bool {
	return !now.Before(s.CaptureEnd)
}

// Contains reports whether now lies within [CaptureStart, CaptureEnd].
func (s DaySchedule) Contains(now time.Time) bool {
	return !now.Before(s.CaptureStart) && !now.After(s.CaptureEnd)
}

// Pending reports whether the window has not opened yet at now.
func (s DaySchedule) Pending(now time.Time) bool {
	return now.Before(s.CaptureStart)
}
