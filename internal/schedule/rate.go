package schedule

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDegenerateParameters is returned when no sensible capture rate exists.
var ErrDegenerateParameters = errors.New("degenerate capture parameters")

// CaptureParameters is the capture rate for one day.
type CaptureParameters struct {
	Interval       time.Duration `json:"interval"`
	TotalFrames    int           `json:"total_frames"`
	ExpectedLength float64       `json:"expected_length_seconds"`
}

// ComputeParameters spreads fps*lengthSeconds frames across the window,
// never capturing more often than minInterval. Intervals are whole seconds.
func ComputeParameters(s DaySchedule, fps, lengthSeconds int, minInterval time.Duration) (CaptureParameters, error) {
	framesNeeded := int64(fps) * int64(lengthSeconds)
	if framesNeeded <= 0 {
		return CaptureParameters{}, fmt.Errorf("%w: frames needed %d (fps %d, length %ds)",
			ErrDegenerateParameters, framesNeeded, fps, lengthSeconds)
	}

	window := int64(s.Window() / time.Second)
	if window <= 0 {
		return CaptureParameters{}, fmt.Errorf("%w: window %ds", ErrDegenerateParameters, window)
	}

	interval := (window + framesNeeded - 1) / framesNeeded
	floor := int64(math.Ceil(minInterval.Seconds()))
	if interval < floor {
		interval = floor
	}
	if interval <= 0 {
		interval = 1
	}

	total := window / interval
	expected := math.Round(float64(total)/float64(fps)*10) / 10

	return CaptureParameters{
		Interval:       time.Duration(interval) * time.Second,
		TotalFrames:    int(total),
		ExpectedLength: expected,
	}, nil
}
