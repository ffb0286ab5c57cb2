package schedule

import (
	"errors"
	"testing"
	"time"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestComputeWindow(t *testing.T) {
	sunrise := at(t, "2024-06-01T06:00:00Z")
	sunset := at(t, "2024-06-01T20:00:00Z")
	pre, post := 30*time.Minute, 45*time.Minute

	tests := []struct {
		name      string
		now       string
		wantStart string
		wantErr   error
	}{
		{"before window", "2024-06-01T00:10:00Z", "2024-06-01T05:30:00Z", nil},
		{"exactly at start", "2024-06-01T05:30:00Z", "2024-06-01T05:30:00Z", nil},
		{"late start clamps", "2024-06-01T12:00:00Z", "2024-06-01T12:00:00Z", nil},
		{"at end", "2024-06-01T20:45:00Z", "", ErrInvalidSchedule},
		{"after end", "2024-06-01T22:00:00Z", "", ErrInvalidSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ComputeWindow(sunrise, sunset, pre, post, at(t, tt.now))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !s.CaptureStart.Equal(at(t, tt.wantStart)) {
				t.Errorf("CaptureStart = %s, want %s", s.CaptureStart, tt.wantStart)
			}
			if !s.CaptureEnd.Equal(at(t, "2024-06-01T20:45:00Z")) {
				t.Errorf("CaptureEnd = %s", s.CaptureEnd)
			}
			if s.Date != "2024-06-01" {
				t.Errorf("Date = %q", s.Date)
			}
		})
	}
}

func TestDaySchedule_Bounds(t *testing.T) {
	s := DaySchedule{
		CaptureStart: at(t, "2024-06-01T05:30:00Z"),
		CaptureEnd:   at(t, "2024-06-01T20:45:00Z"),
	}
	if !s.Contains(s.CaptureStart) || !s.Contains(s.CaptureEnd) {
		t.Error("window bounds should be inclusive")
	}
	if s.Contains(s.CaptureEnd.Add(time.Second)) {
		t.Error("after end should not be contained")
	}
	if !s.Closed(s.CaptureEnd) {
		t.Error("window should be closed at end")
	}
	if !s.Pending(s.CaptureStart.Add(-time.Second)) {
		t.Error("window should be pending before start")
	}
}

func TestComputeParameters_Example(t *testing.T) {
	s, err := ComputeWindow(
		at(t, "2024-06-01T06:00:00Z"), at(t, "2024-06-01T20:00:00Z"),
		30*time.Minute, 45*time.Minute, at(t, "2024-06-01T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Window() != 54900*time.Second {
		t.Fatalf("Window() = %v, want 54900s", s.Window())
	}

	p, err := ComputeParameters(s, 60, 90, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if p.Interval != 11*time.Second {
		t.Errorf("Interval = %v, want 11s", p.Interval)
	}
	if p.TotalFrames != 4990 {
		t.Errorf("TotalFrames = %d, want 4990", p.TotalFrames)
	}
	if p.ExpectedLength != 83.2 {
		t.Errorf("ExpectedLength = %v, want 83.2", p.ExpectedLength)
	}
}

func TestComputeParameters_FloorApplies(t *testing.T) {
	start := at(t, "2024-12-21T08:00:00Z")
	s := DaySchedule{CaptureStart: start, CaptureEnd: start.Add(time.Hour)}

	p, err := ComputeParameters(s, 60, 90, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if p.Interval != 5*time.Second {
		t.Errorf("Interval = %v, want floor 5s", p.Interval)
	}
	if p.TotalFrames != 720 {
		t.Errorf("TotalFrames = %d, want 720", p.TotalFrames)
	}
	if p.ExpectedLength != 12 {
		t.Errorf("ExpectedLength = %v, want 12", p.ExpectedLength)
	}
}

func TestComputeParameters_Degenerate(t *testing.T) {
	start := at(t, "2024-06-01T06:00:00Z")
	ok := DaySchedule{CaptureStart: start, CaptureEnd: start.Add(time.Hour)}
	subSecond := DaySchedule{CaptureStart: start, CaptureEnd: start.Add(500 * time.Millisecond)}

	tests := []struct {
		name   string
		s      DaySchedule
		fps    int
		length int
	}{
		{"zero fps", ok, 0, 90},
		{"zero length", ok, 60, 0},
		{"negative fps", ok, -1, 90},
		{"empty window", subSecond, 60, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeParameters(tt.s, tt.fps, tt.length, 5*time.Second)
			if !errors.Is(err, ErrDegenerateParameters) {
				t.Errorf("err = %v, want ErrDegenerateParameters", err)
			}
		})
	}
}

func TestComputeParameters_Bounds(t *testing.T) {
	start := at(t, "2024-06-01T00:00:00Z")
	minInterval := 5 * time.Second

	for _, fps := range []int{1, 24, 30, 60} {
		for _, length := range []int{10, 60, 90, 300} {
			for _, hours := range []int{1, 4, 8, 12, 17, 23} {
				s := DaySchedule{CaptureStart: start, CaptureEnd: start.Add(time.Duration(hours)*time.Hour + 17*time.Second)}
				p, err := ComputeParameters(s, fps, length, minInterval)
				if err != nil {
					t.Fatalf("fps=%d length=%d hours=%d: %v", fps, length, hours, err)
				}
				if p.Interval < minInterval {
					t.Errorf("fps=%d length=%d hours=%d: interval %v below floor", fps, length, hours, p.Interval)
				}
				if p.TotalFrames > fps*length {
					t.Errorf("fps=%d length=%d hours=%d: %d frames exceeds target %d", fps, length, hours, p.TotalFrames, fps*length)
				}
			}
		}
	}
}

func TestComputeParameters_MonotonicAtFloor(t *testing.T) {
	// With the floor binding, frames grow with the window.
	start := at(t, "2024-06-01T00:00:00Z")
	prev := -1
	for secs := 60; secs <= 5400*5; secs += 37 {
		s := DaySchedule{CaptureStart: start, CaptureEnd: start.Add(time.Duration(secs) * time.Second)}
		p, err := ComputeParameters(s, 60, 90, 5*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if p.TotalFrames < prev {
			t.Fatalf("window %ds: frames %d dropped below %d", secs, p.TotalFrames, prev)
		}
		prev = p.TotalFrames
	}
}

func TestComputeIdempotent(t *testing.T) {
	sunrise := at(t, "2024-03-10T06:41:12Z")
	sunset := at(t, "2024-03-10T17:55:40Z")
	now := at(t, "2024-03-10T09:13:00Z")

	s1, err1 := ComputeWindow(sunrise, sunset, 30*time.Minute, 45*time.Minute, now)
	s2, err2 := ComputeWindow(sunrise, sunset, 30*time.Minute, 45*time.Minute, now)
	if err1 != nil || err2 != nil {
		t.Fatalf("errors: %v, %v", err1, err2)
	}
	if s1 != s2 {
		t.Errorf("ComputeWindow not idempotent: %+v vs %+v", s1, s2)
	}

	p1, _ := ComputeParameters(s1, 60, 90, 5*time.Second)
	p2, _ := ComputeParameters(s2, 60, 90, 5*time.Second)
	if p1 != p2 {
		t.Errorf("ComputeParameters not idempotent: %+v vs %+v", p1, p2)
	}
}

func TestRetryPolicy(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	all := LookupPolicy(5 * time.Minute)
	if !all.ShouldRetry(errA) || all.ShouldRetry(nil) {
		t.Error("nil RetryIf should retry any non-nil error")
	}

	only := RetryPolicy{Name: "only-a", Delay: time.Second, RetryIf: func(err error) bool { return errors.Is(err, errA) }}
	if !only.ShouldRetry(errA) {
		t.Error("should retry errA")
	}
	if only.ShouldRetry(errB) {
		t.Error("should not retry errB")
	}
	if got := FramePolicy(2 * time.Second).String(); got != "frame(2s)" {
		t.Errorf("String() = %q", got)
	}
}
