// Package timelapse drives the daily capture cycle: wait for the daylight
// window, grab frames at the computed interval, and assemble them into one
// video per day.
package timelapse

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// State is a capture state machine state.
type State string

const (
	StateIdle             State = "idle"
	StateComputing        State = "computing_schedule"
	StateWaitingForWindow State = "waiting_for_window"
	StateCapturing        State = "capturing"
	StateAssembling       State = "assembling"
	StateDayComplete      State = "day_complete"
)

// DayCaptureState is the frame collection for one day's capture session.
// It is created fresh on entry to capturing and released by assembly.
type DayCaptureState struct {
	Date           string
	SessionID      string
	FramesCaptured int
	Complete       bool
	FrameDir       string
	Frames         []string
	VideoPath      string
	VideoBytes     int64
}

// NewDayCaptureState creates an empty state with its frame directory at
// <framesRoot>/<date>. Any leftovers from an earlier session are removed.
func NewDayCaptureState(framesRoot, date, sessionID string) (*DayCaptureState, error) {
	dir := filepath.Join(framesRoot, date)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear frame dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	return &DayCaptureState{Date: date, SessionID: sessionID, FrameDir: dir}, nil
}

// NextFramePath is where the next frame should be written. Indices are
// contiguous because failed grabs do not advance the counter.
func (s *DayCaptureState) NextFramePath() string {
	return filepath.Join(s.FrameDir, fmt.Sprintf("%06d.jpg", s.FramesCaptured))
}

// Record appends a successfully captured frame.
func (s *DayCaptureState) Record(path string) {
	s.Frames = append(s.Frames, path)
	s.FramesCaptured++
}

// Release deletes the frame directory.
func (s *DayCaptureState) Release() error {
	if s.FrameDir == "" {
		return nil
	}
	return os.RemoveAll(s.FrameDir)
}

// SweepFrameDirs removes every per-day frame directory under root. Frames
// never outlive the process that captured them.
func SweepFrameDirs(root string, logger *slog.Logger) error {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("failed to remove stale frame dir", "dir", e.Name(), "error", err)
			continue
		}
		logger.Info("removed stale frame dir", "dir", e.Name())
	}
	return nil
}
