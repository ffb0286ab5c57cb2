// Package catalog is the daemon's persistent day ledger: one record per
// calendar date describing what the capture state machine did with it, plus
// a small key/value store for the API token and the geocode cache.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

const (
	DayStatusScheduled   = "scheduled"
	DayStatusCapturing   = "capturing"
	DayStatusAssembling  = "assembling"
	DayStatusCompleted   = "completed"
	DayStatusFailed      = "failed"
	DayStatusSkipped     = "skipped"
	DayStatusInterrupted = "interrupted"
)

// Config keys
const (
	ConfigKeyAuthToken     = "auth_token"
	ConfigKeyLocationCache = "geocode:" // suffixed with the location name
)

// Day is the ledger record for one calendar date.
type Day struct {
	Date            string    `json:"date"`
	Status          string    `json:"status"`
	Sunrise         time.Time `json:"sunrise,omitzero"`
	Sunset          time.Time `json:"sunset,omitzero"`
	CaptureStart    time.Time `json:"capture_start,omitzero"`
	CaptureEnd      time.Time `json:"capture_end,omitzero"`
	IntervalSeconds int       `json:"interval_seconds"`
	FramesTarget    int       `json:"frames_target"`
	FramesCaptured  int       `json:"frames_captured"`
	VideoPath       string    `json:"video_path,omitempty"`
	VideoBytes      int64     `json:"video_bytes,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsTerminal reports whether the day needs no further work.
// Interrupted days are not terminal: a restart on the same date may resume.
func (d *Day) IsTerminal() bool {
	switch d.Status {
	case DayStatusCompleted, DayStatusFailed, DayStatusSkipped:
		return true
	}
	return false
}

// NewID returns a random identifier for capture sessions.
func NewID() string {
	return uuid.NewString()
}
