// Package media runs the ffmpeg and yt-dlp subprocesses the daemon depends on:
// single-frame grabs, concat assembly and tool discovery.
package media

import "time"

// RunResult is the structured outcome of executing a tool subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	Stdout     string        `json:"-"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Tools holds the resolved absolute paths of the external binaries.
type Tools struct {
	FFmpeg string `json:"ffmpeg"`
	YtDlp  string `json:"ytdlp"`
}
