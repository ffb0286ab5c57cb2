package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Grabber acquires a single still frame from a stream URL.
type Grabber struct {
	runner  Runner
	ffmpeg  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewGrabber creates a Grabber that runs the ffmpeg binary at bin.
func NewGrabber(runner Runner, bin string, timeout time.Duration, logger *slog.Logger) *Grabber {
	return &Grabber{runner: runner, ffmpeg: bin, timeout: timeout, logger: logger}
}

// GrabArgs builds the ffmpeg arguments for one JPEG frame from streamURL.
func GrabArgs(streamURL, outPath string) []string {
	return ffmpeg.Input(streamURL, ffmpeg.KwArgs{"loglevel": "error"}).
		Output(outPath, ffmpeg.KwArgs{"frames:v": 1, "q:v": 2}).
		OverWriteOutput().
		GetArgs()
}

// Grab writes one frame to outPath. The artifact being present and
// non-empty is the only success signal.
func (g *Grabber) Grab(ctx context.Context, streamURL, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// A stale partial file from an earlier attempt must not count as success.
	_ = os.Remove(outPath)

	res := g.runner.Run(ctx, g.ffmpeg, GrabArgs(streamURL, outPath), outPath)
	if _, ok := artifactOK(outPath); !ok {
		return fmt.Errorf("frame grab produced no image (exit %d): %s", res.ExitCode, truncate(res.StderrTail, 256))
	}
	if !res.IsSuccess() {
		g.logger.Debug("ffmpeg exited non-zero but wrote a frame", "exit_code", res.ExitCode)
	}
	return nil
}
