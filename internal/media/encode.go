package media

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const concatListName = "frames.txt"

// Encoder assembles an ordered frame list into an H.264 video.
type Encoder struct {
	runner  Runner
	ffmpeg  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewEncoder creates an Encoder that runs the ffmpeg binary at bin.
func NewEncoder(runner Runner, bin string, timeout time.Duration, logger *slog.Logger) *Encoder {
	return &Encoder{runner: runner, ffmpeg: bin, timeout: timeout, logger: logger}
}

// WriteConcatList writes an ffmpeg concat demuxer list showing each frame
// for 1/fps seconds. The last frame is repeated so its duration is honoured.
func WriteConcatList(path string, frames []string, fps int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	dur := 1.0 / float64(fps)
	for _, frame := range frames {
		abs, err := filepath.Abs(frame)
		if err != nil {
			abs = frame
		}
		fmt.Fprintf(w, "file '%s'\nduration %.6f\n", escapeConcatPath(abs), dur)
	}
	if len(frames) > 0 {
		abs, err := filepath.Abs(frames[len(frames)-1])
		if err != nil {
			abs = frames[len(frames)-1]
		}
		fmt.Fprintf(w, "file '%s'\n", escapeConcatPath(abs))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return f.Close()
}

func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

// EncodeArgs builds the ffmpeg arguments for a concat-list assembly.
func EncodeArgs(listPath, outPath string, fps int) []string {
	return ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(outPath, ffmpeg.KwArgs{
			"r":        fps,
			"c:v":      "libx264",
			"pix_fmt":  "yuv420p",
			"movflags": "+faststart",
		}).
		GlobalArgs("-loglevel", "error").
		OverWriteOutput().
		GetArgs()
}

// Encode assembles frames, in order, into outPath at fps. It returns the
// size of the written video.
func (e *Encoder) Encode(ctx context.Context, frames []string, fps int, outPath string) (int64, error) {
	if len(frames) == 0 {
		return 0, fmt.Errorf("no frames to encode")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	listPath := filepath.Join(filepath.Dir(frames[0]), concatListName)
	if err := WriteConcatList(listPath, frames, fps); err != nil {
		return 0, err
	}
	defer os.Remove(listPath)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res := e.runner.Run(ctx, e.ffmpeg, EncodeArgs(listPath, outPath, fps), outPath)
	if !res.IsSuccess() {
		return 0, fmt.Errorf("ffmpeg exited %d: %s", res.ExitCode, truncate(res.StderrTail, 512))
	}

	size, ok := artifactOK(outPath)
	if !ok {
		return 0, fmt.Errorf("encoder produced no output at %s", outPath)
	}

	e.logger.Info("video encoded",
		"frames", len(frames),
		"fps", fps,
		"size", humanize.Bytes(uint64(size)),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return size, nil
}
