package timelapse

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/b3eb0o/LyngvigFyr/internal/geo"
)

// VideoEncoder turns an ordered frame list into a video file.
type VideoEncoder interface {
	Encode(ctx context.Context, frames []string, fps int, outPath string) (int64, error)
}

// Assembler encodes a finished day and releases its frames.
type Assembler struct {
	encoder VideoEncoder
	logger  *slog.Logger
}

func NewAssembler(encoder VideoEncoder, logger *slog.Logger) *Assembler {
	return &Assembler{encoder: encoder, logger: logger}
}

// VideoPath is the deterministic output path for a location's day.
func VideoPath(outputDir, location, date string) string {
	slug := geo.Slug(location)
	return filepath.Join(outputDir, slug, slug+"_"+date+".mp4")
}

// Assemble encodes state's frames into outputPath at fps. The frame
// directory is released whatever the outcome; failures are not retried.
func (a *Assembler) Assemble(ctx context.Context, state *DayCaptureState, outputPath string, fps int) error {
	defer func() {
		if err := state.Release(); err != nil {
			a.logger.Warn("failed to release frame dir", "date", state.Date, "error", err)
		}
	}()

	if len(state.Frames) == 0 {
		return fmt.Errorf("%w for %s", ErrNoFrames, state.Date)
	}

	size, err := a.encoder.Encode(ctx, state.Frames, fps, outputPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAssembly, err)
	}

	state.Complete = true
	state.VideoPath = outputPath
	state.VideoBytes = size
	a.logger.Info("timelapse assembled",
		"date", state.Date,
		"frames", len(state.Frames),
		"video", filepath.Base(outputPath),
	)
	return nil
}
