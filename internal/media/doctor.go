package media

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrToolMissing is returned when a required binary is not on PATH.
var ErrToolMissing = errors.New("required tool not found")

// ResolveTools locates the ffmpeg and yt-dlp binaries. Either missing is a
// startup failure.
func ResolveTools(ffmpegName, ytdlpName string) (Tools, error) {
	var tools Tools
	var errs []error

	p, err := resolveBinary(ffmpegName)
	if err != nil {
		errs = append(errs, err)
	}
	tools.FFmpeg = p

	p, err = resolveBinary(ytdlpName)
	if err != nil {
		errs = append(errs, err)
	}
	tools.YtDlp = p

	return tools, errors.Join(errs...)
}

func resolveBinary(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty binary name", ErrToolMissing)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q not on PATH", ErrToolMissing, name)
	}
	return p, nil
}
