package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	maxStderrBytes = 8 * 1024  // 8 KB tail of stderr kept for diagnostics
	maxStdoutBytes = 64 * 1024 // yt-dlp prints a handful of URLs
)

// Runner executes one tool invocation.
type Runner interface {
	Run(ctx context.Context, bin string, args []string, outPath string) RunResult
}

// ExecRunner is the production Runner built on os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates an ExecRunner.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run executes bin with args. When outPath is set its directory is created
// first. It never returns an error; failures surface in the exit code.
func (r *ExecRunner) Run(ctx context.Context, bin string, args []string, outPath string) RunResult {
	start := time.Now()

	if outPath != "" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			r.logger.Error("cannot create output dir", "error", err)
			return RunResult{ExitCode: -1, StderrTail: err.Error(), Duration: time.Since(start)}
		}
	}

	cmd := exec.CommandContext(ctx, bin, args...)

	var stderrBuf, stdoutBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Writer(&limitedWriter{w: &stdoutBuf, limit: maxStdoutBytes})

	r.logger.Debug("executing tool", "bin", filepath.Base(bin), "args_count", len(args))

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	stderrTail := stderrBuf.String()
	if exitCode != 0 && stderrTail == "" && err != nil {
		stderrTail = err.Error()
	}

	if exitCode != 0 {
		r.logger.Warn("tool command failed",
			"bin", filepath.Base(bin),
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		r.logger.Debug("tool command succeeded",
			"bin", filepath.Base(bin),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		Stdout:     stdoutBuf.String(),
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

// artifactOK reports whether path exists and is non-empty.
func artifactOK(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), info.Size() > 0
}
