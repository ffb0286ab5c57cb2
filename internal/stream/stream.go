// Package stream resolves a live source page into a direct media URL using
// yt-dlp and tracks how long that URL may be reused.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/b3eb0o/LyngvigFyr/internal/logging"
	"github.com/b3eb0o/LyngvigFyr/internal/media"
)

// DefaultMaxUses is how many successful grabs a resolved URL serves.
const DefaultMaxUses = 50

// ErrNoURL is returned when yt-dlp printed no usable URL.
var ErrNoURL = errors.New("no stream url resolved")

// Handle is a resolved, time-limited media URL.
type Handle struct {
	URL        string
	ResolvedAt time.Time
	Uses       int
	MaxUses    int
}

// Stale reports whether the handle has served its quota of grabs.
func (h *Handle) Stale() bool {
	if h == nil {
		return true
	}
	return h.Uses >= h.MaxUses
}

// MarkUsed records one successful grab.
func (h *Handle) MarkUsed() {
	h.Uses++
}

// Resolver produces fresh handles for a source.
type Resolver interface {
	Resolve(ctx context.Context) (*Handle, error)
}

// YtDlpResolver resolves the configured source URL with yt-dlp.
type YtDlpResolver struct {
	runner    media.Runner
	bin       string
	sourceURL string
	maxUses   int
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewYtDlpResolver creates a resolver for sourceURL. maxUses <= 0 selects
// DefaultMaxUses.
func NewYtDlpResolver(runner media.Runner, bin, sourceURL string, maxUses int, timeout time.Duration, now func() time.Time, logger *slog.Logger) *YtDlpResolver {
	if maxUses <= 0 {
		maxUses = DefaultMaxUses
	}
	return &YtDlpResolver{
		runner:    runner,
		bin:       bin,
		sourceURL: sourceURL,
		maxUses:   maxUses,
		timeout:   timeout,
		now:       now,
		logger:    logger,
	}
}

// Resolve runs `yt-dlp -g -f best <source>` and takes the first URL line.
func (r *YtDlpResolver) Resolve(ctx context.Context) (*Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := r.runner.Run(ctx, r.bin, []string{"-g", "-f", "best", "--no-warnings", r.sourceURL}, "")
	if !res.IsSuccess() {
		return nil, fmt.Errorf("yt-dlp exited %d: %s", res.ExitCode, strings.TrimSpace(res.StderrTail))
	}

	url, err := firstURL(res.Stdout)
	if err != nil {
		return nil, err
	}

	r.logger.Info("stream handle resolved",
		"url", logging.SanitizeURL(url),
		"max_uses", r.maxUses,
	)
	return &Handle{URL: url, ResolvedAt: r.now(), MaxUses: r.maxUses}, nil
}

func firstURL(out string) (string, error) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	return "", ErrNoURL
}
