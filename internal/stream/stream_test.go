package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/b3eb0o/LyngvigFyr/internal/media"
)

type fakeRunner struct {
	result media.RunResult
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, args []string, _ string) media.RunResult {
	f.args = args
	return f.result
}

func newResolver(r media.Runner) *YtDlpResolver {
	now := time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC)
	return NewYtDlpResolver(r, "yt-dlp", "https://www.youtube.com/watch?v=abc", 0, time.Second,
		func() time.Time { return now }, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandle_Stale(t *testing.T) {
	var nilHandle *Handle
	if !nilHandle.Stale() {
		t.Error("nil handle should be stale")
	}

	h := &Handle{URL: "https://x", MaxUses: 3}
	for i := 0; i < 3; i++ {
		if h.Stale() {
			t.Fatalf("stale after %d uses", i)
		}
		h.MarkUsed()
	}
	if !h.Stale() {
		t.Error("handle should be stale after MaxUses")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		result  media.RunResult
		wantURL string
		wantErr bool
	}{
		{
			name:    "first url line",
			result:  media.RunResult{Stdout: "https://manifest.googlevideo.com/a.m3u8?sig=1\nhttps://second\n"},
			wantURL: "https://manifest.googlevideo.com/a.m3u8?sig=1",
		},
		{
			name:    "skips noise",
			result:  media.RunResult{Stdout: "WARNING: something\nhttps://cdn/live\n"},
			wantURL: "https://cdn/live",
		},
		{
			name:    "empty output",
			result:  media.RunResult{Stdout: "\n"},
			wantErr: true,
		},
		{
			name:    "non-zero exit",
			result:  media.RunResult{ExitCode: 1, StderrTail: "ERROR: video unavailable"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{result: tt.result}
			h, err := newResolver(fr).Resolve(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if h.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", h.URL, tt.wantURL)
			}
			if h.MaxUses != DefaultMaxUses || h.Uses != 0 {
				t.Errorf("handle = %+v", h)
			}
			if fr.args[0] != "-g" || fr.args[len(fr.args)-1] != "https://www.youtube.com/watch?v=abc" {
				t.Errorf("args = %v", fr.args)
			}
		})
	}
}

func TestFirstURL_NoURL(t *testing.T) {
	if _, err := firstURL("nothing here"); !errors.Is(err, ErrNoURL) {
		t.Errorf("err = %v, want ErrNoURL", err)
	}
}
