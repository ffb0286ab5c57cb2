package timelapse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/b3eb0o/LyngvigFyr/internal/catalog"
	"github.com/b3eb0o/LyngvigFyr/internal/clock"
	"github.com/b3eb0o/LyngvigFyr/internal/stream"
	"github.com/b3eb0o/LyngvigFyr/internal/sun"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGrabber writes a tiny file and records the time of each attempt.
type fakeGrabber struct {
	clock    clock.Clock
	failures int // fail this many attempts before succeeding
	attempts int
	grabs    []time.Time
	urls     []string
}

func (g *fakeGrabber) Grab(_ context.Context, url, path string) error {
	g.attempts++
	if g.failures > 0 {
		g.failures--
		return errors.New("connection reset")
	}
	if err := os.WriteFile(path, []byte("jpg"), 0644); err != nil {
		return err
	}
	g.grabs = append(g.grabs, g.clock.Now())
	g.urls = append(g.urls, url)
	return nil
}

type fakeResolver struct {
	clock    clock.Clock
	maxUses  int
	failures int
	resolves int
}

func (r *fakeResolver) Resolve(context.Context) (*stream.Handle, error) {
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("yt-dlp exited 1")
	}
	r.resolves++
	h := &stream.Handle{URL: "https://cdn.example/live-" + string(rune('a'+r.resolves-1)), MaxUses: r.maxUses}
	if r.clock != nil {
		h.ResolvedAt = r.clock.Now()
	}
	return h, nil
}

// fakeSun returns fixed local clock times for any date.
type fakeSun struct {
	loc      *time.Location
	sunrise  time.Duration // offset from local midnight
	sunset   time.Duration
	failures int
	polar    bool
	calls    []string
}

func (s *fakeSun) Times(_ context.Context, date time.Time) (sun.Times, error) {
	local := date.In(s.loc)
	s.calls = append(s.calls, clock.DateOf(local))
	if s.failures > 0 {
		s.failures--
		return sun.Times{}, errors.New("HTTP 503")
	}
	if s.polar {
		return sun.Times{}, fmt.Errorf("%w: %s", sun.ErrNoSunEvent, clock.DateOf(local))
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return sun.Times{
		Date:    clock.DateOf(local),
		Sunrise: midnight.Add(s.sunrise),
		Sunset:  midnight.Add(s.sunset),
	}, nil
}

type fakeEncoder struct {
	err    error
	calls  int
	frames []string
	out    string
}

func (e *fakeEncoder) Encode(_ context.Context, frames []string, _ int, out string) (int64, error) {
	e.calls++
	e.frames = append([]string(nil), frames...)
	e.out = out
	if e.err != nil {
		return 0, e.err
	}
	return 4096, nil
}

type memStore struct {
	mu   sync.Mutex
	days map[string]catalog.Day
}

func newMemStore() *memStore {
	return &memStore{days: map[string]catalog.Day{}}
}

func (m *memStore) GetDay(_ context.Context, date string) (*catalog.Day, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.days[date]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memStore) UpsertDay(_ context.Context, d *catalog.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[d.Date] = *d
	return nil
}

func (m *memStore) get(date string) (catalog.Day, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.days[date]
	return d, ok
}
