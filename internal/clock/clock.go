// Package clock is the time source for every scheduling decision in the
// daemon. Production code uses Real; tests drive whole days through Manual.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock reports wall-clock time and blocks for a duration.
// Sleep returns early with ctx.Err() when the context is cancelled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall clock, reported in a fixed location.
type Real struct {
	loc *time.Location
}

func NewReal(loc *time.Location) *Real {
	if loc == nil {
		loc = time.Local
	}
	return &Real{loc: loc}
}

func (c *Real) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Manual is a clock that only moves when slept on or advanced.
// Sleep advances time by exactly d and returns immediately.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(now time.Time)
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	c.sleeps = append(c.sleeps, d)
	now := c.now
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}
	return ctx.Err()
}

// Advance moves the clock forward without recording a sleep.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// OnSleep registers a hook called after every Sleep with the new time.
// Tests use it to cancel the daemon once a target time is reached.
func (c *Manual) OnSleep(fn func(now time.Time)) {
	c.mu.Lock()
	c.onSleep = fn
	c.mu.Unlock()
}

// Sleeps returns a copy of every duration passed to Sleep.
func (c *Manual) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// NextMidnight returns the start of the calendar day after t, in t's location.
func NextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

// DateOf formats the calendar date of t as YYYY-MM-DD.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
