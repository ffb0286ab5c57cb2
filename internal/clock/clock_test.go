package clock

import (
	"context"
	"testing"
	"time"
)

func TestManual_SleepAdvances(t *testing.T) {
	start := time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC)
	c := NewManual(start)

	if err := c.Sleep(context.Background(), 90*time.Second); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if got, want := c.Now(), start.Add(90*time.Second); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
	if got := c.Sleeps(); len(got) != 1 || got[0] != 90*time.Second {
		t.Errorf("Sleeps() = %v, want [1m30s]", got)
	}
}

func TestManual_SleepCancelled(t *testing.T) {
	c := NewManual(time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Sleep(ctx, time.Minute); err != context.Canceled {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
	if len(c.Sleeps()) != 0 {
		t.Error("cancelled sleep should not be recorded")
	}
}

func TestManual_OnSleepHook(t *testing.T) {
	c := NewManual(time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.OnSleep(func(now time.Time) {
		if now.Day() == 2 {
			cancel()
		}
	})

	if err := c.Sleep(ctx, 2*time.Minute); err != context.Canceled {
		t.Fatalf("Sleep() error = %v, want context.Canceled after hook", err)
	}
}

func TestReal_SleepHonoursContext(t *testing.T) {
	c := NewReal(time.UTC)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := c.Sleep(ctx, time.Hour); err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return on context deadline")
	}
}

func TestNextMidnight(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2024, 3, 30, 21, 15, 0, 0, loc)
	got := NextMidnight(now)
	want := time.Date(2024, 3, 31, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextMidnight() = %v, want %v", got, want)
	}
	if DateOf(got) != "2024-03-31" {
		t.Errorf("DateOf() = %s, want 2024-03-31", DateOf(got))
	}
}
