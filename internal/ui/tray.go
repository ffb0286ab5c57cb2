// Package ui provides the optional system tray showing live capture state.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/b3eb0o/LyngvigFyr/internal/timelapse"
)

const refreshInterval = 2 * time.Second

// StatusSource publishes the capture state machine's snapshot.
type StatusSource interface {
	Status() timelapse.Status
}

type Tray struct {
	source StatusSource
	logger *slog.Logger
	title  string

	statusItem *systray.MenuItem
	framesItem *systray.MenuItem
	windowItem *systray.MenuItem
	errorItem  *systray.MenuItem

	onQuit func()
	stop   context.CancelFunc
}

type TrayConfig struct {
	Source   StatusSource
	Location string
	Logger   *slog.Logger
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		source: cfg.Source,
		logger: cfg.Logger,
		title:  cfg.Location,
		onQuit: cfg.OnQuit,
	}
}

// Run blocks on the systray event loop.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle(t.title)
	systray.SetTooltip("Lyngvig timelapse: " + t.title)

	t.statusItem = systray.AddMenuItem("Status: idle", "Capture state")
	t.statusItem.Disable()
	t.framesItem = systray.AddMenuItem("Frames: -", "Frames captured today")
	t.framesItem.Disable()
	t.windowItem = systray.AddMenuItem("Window: -", "Today's capture window")
	t.windowItem.Disable()
	t.errorItem = systray.AddMenuItem("", "Last error")
	t.errorItem.Disable()
	t.errorItem.Hide()

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Stop the timelapse daemon")

	ctx, cancel := context.WithCancel(context.Background())
	t.stop = cancel

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		t.refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.refresh()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	if t.stop != nil {
		t.stop()
	}
	t.logger.Info("system tray exiting")
}

func (t *Tray) refresh() {
	lines := describe(t.source.Status(), time.Now())
	t.statusItem.SetTitle(lines.status)
	t.framesItem.SetTitle(lines.frames)
	t.windowItem.SetTitle(lines.window)
	if lines.lastError == "" {
		t.errorItem.Hide()
	} else {
		t.errorItem.SetTitle(lines.lastError)
		t.errorItem.Show()
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

type menuLines struct {
	status    string
	frames    string
	window    string
	lastError string
}

func describe(st timelapse.Status, now time.Time) menuLines {
	lines := menuLines{
		status: "Status: " + string(st.State),
		frames: "Frames: -",
		window: "Window: -",
	}
	if st.Date != "" {
		lines.status += " (" + st.Date + ")"
	}

	if st.Parameters != nil {
		lines.frames = fmt.Sprintf("Frames: %d / %d every %s",
			st.FramesCaptured, st.Parameters.TotalFrames, st.Parameters.Interval)
		if !st.LastFrameAt.IsZero() {
			lines.frames += ", last " + humanize.RelTime(st.LastFrameAt, now, "ago", "from now")
		}
	}
	if st.Schedule != nil {
		lines.window = fmt.Sprintf("Window: %s - %s",
			st.Schedule.CaptureStart.Format("15:04"), st.Schedule.CaptureEnd.Format("15:04"))
	}
	if st.LastError != "" {
		msg := st.LastError
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		lines.lastError = "Error: " + msg
	}
	return lines
}
