package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/b3eb0o/LyngvigFyr/internal/api"
	"github.com/b3eb0o/LyngvigFyr/internal/catalog"
	"github.com/b3eb0o/LyngvigFyr/internal/clock"
	"github.com/b3eb0o/LyngvigFyr/internal/config"
	"github.com/b3eb0o/LyngvigFyr/internal/db"
	"github.com/b3eb0o/LyngvigFyr/internal/geo"
	"github.com/b3eb0o/LyngvigFyr/internal/logging"
	"github.com/b3eb0o/LyngvigFyr/internal/media"
	"github.com/b3eb0o/LyngvigFyr/internal/schedule"
	"github.com/b3eb0o/LyngvigFyr/internal/stream"
	"github.com/b3eb0o/LyngvigFyr/internal/sun"
	"github.com/b3eb0o/LyngvigFyr/internal/timelapse"
	"github.com/b3eb0o/LyngvigFyr/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $LYNGVIG_CONFIG)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("lyngvigd %s (%s, built %s)\n", config.Version, config.GitCommit, config.BuildTime)
		return
	}

	if err := run(*configPath); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run(configPath string) error {
	startTime := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.FramesDir(), cfg.OutputDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting lyngvig timelapse daemon",
		"version", config.Version,
		"location", cfg.Location,
		"data_dir", logging.SanitizePath(cfg.DataDir),
		"config_file", cfg.Source,
	)

	tools, err := media.ResolveTools(cfg.Tools.FFmpeg, cfg.Tools.YtDlp)
	if err != nil {
		return fmt.Errorf("external tools unavailable: %w", err)
	}
	logger.Info("external tools found", "ffmpeg", tools.FFmpeg, "ytdlp", tools.YtDlp)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())
	ledger := catalog.NewService(repo, logger)

	authToken, err := ledger.EnsureAuthToken(context.Background())
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	quitCh := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
		cancel()
	}()

	loc := cfg.Loc()
	wall := clock.NewReal(loc)
	lookupPolicy := schedule.RetryPolicy{
		Name:    "lookup",
		Delay:   cfg.Retry.LookupDelay,
		RetryIf: func(err error) bool { return !geo.IsPermanent(err) },
	}

	place, err := resolveLocation(ctx, cfg, ledger, wall, lookupPolicy, logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	runner := media.NewExecRunner(logging.WithComponent(logger, "media"))
	sunClient := sun.NewClient(cfg.Lookup.SunURL, place.Latitude, place.Longitude, loc,
		cfg.Lookup.UserAgent, cfg.Lookup.Timeout, logging.WithComponent(logger, "sun"))
	resolver := stream.NewYtDlpResolver(runner, tools.YtDlp, cfg.SourceURL, cfg.Capture.HandleMaxUses,
		cfg.Tools.ResolveTimeout, wall.Now, logging.WithComponent(logger, "stream"))
	grabber := media.NewGrabber(runner, tools.FFmpeg, cfg.Tools.GrabTimeout, logging.WithComponent(logger, "grabber"))
	encoder := media.NewEncoder(runner, tools.FFmpeg, cfg.Tools.AssembleTimeout, logging.WithComponent(logger, "encoder"))

	daemonLogger := logging.WithComponent(logger, "timelapse")
	loop := timelapse.NewCaptureLoop(wall, grabber, resolver,
		schedule.FramePolicy(cfg.Retry.FrameDelay), lookupPolicy, daemonLogger)
	daemon := timelapse.NewDaemon(timelapse.Config{
		Location:      cfg.Location,
		Loc:           loc,
		PreRun:        cfg.PreRun(),
		PostRun:       cfg.PostRun(),
		MinInterval:   cfg.MinInterval(),
		FPS:           cfg.Capture.FPS,
		LengthSeconds: cfg.Capture.VideoLengthSeconds,
		FramesDir:     cfg.FramesDir(),
		OutputDir:     cfg.OutputDir(),
		Lookup:        lookupPolicy,
	}, wall, sunClient, loop, timelapse.NewAssembler(encoder, daemonLogger), repo, daemonLogger)

	printBanner(cfg, place, authToken)

	daemonDone := make(chan struct{})
	go func() {
		defer close(daemonDone)
		if err := daemon.Run(ctx); err != nil {
			logger.Error("timelapse daemon stopped", "error", err)
		}
	}()

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port,
		Version:    config.Version,
		Location:   cfg.Location,
		OutputDir:  cfg.OutputDir(),
		Daemon:     daemon,
		Repository: repo,
		Logger:     logging.WithComponent(logger, "api"),
		StartTime:  startTime,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	if cfg.Headless {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Source:   daemon,
			Location: cfg.Location,
			Logger:   logger,
			OnQuit: func() {
				select {
				case <-quitCh:
				default:
					close(quitCh)
				}
			},
		})
		go tray.Run()
	}

	<-ctx.Done()

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	select {
	case <-daemonDone:
	case <-shutdownCtx.Done():
		logger.Warn("timelapse daemon did not stop in time")
	}

	logger.Info("shutdown complete", "uptime", humanize.RelTime(startTime, time.Now(), "", ""))
	return nil
}

// resolveLocation geocodes the configured place once, caching the result in
// the ledger. Transient failures are retried; an unknown place is fatal.
func resolveLocation(ctx context.Context, cfg *config.Config, ledger *catalog.Service, c clock.Clock, policy schedule.RetryPolicy, logger *slog.Logger) (geo.Location, error) {
	key := catalog.ConfigKeyLocationCache + cfg.Location

	var cached geo.Location
	if ok, err := ledger.CachedValue(ctx, key, &cached); err != nil {
		logger.Warn("failed to read geocode cache", "error", err)
	} else if ok {
		logger.Info("using cached location", "name", cached.Name, "lat", cached.Latitude, "lng", cached.Longitude)
		return cached, nil
	}

	geocoder := geo.NewClient(cfg.Lookup.GeocoderURL, cfg.Lookup.UserAgent, cfg.Lookup.Timeout,
		logging.WithComponent(logger, "geo"))
	for {
		place, err := geocoder.Lookup(ctx, cfg.Location)
		if err == nil {
			if err := ledger.StoreValue(ctx, key, place); err != nil {
				logger.Warn("failed to cache location", "error", err)
			}
			return place, nil
		}
		if ctx.Err() != nil {
			return geo.Location{}, ctx.Err()
		}
		if !policy.ShouldRetry(err) {
			return geo.Location{}, fmt.Errorf("cannot geocode %q: %w", cfg.Location, err)
		}

		logger.Warn("geocoding failed, retrying",
			"error", fmt.Errorf("%w: %w", timelapse.ErrTransientLookup, err),
			"retry_in", policy.Delay.String(),
		)
		if err := c.Sleep(ctx, policy.Delay); err != nil {
			return geo.Location{}, err
		}
	}
}

func printBanner(cfg *config.Config, place geo.Location, token string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  LYNGVIG TIMELAPSE %-55s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Location:   %-60s ║\n", truncateRunes(place.DisplayName, 60))
	fmt.Printf("║  Target:     %-60s ║\n",
		fmt.Sprintf("%ds @ %d fps (%s frames)", cfg.Capture.VideoLengthSeconds, cfg.Capture.FPS,
			humanize.Comma(int64(cfg.Capture.VideoLengthSeconds*cfg.Capture.FPS))))
	fmt.Printf("║  API URL:    http://127.0.0.1:%-43d ║\n", cfg.Port)
	fmt.Printf("║  Auth Token: %-60s ║\n", token)
	fmt.Println("╚═══════════════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
