// Package config provides configuration management for the timelapse daemon.
// Configuration is layered with viper: defaults, then an optional YAML file,
// then LYNGVIG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// Default values
	DefaultPort     = 8788
	DefaultLogLevel = "info"
	DefaultDataDir  = ".lyngvig"
	DefaultLocation = "Lyngvig Fyr"
	DefaultTimezone = "Europe/Copenhagen"

	// Environment
	EnvPrefix     = "LYNGVIG"
	EnvConfigFile = "LYNGVIG_CONFIG"

	// Database filename
	DBFilename = "lyngvig.db"

	// Capture defaults
	DefaultVideoLengthSeconds = 90
	DefaultFPS                = 60
	DefaultMinIntervalSeconds = 5
	DefaultPreRunMinutes      = 30
	DefaultPostRunMinutes     = 45
	DefaultHandleMaxUses      = 50
)

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Config is the full daemon configuration, fixed at process start.
type Config struct {
	Location  string `mapstructure:"location"`
	SourceURL string `mapstructure:"source_url"`
	Timezone  string `mapstructure:"timezone"`
	DataDir   string `mapstructure:"data_dir"`
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	Headless  bool   `mapstructure:"headless"`

	Capture CaptureConfig `mapstructure:"capture"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Lookup  LookupConfig  `mapstructure:"lookup"`

	// Source is the config file that was read, empty when none was used.
	Source string `mapstructure:"-"`
}

// CaptureConfig holds the rate-controller targets and window offsets.
type CaptureConfig struct {
	VideoLengthSeconds int `mapstructure:"video_length_seconds"`
	FPS                int `mapstructure:"fps"`
	MinIntervalSeconds int `mapstructure:"min_interval_seconds"`
	PreRunMinutes      int `mapstructure:"pre_run_minutes"`
	PostRunMinutes     int `mapstructure:"post_run_minutes"`
	HandleMaxUses      int `mapstructure:"handle_max_uses"`
}

// RetryConfig holds the fixed backoff delays.
type RetryConfig struct {
	LookupDelay time.Duration `mapstructure:"lookup_delay"`
	FrameDelay  time.Duration `mapstructure:"frame_delay"`
}

// ToolsConfig names the external binaries and bounds each invocation.
type ToolsConfig struct {
	FFmpeg          string        `mapstructure:"ffmpeg"`
	YtDlp           string        `mapstructure:"ytdlp"`
	GrabTimeout     time.Duration `mapstructure:"grab_timeout"`
	ResolveTimeout  time.Duration `mapstructure:"resolve_timeout"`
	AssembleTimeout time.Duration `mapstructure:"assemble_timeout"`
}

// LookupConfig holds the HTTP collaborators' endpoints.
type LookupConfig struct {
	GeocoderURL string        `mapstructure:"geocoder_url"`
	SunURL      string        `mapstructure:"sun_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from defaults, the optional file at path (or
// $LYNGVIG_CONFIG) and the environment, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("location", DefaultLocation)
	v.SetDefault("source_url", "")
	v.SetDefault("timezone", DefaultTimezone)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("port", DefaultPort)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("headless", true)

	v.SetDefault("capture.video_length_seconds", DefaultVideoLengthSeconds)
	v.SetDefault("capture.fps", DefaultFPS)
	v.SetDefault("capture.min_interval_seconds", DefaultMinIntervalSeconds)
	v.SetDefault("capture.pre_run_minutes", DefaultPreRunMinutes)
	v.SetDefault("capture.post_run_minutes", DefaultPostRunMinutes)
	v.SetDefault("capture.handle_max_uses", DefaultHandleMaxUses)

	v.SetDefault("retry.lookup_delay", 5*time.Minute)
	v.SetDefault("retry.frame_delay", 2*time.Second)

	v.SetDefault("tools.ffmpeg", "ffmpeg")
	v.SetDefault("tools.ytdlp", "yt-dlp")
	v.SetDefault("tools.grab_timeout", 60*time.Second)
	v.SetDefault("tools.resolve_timeout", 60*time.Second)
	v.SetDefault("tools.assemble_timeout", 30*time.Minute)

	v.SetDefault("lookup.geocoder_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("lookup.sun_url", "https://api.sunrise-sunset.org")
	v.SetDefault("lookup.user_agent", "lyngvig-timelapse/"+Version)
	v.SetDefault("lookup.timeout", 30*time.Second)
}

// Validate checks the fixed-at-start settings. Any error here is fatal.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Location) == "" {
		errs = append(errs, errors.New("location is required"))
	}
	if strings.TrimSpace(c.SourceURL) == "" {
		errs = append(errs, errors.New("source_url is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.Capture.FPS <= 0 {
		errs = append(errs, fmt.Errorf("capture.fps must be positive, got %d", c.Capture.FPS))
	}
	if c.Capture.VideoLengthSeconds <= 0 {
		errs = append(errs, fmt.Errorf("capture.video_length_seconds must be positive, got %d", c.Capture.VideoLengthSeconds))
	}
	if c.Capture.MinIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("capture.min_interval_seconds must be positive, got %d", c.Capture.MinIntervalSeconds))
	}
	if c.Capture.PreRunMinutes < 0 || c.Capture.PostRunMinutes < 0 {
		errs = append(errs, errors.New("capture pre/post run minutes must not be negative"))
	}
	if c.Capture.HandleMaxUses <= 0 {
		errs = append(errs, fmt.Errorf("capture.handle_max_uses must be positive, got %d", c.Capture.HandleMaxUses))
	}
	if c.Retry.LookupDelay <= 0 || c.Retry.FrameDelay <= 0 {
		errs = append(errs, errors.New("retry delays must be positive"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	return errors.Join(errs...)
}

// Loc returns the configured timezone. Validate guarantees it loads.
func (c *Config) Loc() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DBPath returns the full path to the SQLite database file
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFilename)
}

// FramesDir returns the root of the per-day frame working directories
func (c *Config) FramesDir() string {
	return filepath.Join(c.DataDir, "frames")
}

// OutputDir returns the root directory for assembled videos
func (c *Config) OutputDir() string {
	return filepath.Join(c.DataDir, "videos")
}

func (c *Config) PreRun() time.Duration {
	return time.Duration(c.Capture.PreRunMinutes) * time.Minute
}

func (c *Config) PostRun() time.Duration {
	return time.Duration(c.Capture.PostRunMinutes) * time.Minute
}

func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.Capture.MinIntervalSeconds) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
