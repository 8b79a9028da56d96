// Package config collects the deployment knobs for the office server.
// Every value has a default, an environment variable, and a flag; the
// flag wins over the environment.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

const (
	defaultAddr               = ":5000"
	defaultGracePeriod        = 20 * time.Second
	defaultProximityPeriod    = time.Second
	defaultProximityThreshold = 300.0
	defaultGridCells          = 16
	defaultCellSize           = 32.0
	defaultMediaTimeout       = 5 * time.Second
)

const (
	envAddr               = "OFFICE_ADDR"
	envLogFile            = "OFFICE_LOG_FILE"
	envGracePeriodMS      = "OFFICE_GRACE_PERIOD_MS"
	envProximityPeriodMS  = "OFFICE_PROXIMITY_PERIOD_MS"
	envProximityThreshold = "OFFICE_PROXIMITY_THRESHOLD"
	envMediaBaseURL       = "OFFICE_MEDIA_ROUTER_URL"
	envMediaTimeoutMS     = "OFFICE_MEDIA_TIMEOUT_MS"
)

// Config carries everything the process needs to run one server.
type Config struct {
	Addr    string
	LogFile string
	Debug   bool

	// GracePeriod bounds how long a disconnected player is retained
	// before removal.
	GracePeriod time.Duration

	// ProximityPeriod is the media-rule recomputation interval.
	ProximityPeriod time.Duration
	// ProximityThreshold is the inclusion distance in world units.
	ProximityThreshold float64

	// GridCells and CellSize describe the static world grid; spawn
	// positions are randomized within GridCells*CellSize per axis.
	GridCells int
	CellSize  float64

	// MediaBaseURL is the media router endpoint. Empty disables
	// publishing (rules are still computed and cached).
	MediaBaseURL string
	MediaTimeout time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:               defaultAddr,
		GracePeriod:        defaultGracePeriod,
		ProximityPeriod:    defaultProximityPeriod,
		ProximityThreshold: defaultProximityThreshold,
		GridCells:          defaultGridCells,
		CellSize:           defaultCellSize,
		MediaTimeout:       defaultMediaTimeout,
	}
}

// FromEnv layers environment overrides onto the defaults.
func FromEnv() Config {
	cfg := Default()
	if v := os.Getenv(envAddr); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv(envLogFile); v != "" {
		cfg.LogFile = v
	}
	cfg.GracePeriod = envDuration(envGracePeriodMS, cfg.GracePeriod)
	cfg.ProximityPeriod = envDuration(envProximityPeriodMS, cfg.ProximityPeriod)
	if v := os.Getenv(envProximityThreshold); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			cfg.ProximityThreshold = parsed
		}
	}
	if v := os.Getenv(envMediaBaseURL); v != "" {
		cfg.MediaBaseURL = v
	}
	cfg.MediaTimeout = envDuration(envMediaTimeoutMS, cfg.MediaTimeout)
	return cfg
}

// BindFlags registers flag overrides on fs for every tunable.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "rotating log file path (empty for stderr only)")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")
	fs.DurationVar(&c.GracePeriod, "grace-period", c.GracePeriod, "reconnection grace window")
	fs.DurationVar(&c.ProximityPeriod, "proximity-period", c.ProximityPeriod, "media rule recomputation interval")
	fs.Float64Var(&c.ProximityThreshold, "proximity-threshold", c.ProximityThreshold, "inclusion distance in world units")
	fs.StringVar(&c.MediaBaseURL, "media-router-url", c.MediaBaseURL, "media router base URL (empty disables publishing)")
	fs.DurationVar(&c.MediaTimeout, "media-timeout", c.MediaTimeout, "media router request timeout")
}

// GridExtent is the width/height of the spawnable world area.
func (c Config) GridExtent() float64 {
	return float64(c.GridCells) * c.CellSize
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
