// Package config builds the runtime configuration of one execution context
// from defaults, PLANET_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Garsondee/Pixel-Planet/internal/geom"
)

// Config captures everything a context needs to start.
type Config struct {
	GridSize   int
	CellSize   int
	HistoryCap int
	Cooldown   time.Duration

	ZoomMin   float64
	ZoomMax   float64
	ZoomStep  float64
	ClickSlop float64

	RotationPeriod    time.Duration
	AnimationDuration time.Duration
	ReplayDelay       time.Duration
	StarCount         int
	Seed              int64

	StorePath    string
	Channel      string
	RedisURL     string
	PollInterval time.Duration
	ControlAddr  string

	LogLevel     string
	WindowWidth  int
	WindowHeight int
	Label        string
	Headless     bool
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		GridSize:   160,
		CellSize:   4,
		HistoryCap: 500,
		Cooldown:   5 * time.Second,

		ZoomMin:   0.25,
		ZoomMax:   12,
		ZoomStep:  1.08,
		ClickSlop: 8,

		RotationPeriod:    90 * time.Second,
		AnimationDuration: 700 * time.Millisecond,
		ReplayDelay:       40 * time.Millisecond,
		StarCount:         220,
		Seed:              42,

		StorePath:    defaultStorePath(),
		Channel:      "pixel-planet",
		PollInterval: 250 * time.Millisecond,

		LogLevel:     "info",
		WindowWidth:  1280,
		WindowHeight: 800,
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "planet.db"
	}
	return filepath.Join(dir, "pixel-planet", "planet.db")
}

// Load applies environment overrides and then args on top of Default and
// validates the result.
func Load(args []string) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("planet", flag.ContinueOnError)
	fs.IntVar(&cfg.GridSize, "grid", cfg.GridSize, "grid size in cells (N x N)")
	fs.IntVar(&cfg.CellSize, "cell", cfg.CellSize, "cell size in world pixels")
	fs.IntVar(&cfg.HistoryCap, "history", cfg.HistoryCap, "placement history capacity")
	fs.DurationVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "local placement cooldown")
	fs.Float64Var(&cfg.ZoomMin, "zoom-min", cfg.ZoomMin, "minimum zoom")
	fs.Float64Var(&cfg.ZoomMax, "zoom-max", cfg.ZoomMax, "maximum zoom")
	fs.Float64Var(&cfg.ZoomStep, "zoom-step", cfg.ZoomStep, "zoom factor per wheel notch")
	fs.Float64Var(&cfg.ClickSlop, "click-slop", cfg.ClickSlop, "max pointer travel in px for a click")
	fs.DurationVar(&cfg.RotationPeriod, "rotation", cfg.RotationPeriod, "time for one full light rotation")
	fs.DurationVar(&cfg.AnimationDuration, "anim", cfg.AnimationDuration, "placement glow duration")
	fs.DurationVar(&cfg.ReplayDelay, "replay-delay", cfg.ReplayDelay, "delay between replayed placements")
	fs.IntVar(&cfg.StarCount, "stars", cfg.StarCount, "number of background stars")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "starfield RNG seed")
	fs.StringVar(&cfg.StorePath, "store", cfg.StorePath, "path of the shared bbolt store")
	fs.StringVar(&cfg.Channel, "channel", cfg.Channel, "broadcast channel name")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "redis URL for the broadcast bus (empty = store signal fallback)")
	fs.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "store signal poll interval")
	fs.StringVar(&cfg.ControlAddr, "control", cfg.ControlAddr, "control API listen address (empty = disabled)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.IntVar(&cfg.WindowWidth, "width", cfg.WindowWidth, "window width")
	fs.IntVar(&cfg.WindowHeight, "height", cfg.WindowHeight, "window height")
	fs.StringVar(&cfg.Label, "label", cfg.Label, "display label attached to placements")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "run without a window")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"PLANET_GRID_SIZE":   &c.GridSize,
		"PLANET_CELL_SIZE":   &c.CellSize,
		"PLANET_HISTORY_CAP": &c.HistoryCap,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"PLANET_COOLDOWN":      &c.Cooldown,
		"PLANET_POLL_INTERVAL": &c.PollInterval,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	strs := map[string]*string{
		"PLANET_STORE":        &c.StorePath,
		"PLANET_CHANNEL":      &c.Channel,
		"PLANET_REDIS_URL":    &c.RedisURL,
		"PLANET_CONTROL_ADDR": &c.ControlAddr,
		"PLANET_LOG_LEVEL":    &c.LogLevel,
		"PLANET_LABEL":        &c.Label,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("PLANET_HEADLESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PLANET_HEADLESS: %w", err)
		}
		c.Headless = b
	}
	return nil
}

// Validate rejects configurations the rest of the program cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.GridSize <= 0 {
		errs = append(errs, fmt.Errorf("grid size must be > 0, got %d", c.GridSize))
	}
	if c.CellSize <= 0 {
		errs = append(errs, fmt.Errorf("cell size must be > 0, got %d", c.CellSize))
	}
	if c.HistoryCap <= 0 {
		errs = append(errs, fmt.Errorf("history cap must be > 0, got %d", c.HistoryCap))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must be >= 0, got %s", c.Cooldown))
	}
	if c.ZoomMin <= 0 || c.ZoomMax < c.ZoomMin {
		errs = append(errs, fmt.Errorf("zoom range [%g, %g] is invalid", c.ZoomMin, c.ZoomMax))
	}
	if c.ZoomStep <= 1 {
		errs = append(errs, fmt.Errorf("zoom step must be > 1, got %g", c.ZoomStep))
	}
	if c.ClickSlop < 0 {
		errs = append(errs, fmt.Errorf("click slop must be >= 0, got %g", c.ClickSlop))
	}
	if c.RotationPeriod <= 0 || c.AnimationDuration <= 0 || c.ReplayDelay <= 0 || c.PollInterval <= 0 {
		errs = append(errs, errors.New("rotation, anim, replay-delay and poll must be positive"))
	}
	if c.StarCount < 0 {
		errs = append(errs, fmt.Errorf("star count must be >= 0, got %d", c.StarCount))
	}
	if c.StorePath == "" {
		errs = append(errs, errors.New("store path is empty"))
	}
	if c.Channel == "" {
		errs = append(errs, errors.New("channel name is empty"))
	}
	if !c.Headless && (c.WindowWidth <= 0 || c.WindowHeight <= 0) {
		errs = append(errs, fmt.Errorf("window size %dx%d is invalid", c.WindowWidth, c.WindowHeight))
	}
	return errors.Join(errs...)
}

// Planet returns the planet geometry.
func (c Config) Planet() geom.Planet {
	return geom.Planet{GridSize: c.GridSize, CellSize: c.CellSize}
}

// AngularRate returns the light rotation speed in radians per millisecond.
func (c Config) AngularRate() float64 {
	return 2 * math.Pi / float64(c.RotationPeriod.Milliseconds())
}
