package config

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 160, cfg.GridSize)
	assert.Equal(t, 5*time.Second, cfg.Cooldown)
	assert.Equal(t, 500, cfg.HistoryCap)
	assert.Equal(t, 640.0, cfg.Planet().Diameter())
	assert.InDelta(t, 2*math.Pi/90000, cfg.AngularRate(), 1e-12)
}

func TestLoad_EnvThenFlags(t *testing.T) {
	t.Setenv("PLANET_GRID_SIZE", "64")
	t.Setenv("PLANET_COOLDOWN", "2s")
	t.Setenv("PLANET_LABEL", "env-label")

	cfg, err := Load([]string{"-label", "flag-label", "-headless"})
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.GridSize)
	assert.Equal(t, 2*time.Second, cfg.Cooldown)
	assert.Equal(t, "flag-label", cfg.Label, "flags must win over env")
	assert.True(t, cfg.Headless)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("PLANET_HISTORY_CAP", "lots")
	_, err := Load(nil)
	assert.ErrorContains(t, err, "PLANET_HISTORY_CAP")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"grid":      func(c *Config) { c.GridSize = 0 },
		"cell":      func(c *Config) { c.CellSize = -1 },
		"history":   func(c *Config) { c.HistoryCap = 0 },
		"cooldown":  func(c *Config) { c.Cooldown = -time.Second },
		"zoom":      func(c *Config) { c.ZoomMax = c.ZoomMin / 2 },
		"zoom-step": func(c *Config) { c.ZoomStep = 1 },
		"poll":      func(c *Config) { c.PollInterval = 0 },
		"store":     func(c *Config) { c.StorePath = "" },
		"window":    func(c *Config) { c.WindowWidth = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	headless := Default()
	headless.Headless = true
	headless.WindowWidth = 0
	assert.NoError(t, headless.Validate(), "window size is irrelevant headless")
}
