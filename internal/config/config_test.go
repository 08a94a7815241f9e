package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	in := `
network:
  transport: quic
  server_addr: "game.example.com:7777"
engine:
  snap_threshold: 8.0
  disappearance_timeout: 30s
log:
  level: debug
`
	cfg, err := Load(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, "quic", cfg.Network.Transport)
	assert.Equal(t, "game.example.com:7777", cfg.Network.ServerAddr)
	assert.Equal(t, 8.0, cfg.Engine.SnapThreshold)
	assert.Equal(t, 30*time.Second, cfg.Engine.DisappearanceTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched fields keep their defaults.
	assert.Equal(t, 20.0, cfg.Engine.MaxLocalSpeed)
	assert.Equal(t, 100*time.Millisecond, cfg.Engine.SendInterval)
}

func TestLoadEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown transport", func(c *Config) { c.Network.Transport = "carrier-pigeon" }},
		{"empty addr", func(c *Config) { c.Network.ServerAddr = "" }},
		{"degenerate bounds", func(c *Config) { c.Engine.WorldBounds.MaxX = c.Engine.WorldBounds.MinX }},
		{"zero snap", func(c *Config) { c.Engine.SnapThreshold = 0 }},
		{"epsilon above snap", func(c *Config) { c.Engine.Epsilon = 100 }},
		{"no tiers", func(c *Config) { c.Engine.InterpTiers = nil }},
		{"unsorted tiers", func(c *Config) { c.Engine.InterpTiers[0].Distance = 0.1 }},
		{"alpha above one", func(c *Config) { c.Engine.InterpTiers[0].Alpha = 1.5 }},
		{"non-positive tier distance", func(c *Config) { c.Engine.InterpTiers[2].Distance = 0 }},
		{"short history", func(c *Config) { c.Engine.HistoryLength = 1 }},
		{"zero send interval", func(c *Config) { c.Engine.SendInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
