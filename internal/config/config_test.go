// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8085", cfg.ListenAddr)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3*time.Second, cfg.PersonaTimeout)
	assert.Equal(t, 30*time.Second, cfg.QrFreshness)
	assert.Equal(t, 3, cfg.InventoryRetries)
	assert.Equal(t, time.Second, cfg.InventoryBackoff)
	assert.Equal(t, "https://steamcommunity.com", cfg.CommunityBaseURL)
	assert.False(t, cfg.Simulate)

	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STEAMVAULT_LISTEN", ":9000")
	t.Setenv("STEAMVAULT_PERSONA_TIMEOUT", "500ms")
	t.Setenv("STEAMVAULT_INVENTORY_RETRIES", "5")
	t.Setenv("STEAMVAULT_COMMUNITY_URL", "http://localhost:1234")
	t.Setenv("STEAMVAULT_SIMULATE", "yes")

	cfg := FromEnv()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.PersonaTimeout)
	assert.Equal(t, 5, cfg.InventoryRetries)
	assert.Equal(t, "http://localhost:1234", cfg.CommunityBaseURL)
	assert.True(t, cfg.Simulate)
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("STEAMVAULT_PERSONA_TIMEOUT", "not-a-duration")
	t.Setenv("STEAMVAULT_INVENTORY_RETRIES", "lots")
	t.Setenv("STEAMVAULT_SIMULATE", "maybe")

	cfg := FromEnv()

	assert.Equal(t, 3*time.Second, cfg.PersonaTimeout)
	assert.Equal(t, 3, cfg.InventoryRetries)
	assert.False(t, cfg.Simulate)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"empty listen", func(c *Config) { c.ListenAddr = "" }, false},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }, false},
		{"negative qr freshness", func(c *Config) { c.QrFreshness = -time.Second }, false},
		{"zero retries", func(c *Config) { c.InventoryRetries = 0 }, false},
		{"empty community URL", func(c *Config) { c.CommunityBaseURL = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
