// SPDX-License-Identifier: MIT

// Package config loads steamvault settings from the environment.
//
// All knobs are plain environment variables with the STEAMVAULT_ prefix so
// the daemon can run unchanged in containers and CI. Timeouts are design
// knobs, not hard constants; the defaults mirror the reference behavior.
package config

import (
	"fmt"
	"time"
)

// Config is an immutable snapshot of the daemon configuration.
type Config struct {
	// HTTP surface
	ListenAddr     string
	APIToken       string        // optional bearer token guarding the API; empty disables auth
	LoginRateLimit int           // requests per window per IP on login routes
	LoginRateWin   time.Duration // rate limit window

	// Auth coordinator
	ConnectTimeout time.Duration // wait for a Connected event
	LoginTimeout   time.Duration // overall wait for a terminal login event
	PersonaTimeout time.Duration // wait for a matching profile-info event
	QrFreshness    time.Duration // QR challenge validity window

	// Inventory pipeline
	CommunityBaseURL string
	InventoryRetries int           // tier-1 attempts
	InventoryBackoff time.Duration // backoff base; attempt n waits n*base
	RequestTimeout   time.Duration // per-request HTTP timeout
	RequestsPerSec   float64       // outbound throttle on community endpoints

	// Circuit breaker on the community host
	BreakerThreshold int
	BreakerReset     time.Duration

	Simulate bool // back the daemon with the in-process simulator
}

// FromEnv builds a Config from STEAMVAULT_* environment variables,
// using reference defaults for anything unset.
func FromEnv() Config {
	return Config{
		ListenAddr:     ParseString("STEAMVAULT_LISTEN", ":8085"),
		APIToken:       ParseString("STEAMVAULT_API_TOKEN", ""),
		LoginRateLimit: ParseInt("STEAMVAULT_LOGIN_RATE_LIMIT", 10),
		LoginRateWin:   ParseDuration("STEAMVAULT_LOGIN_RATE_WINDOW", time.Minute),

		ConnectTimeout: ParseDuration("STEAMVAULT_CONNECT_TIMEOUT", 10*time.Second),
		LoginTimeout:   ParseDuration("STEAMVAULT_LOGIN_TIMEOUT", 60*time.Second),
		PersonaTimeout: ParseDuration("STEAMVAULT_PERSONA_TIMEOUT", 3*time.Second),
		QrFreshness:    ParseDuration("STEAMVAULT_QR_FRESHNESS", 30*time.Second),

		CommunityBaseURL: ParseString("STEAMVAULT_COMMUNITY_URL", "https://steamcommunity.com"),
		InventoryRetries: ParseInt("STEAMVAULT_INVENTORY_RETRIES", 3),
		InventoryBackoff: ParseDuration("STEAMVAULT_INVENTORY_BACKOFF", time.Second),
		RequestTimeout:   ParseDuration("STEAMVAULT_REQUEST_TIMEOUT", 30*time.Second),
		RequestsPerSec:   float64(ParseInt("STEAMVAULT_REQUESTS_PER_SEC", 5)),

		BreakerThreshold: ParseInt("STEAMVAULT_BREAKER_THRESHOLD", 5),
		BreakerReset:     ParseDuration("STEAMVAULT_BREAKER_RESET", 30*time.Second),

		Simulate: ParseBool("STEAMVAULT_SIMULATE", false),
	}
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.ConnectTimeout <= 0 || c.LoginTimeout <= 0 || c.PersonaTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.QrFreshness <= 0 {
		return fmt.Errorf("qr freshness window must be positive")
	}
	if c.InventoryRetries < 1 {
		return fmt.Errorf("inventory retries must be at least 1, got %d", c.InventoryRetries)
	}
	if c.CommunityBaseURL == "" {
		return fmt.Errorf("community base URL must not be empty")
	}
	return nil
}
