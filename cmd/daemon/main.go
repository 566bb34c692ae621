// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/steamvault/steamvault/internal/api"
	"github.com/steamvault/steamvault/internal/auth"
	"github.com/steamvault/steamvault/internal/config"
	"github.com/steamvault/steamvault/internal/inventory"
	xvlog "github.com/steamvault/steamvault/internal/log"
	"github.com/steamvault/steamvault/internal/resilience"
	"github.com/steamvault/steamvault/internal/steam"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	simulate := flag.Bool("simulate", false, "back the daemon with the in-process simulator")
	flag.Parse()

	if *showVersion {
		fmt.Printf("steamvault %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	xvlog.Configure(xvlog.Config{
		Level:   config.ParseString("STEAMVAULT_LOG_LEVEL", "info"),
		Service: "steamvault",
	})
	logger := xvlog.WithComponent("daemon")

	cfg := config.FromEnv()
	if *simulate {
		cfg.Simulate = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The connection adapter is pluggable; this build links only the
	// development simulator. Running against the live service requires a
	// steam.Client implementation backed by a real connection library.
	if !cfg.Simulate {
		logger.Fatal().
			Msg("no live connection adapter is linked in this build; start with --simulate or STEAMVAULT_SIMULATE=true")
	}
	client := steam.NewSimClient(steam.SteamID(config.ParseInt("STEAMVAULT_SIM_STEAM_ID", 76561198000000001)))
	client.SetProfile(config.ParseString("STEAMVAULT_SIM_PERSONA", "Simulated User"), 0)
	logger.Warn().Msg("running against the in-process simulator, not the live service")

	coord := auth.New(client, cfg)
	defer coord.Close()

	inv := inventory.New(cfg.CommunityBaseURL,
		inventory.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		inventory.WithRetries(cfg.InventoryRetries),
		inventory.WithBackoff(cfg.InventoryBackoff),
		inventory.WithRateLimit(cfg.RequestsPerSec),
		inventory.WithBreaker(resilience.NewCircuitBreaker("inventory", cfg.BreakerThreshold, cfg.BreakerReset)),
	)

	srv := api.New(cfg, coord, inv)
	logger.Info().
		Str("version", version).
		Str("addr", cfg.ListenAddr).
		Msg("steamvault starting")

	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("steamvault exiting")
}
