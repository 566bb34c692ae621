// SPDX-License-Identifier: MIT

// Package api serves the HTTP control surface: the three login flows,
// session introspection, and inventory retrieval.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/steamvault/steamvault/internal/auth"
	"github.com/steamvault/steamvault/internal/config"
	"github.com/steamvault/steamvault/internal/inventory"
	xvlog "github.com/steamvault/steamvault/internal/log"
)

// Server wires the auth coordinator and the inventory pipeline into an HTTP
// handler and owns the listener lifecycle.
type Server struct {
	cfg   config.Config
	coord *auth.Coordinator
	inv   *inventory.Client
	log   zerolog.Logger
}

// New builds a Server around an already-constructed coordinator and
// inventory client.
func New(cfg config.Config, coord *auth.Coordinator, inv *inventory.Client) *Server {
	return &Server{
		cfg:   cfg,
		coord: coord,
		inv:   inv,
		log:   xvlog.WithComponent("api"),
	}
}

// Handler assembles the full route tree with the canonical middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(requestMetrics)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.cfg.APIToken != "" {
			r.Use(requireToken(s.cfg.APIToken))
		}

		r.Group(func(r chi.Router) {
			r.Use(loginRateLimit(s.cfg.LoginRateLimit, s.cfg.LoginRateWin))
			r.Post("/login/credentials", s.handleLoginCredentials)
			r.Post("/login/token", s.handleLoginToken)
			r.Post("/login/twofactor", s.handleTwoFactor)
			r.Get("/login/qr", s.handleQrChallenge)
			r.Post("/login/qr", s.handleQrLogin)
		})

		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleSession)
		r.Get("/inventory", s.handleInventory)
	})

	return r
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.ListenAddr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.log.Info().Msg("http server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
