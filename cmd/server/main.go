// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

// Package main is the entry point for the Pypitrends server.
//
// Pypitrends serves download trends for PyPI packages. Each request
// names a package and a time period; the server answers with either a
// bucketed time series or a single aggregate count, computed from the
// public PyPI download log in Google BigQuery and cached until local
// midnight.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and optional YAML file (Koanf v2)
//  2. Response cache: in-memory, day-bucketed keys
//  3. BigQuery access: OAuth token source and REST client with circuit breaker
//  4. HTTP server: Chi router under a suture supervision tree
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config.yaml, built-in defaults.
//
// Required for live queries (the server boots without them and reports
// a configuration error on data endpoints):
//   - GOOGLE_CLOUD_PROJECT_ID: project billed for BigQuery queries
//   - GOOGLE_CLOUD_KEY: service account key JSON with BigQuery read access
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections and waits for in-flight requests to
// complete (10s timeout). In-flight asynchronous cache writes may be
// abandoned; they only cost the next request a backend round trip.
//
// # Example Usage
//
//	export GOOGLE_CLOUD_PROJECT_ID=my-project
//	export GOOGLE_CLOUD_KEY="$(cat service-account.json)"
//	./pypitrends
//
// The default port 8787 matches the development port of the original
// deployment this service replaces.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/pypitrends/internal/api"
	"github.com/tomtom215/pypitrends/internal/bigquery"
	"github.com/tomtom215/pypitrends/internal/cache"
	"github.com/tomtom215/pypitrends/internal/config"
	"github.com/tomtom215/pypitrends/internal/logging"
	"github.com/tomtom215/pypitrends/internal/supervisor"
	"github.com/tomtom215/pypitrends/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Bool("bigquery_configured", cfg.BigQuery.Configured()).
		Msg("Starting Pypitrends")

	if !cfg.BigQuery.Configured() {
		logging.Warn().Msg("BigQuery credentials not configured; data endpoints will return configuration errors")
	}

	// Response cache. The default TTL is a fallback; download responses
	// carry explicit TTLs to local midnight.
	responseCache := cache.New(24 * time.Hour)

	tokens := bigquery.NewTokenSource(cfg.BigQuery.TokenURL, cfg.BigQuery.Timeout)
	client := bigquery.NewClient(cfg.BigQuery.Endpoint, cfg.BigQuery.Timeout)

	handler := api.NewHandler(cfg, responseCache, tokens, client)

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Security.RateLimitReqs
	mwConfig.RateLimitWindow = cfg.Security.RateLimitWindow
	mwConfig.RateLimitDisabled = cfg.Security.RateLimitDisabled

	router := api.NewRouter(handler, mwConfig)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
