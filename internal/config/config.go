// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Pypitrends server.
// It is populated by LoadWithKoanf from defaults, an optional YAML file,
// and environment variables (highest priority).
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	BigQuery BigQueryConfig `koanf:"bigquery"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP listen port.
	Port int `koanf:"port"`

	// Host is the HTTP listen address.
	Host string `koanf:"host"`

	// Timeout is the per-request read/write timeout.
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is "development" or "production".
	Environment string `koanf:"environment"`
}

// BigQueryConfig holds the Google Cloud settings needed to run download
// queries against the public PyPI dataset.
//
// ProjectID and ServiceAccountKey are deployment secrets with no defaults.
// Their absence is not a startup error: the server boots and serves health
// endpoints, and data endpoints return a configuration error until both are
// set. This mirrors the request-time config check the API performs.
type BigQueryConfig struct {
	// ProjectID is the Google Cloud project billed for queries.
	ProjectID string `koanf:"project_id"`

	// ServiceAccountKey is the service account key JSON blob
	// (client_email + private_key). Never logged.
	ServiceAccountKey string `koanf:"service_account_key"`

	// Endpoint is the BigQuery REST API base URL.
	// Overridable for testing against a fake backend.
	Endpoint string `koanf:"endpoint"`

	// TokenURL is the OAuth2 token exchange endpoint.
	TokenURL string `koanf:"token_url"`

	// Timeout bounds each outbound call (token exchange and query).
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds rate limiting and CORS settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Configured reports whether both required BigQuery settings are present.
func (c *BigQueryConfig) Configured() bool {
	return c.ProjectID != "" && c.ServiceAccountKey != ""
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures. Missing BigQuery credentials are deliberately
// not an error here; see BigQueryConfig.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.BigQuery.Timeout <= 0 {
		return fmt.Errorf("bigquery.timeout must be positive, got %s", c.BigQuery.Timeout)
	}
	if c.BigQuery.Endpoint == "" {
		return fmt.Errorf("bigquery.endpoint must not be empty")
	}
	if c.BigQuery.TokenURL == "" {
		return fmt.Errorf("bigquery.token_url must not be empty")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("security.rate_limit_reqs must be at least 1, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window must be positive, got %s", c.Security.RateLimitWindow)
		}
	}
	return nil
}
