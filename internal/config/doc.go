// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

/*
Package config provides centralized configuration management for Pypitrends.

Configuration is loaded via Koanf v2 from layered sources, highest priority
last:

  - Built-in defaults
  - Optional YAML config file (config.yaml, or CONFIG_PATH)
  - Environment variables

# Environment Variables

Google Cloud / BigQuery (BigQueryConfig):
  - GOOGLE_CLOUD_PROJECT_ID: Project billed for BigQuery queries
  - GOOGLE_CLOUD_KEY: Service account key JSON (client_email + private_key)
  - BIGQUERY_ENDPOINT: BigQuery REST base URL (default: https://bigquery.googleapis.com)
  - BIGQUERY_TOKEN_URL: OAuth2 token endpoint (default: https://oauth2.googleapis.com/token)
  - BIGQUERY_TIMEOUT: Outbound call timeout (default: 30s)

HTTP Server (ServerConfig):
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 8787)
  - HTTP_TIMEOUT: Read/write timeout (default: 60s)
  - SHUTDOWN_TIMEOUT: Graceful shutdown limit (default: 10s)
  - ENVIRONMENT: development or production (default: development)

Security (SecurityConfig):
  - RATE_LIMIT_REQUESTS: Requests per window per IP (default: 100)
  - RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
  - DISABLE_RATE_LIMIT: Disable rate limiting (default: false)
  - CORS_ORIGINS: Comma-separated allowed origins (default: *)

Logging (LoggingConfig):
  - LOG_LEVEL: debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)
  - LOG_CALLER: Include caller info (default: false)

GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_KEY are intentionally optional at
startup. The server boots without them and the data endpoints report a
configuration error until both are present.
*/
package config
