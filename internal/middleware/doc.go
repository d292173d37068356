// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

// Package middleware provides HTTP middleware shared by all routes:
// request ID propagation for tracing and Prometheus instrumentation.
// CORS and rate limiting come from go-chi/cors and go-chi/httprate and
// are wired in the api package.
package middleware
