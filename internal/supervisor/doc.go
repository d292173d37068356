// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

// Package supervisor builds the suture supervision tree that keeps the
// HTTP server running. Supervisor events are logged through zerolog via
// an slog bridge.
package supervisor
