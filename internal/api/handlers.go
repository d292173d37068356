// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package api

import (
	"context"
	"time"

	"github.com/tomtom215/pypitrends/internal/bigquery"
	"github.com/tomtom215/pypitrends/internal/cache"
	"github.com/tomtom215/pypitrends/internal/config"
)

// QueryExecutor runs an analytic query and returns positional rows.
// *bigquery.Client satisfies it; tests substitute counting fakes.
type QueryExecutor interface {
	Query(ctx context.Context, projectID, sql string, token bigquery.Token) ([][]string, error)
}

// TokenProvider exchanges credential JSON for a bearer token.
// *bigquery.TokenSource satisfies it.
type TokenProvider interface {
	Token(ctx context.Context, keyJSON string) (bigquery.Token, error)
}

// Handler serves the downloads API. All collaborators are injected so
// tests can swap the upstream pieces without network access.
type Handler struct {
	cfg    *config.Config
	cache  *cache.Cache
	tokens TokenProvider
	client QueryExecutor

	// now is replaceable in tests
	now func() time.Time
}

// NewHandler creates an API handler with the given collaborators.
func NewHandler(cfg *config.Config, c *cache.Cache, tokens TokenProvider, client QueryExecutor) *Handler {
	return &Handler{
		cfg:    cfg,
		cache:  c,
		tokens: tokens,
		client: client,
		now:    time.Now,
	}
}
