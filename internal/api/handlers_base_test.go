// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

// Package api tests exercise the handlers through the full router so
// routing, middleware, and parameter extraction are covered together.
// Upstream collaborators are replaced with counting fakes; no test
// talks to the network.
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/pypitrends/internal/bigquery"
	"github.com/tomtom215/pypitrends/internal/cache"
	"github.com/tomtom215/pypitrends/internal/config"
)

// fakeTokenProvider counts exchanges and returns a static token.
type fakeTokenProvider struct {
	calls atomic.Int64
	err   error
}

func (f *fakeTokenProvider) Token(ctx context.Context, keyJSON string) (bigquery.Token, error) {
	f.calls.Add(1)
	if f.err != nil {
		return bigquery.Token{}, f.err
	}
	return bigquery.Token{Value: "test-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// fakeExecutor counts queries and records the last SQL it saw.
type fakeExecutor struct {
	calls atomic.Int64

	mu          sync.Mutex
	lastSQL     string
	lastProject string
	lastToken   bigquery.Token

	respond func() ([][]string, error)
}

func (f *fakeExecutor) Query(ctx context.Context, projectID, sql string, token bigquery.Token) ([][]string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastSQL = sql
	f.lastProject = projectID
	f.lastToken = token
	f.mu.Unlock()
	return f.respond()
}

func (f *fakeExecutor) LastSQL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSQL
}

func staticRows(rows [][]string) func() ([][]string, error) {
	return func() ([][]string, error) { return rows, nil }
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Environment = "test"
	cfg.BigQuery.ProjectID = "test-project"
	cfg.BigQuery.ServiceAccountKey = `{"client_email":"svc@test","private_key":"pem"}`
	cfg.BigQuery.Endpoint = "https://bigquery.invalid"
	cfg.BigQuery.TokenURL = "https://oauth2.invalid/token"
	cfg.BigQuery.Timeout = 5 * time.Second
	return cfg
}

// testFixture wires a handler behind the real router with fakes.
type testFixture struct {
	router http.Handler
	tokens *fakeTokenProvider
	client *fakeExecutor
	cache  *cache.Cache
	cfg    *config.Config
}

func newFixture(cfg *config.Config, respond func() ([][]string, error)) *testFixture {
	tokens := &fakeTokenProvider{}
	client := &fakeExecutor{respond: respond}
	c := cache.New(time.Hour)

	handler := NewHandler(cfg, c, tokens, client)

	mwConfig := DefaultChiMiddlewareConfig()
	mwConfig.RateLimitDisabled = true

	return &testFixture{
		router: NewRouter(handler, mwConfig).SetupChi(),
		tokens: tokens,
		client: client,
		cache:  c,
		cfg:    cfg,
	}
}

// waitForCacheKeys blocks until the cache holds at least n entries,
// covering the asynchronous write-behind after a response is sent.
func waitForCacheKeys(t *testing.T, c *cache.Cache, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.GetStats().TotalKeys >= int64(n) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("cache never reached %d entries", n)
}
