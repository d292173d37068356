// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pypitrends/internal/bigquery"
	"github.com/tomtom215/pypitrends/internal/models"
)

func doGET(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeTimeSeries(t *testing.T, rec *httptest.ResponseRecorder) models.TimeSeriesResponse {
	t.Helper()
	var resp models.TimeSeriesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v\nbody: %s", err, rec.Body.String())
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error response: %v\nbody: %s", err, rec.Body.String())
	}
	return resp
}

// dayRows builds n consecutive daily buckets starting at 2026-08-01.
func dayRows(n int) [][]string {
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = []string{
			fmt.Sprintf("2026-08-%02d", i+1),
			fmt.Sprintf("%d", (i+1)*100),
		}
	}
	return rows
}

func TestTimeSeriesEndToEnd(t *testing.T) {
	fx := newFixture(testConfig(), staticRows(dayRows(30)))

	rec := doGET(t, fx.router, "/api/downloads/requests/timeseries?period=1month&exclude_ci_cd=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	sql := fx.client.LastSQL()
	for _, want := range []string{
		"DATE_TRUNC(DATE(timestamp), DAY)",
		"file.project = 'requests'",
		"details.installer.name = 'pip'",
		"DATE(timestamp) >= DATE_TRUNC(CURRENT_DATE(), MONTH)",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("executed SQL missing %q:\n%s", want, sql)
		}
	}

	resp := decodeTimeSeries(t, rec)
	if resp.Package != "requests" || resp.Period != "1month" || !resp.ExcludeCICD {
		t.Errorf("unexpected envelope: %+v", resp)
	}
	if resp.Cached {
		t.Error("first response must not be cached")
	}
	if len(resp.Data) != 30 {
		t.Fatalf("expected 30 points, got %d", len(resp.Data))
	}
	for i := 1; i < len(resp.Data); i++ {
		if resp.Data[i].Date <= resp.Data[i-1].Date {
			t.Errorf("points not ascending at %d: %s then %s", i, resp.Data[i-1].Date, resp.Data[i].Date)
		}
	}

	// total is recomputed from the points
	var sum int64
	for _, p := range resp.Data {
		sum += p.Downloads
	}
	if resp.TotalDownloads != sum {
		t.Errorf("total %d does not equal point sum %d", resp.TotalDownloads, sum)
	}
	if sum != 46500 {
		t.Errorf("point sum = %d, want 46500", sum)
	}
}

func TestTimeSeriesServedFromCache(t *testing.T) {
	fx := newFixture(testConfig(), staticRows(dayRows(5)))

	first := doGET(t, fx.router, "/api/downloads/requests/timeseries?period=1month")
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	waitForCacheKeys(t, fx.cache, 1)

	second := doGET(t, fx.router, "/api/downloads/requests/timeseries?period=1month")
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d", second.Code)
	}

	if got := fx.client.calls.Load(); got != 1 {
		t.Errorf("expected a single backend query, got %d", got)
	}

	firstResp := decodeTimeSeries(t, first)
	secondResp := decodeTimeSeries(t, second)

	if !secondResp.Cached {
		t.Error("second response should be marked cached")
	}
	secondResp.Cached = firstResp.Cached
	firstJSON, _ := json.Marshal(firstResp)
	secondJSON, _ := json.Marshal(secondResp)
	if string(firstJSON) != string(secondJSON) {
		t.Errorf("cached response diverged:\nfirst:  %s\nsecond: %s", firstJSON, secondJSON)
	}
}

func TestInvalidPeriodRejectedBeforeUpstream(t *testing.T) {
	fx := newFixture(testConfig(), staticRows(nil))

	rec := doGET(t, fx.router, "/api/downloads/requests/timeseries?period=decade")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error != "Invalid period" {
		t.Errorf("error = %q", resp.Error)
	}
	if len(resp.ValidPeriods) != len(bigquery.ValidPeriods()) {
		t.Errorf("validPeriods has %d entries, want %d", len(resp.ValidPeriods), len(bigquery.ValidPeriods()))
	}

	if fx.tokens.calls.Load() != 0 {
		t.Error("validation failure must not trigger a token exchange")
	}
	if fx.client.calls.Load() != 0 {
		t.Error("validation failure must not trigger a backend query")
	}
}

func TestInvalidPackageRejected(t *testing.T) {
	fx := newFixture(testConfig(), staticRows(nil))

	for _, pkg := range []string{"-leading", "trailing-", "has%20space", "a%27quote"} {
		rec := doGET(t, fx.router, "/api/downloads/"+pkg+"/timeseries")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("package %q: status = %d, want 400", pkg, rec.Code)
		}
	}
	if fx.client.calls.Load() != 0 {
		t.Error("no backend queries expected")
	}
}

func TestMissingConfigReturns500WithoutSigning(t *testing.T) {
	cfg := testConfig()
	cfg.BigQuery.ProjectID = ""
	cfg.BigQuery.ServiceAccountKey = ""
	fx := newFixture(cfg, staticRows(nil))

	rec := doGET(t, fx.router, "/api/downloads/requests/timeseries")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error != "BigQuery credentials not configured" {
		t.Errorf("error = %q", resp.Error)
	}
	if fx.tokens.calls.Load() != 0 {
		t.Error("no token exchange may be attempted without credentials")
	}
}

func TestCacheBypassSeesFreshData(t *testing.T) {
	var generation atomic.Int64
	fx := newFixture(testConfig(), func() ([][]string, error) {
		n := generation.Add(1)
		return [][]string{{"2026-08-01", fmt.Sprintf("%d", n*1000)}}, nil
	})

	first := doGET(t, fx.router, "/api/downloads/requests/timeseries?period=1month&_t=1")
	second := doGET(t, fx.router, "/api/downloads/requests/timeseries?period=1month&_t=2")

	firstResp := decodeTimeSeries(t, first)
	secondResp := decodeTimeSeries(t, second)

	if firstResp.Cached || secondResp.Cached {
		t.Error("bypass requests must not be served from cache")
	}
	if firstResp.TotalDownloads == secondResp.TotalDownloads {
		t.Errorf("bypass requests returned identical totals %d", firstResp.TotalDownloads)
	}
	if fx.client.calls.Load() != 2 {
		t.Errorf("expected 2 backend queries, got %d", fx.client.calls.Load())
	}
}

func TestExcludeCICDParsing(t *testing.T) {
	cases := []struct {
		query      string
		wantFilter bool
	}{
		{"", true},
		{"&exclude_ci_cd=true", true},
		{"&exclude_ci_cd=1", true},
		{"&exclude_ci_cd=off", true},
		{"&exclude_ci_cd=False", true},
		{"&exclude_ci_cd=false", false},
	}
	for _, tc := range cases {
		fx := newFixture(testConfig(), staticRows(nil))
		rec := doGET(t, fx.router, "/api/downloads/requests/timeseries?period=1month&_t=1"+tc.query)
		if rec.Code != http.StatusOK {
			t.Fatalf("query %q: status = %d", tc.query, rec.Code)
		}
		hasFilter := strings.Contains(fx.client.LastSQL(), "details.installer.name = 'pip'")
		if hasFilter != tc.wantFilter {
			t.Errorf("query %q: noise filter present = %v, want %v", tc.query, hasFilter, tc.wantFilter)
		}
		resp := decodeTimeSeries(t, rec)
		if resp.ExcludeCICD != tc.wantFilter {
			t.Errorf("query %q: exclude_ci_cd echoed as %v", tc.query, resp.ExcludeCICD)
		}
	}
}

func TestPeriodDefaultsAndAliases(t *testing.T) {
	fx := newFixture(testConfig(), staticRows(dayRows(1)))

	rec := doGET(t, fx.router, "/api/downloads/requests/timeseries?_t=1")
	if resp := decodeTimeSeries(t, rec); resp.Period != "1year" {
		t.Errorf("timeseries default period = %q, want 1year", resp.Period)
	}

	rec = doGET(t, fx.router, "/api/downloads/requests/timeseries?period=2y&_t=1")
	if resp := decodeTimeSeries(t, rec); resp.Period != "2year" {
		t.Errorf("alias period echoed as %q, want 2year", resp.Period)
	}

	rec = doGET(t, fx.router, "/api/downloads/requests?_t=1")
	var agg models.DownloadsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &agg); err != nil {
		t.Fatalf("decoding aggregate: %v", err)
	}
	if agg.Period != "1month" {
		t.Errorf("aggregate default period = %q, want 1month", agg.Period)
	}
}

func TestAggregateEndpoint(t *testing.T) {
	fx := newFixture(testConfig(), staticRows([][]string{{"123456789"}}))

	rec := doGET(t, fx.router, "/api/downloads/numpy?period=1year")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if !strings.Contains(fx.client.LastSQL(), "SELECT COUNT(*) AS num_downloads") {
		t.Errorf("expected count query, got:\n%s", fx.client.LastSQL())
	}

	var resp models.DownloadsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Downloads != 123456789 {
		t.Errorf("downloads = %d", resp.Downloads)
	}
	if resp.Package != "numpy" || resp.Period != "1year" || resp.Cached {
		t.Errorf("unexpected envelope: %+v", resp)
	}
}

func TestAggregateMalformedCount(t *testing.T) {
	fx := newFixture(testConfig(), staticRows([][]string{{"not-a-number"}}))

	rec := doGET(t, fx.router, "/api/downloads/numpy?_t=1")
	var resp models.DownloadsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Downloads != 0 {
		t.Errorf("malformed count should shape to 0, got %d", resp.Downloads)
	}
}

func TestUpstreamFailureReturns500(t *testing.T) {
	fx := newFixture(testConfig(), func() ([][]string, error) {
		return nil, &bigquery.BackendError{Status: http.StatusForbidden, Body: "Access Denied"}
	})

	rec := doGET(t, fx.router, "/api/downloads/requests/timeseries?_t=1")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	resp := decodeError(t, rec)
	if resp.Error != "BigQuery query failed" {
		t.Errorf("error = %q", resp.Error)
	}
	if !strings.Contains(resp.Details, "Access Denied") {
		t.Errorf("details = %q", resp.Details)
	}
}

func TestTokenFailureReturns500(t *testing.T) {
	fx := newFixture(testConfig(), staticRows(nil))
	fx.tokens.err = &bigquery.CredentialError{Status: http.StatusUnauthorized, Body: "invalid_grant"}

	rec := doGET(t, fx.router, "/api/downloads/requests/timeseries?_t=1")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error != "Failed to authenticate with BigQuery" {
		t.Errorf("error = %q", resp.Error)
	}
	if fx.client.calls.Load() != 0 {
		t.Error("query must not run without a token")
	}
}

func TestEmptyResultShapesToEmptySeries(t *testing.T) {
	fx := newFixture(testConfig(), staticRows(nil))

	rec := doGET(t, fx.router, "/api/downloads/obscure-package/timeseries?_t=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeTimeSeries(t, rec)
	if len(resp.Data) != 0 || resp.TotalDownloads != 0 {
		t.Errorf("expected empty series, got %+v", resp)
	}
}
