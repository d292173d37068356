// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/pypitrends/internal/bigquery"
	"github.com/tomtom215/pypitrends/internal/cache"
	"github.com/tomtom215/pypitrends/internal/logging"
	"github.com/tomtom215/pypitrends/internal/metrics"
	"github.com/tomtom215/pypitrends/internal/models"
	"github.com/tomtom215/pypitrends/internal/validation"
)

const (
	// defaultTimeSeriesPeriod matches the dashboard's initial view.
	defaultTimeSeriesPeriod = "1year"

	// defaultAggregatePeriod keeps the bare endpoint cheap.
	defaultAggregatePeriod = "1month"

	// maxDetailLen caps upstream error text echoed to clients.
	maxDetailLen = 512
)

// packageRequest carries the path parameter through validation.
// PyPI caps project names at 214 characters.
type packageRequest struct {
	Package string `validate:"required,max=214,pypi_package"`
}

// requestParams is the validated, defaulted input common to both
// downloads endpoints.
type requestParams struct {
	pkg         string
	period      bigquery.Period
	excludeCICD bool
	bypassCache bool
}

// parseParams validates the package name and period and applies
// defaults. On failure it writes the error response and returns false.
func (h *Handler) parseParams(w http.ResponseWriter, r *http.Request, defaultPeriod string) (requestParams, bool) {
	pkg := chi.URLParam(r, "package")
	if err := validation.ValidateStruct(&packageRequest{Package: pkg}); err != nil {
		logging.Debug().Str("package", sanitizeLogValue(pkg)).Msg("Rejected package name")
		respondError(w, http.StatusBadRequest, "Invalid package name", err.Error())
		return requestParams{}, false
	}

	raw := r.URL.Query().Get("period")
	if raw == "" {
		raw = defaultPeriod
	}
	period, err := bigquery.ParsePeriod(raw)
	if err != nil {
		logging.Debug().Str("period", sanitizeLogValue(raw)).Msg("Rejected period")
		respondPeriodError(w, sanitizeLogValue(raw), bigquery.ValidPeriods())
		return requestParams{}, false
	}

	return requestParams{
		pkg:    pkg,
		period: period,
		// Any value other than the exact string "false" keeps the
		// noise filter on.
		excludeCICD: r.URL.Query().Get("exclude_ci_cd") != "false",
		// _t is the dashboard's cache-busting timestamp. It skips the
		// cache read only; the fresh result is still written back.
		bypassCache: r.URL.Query().Has("_t"),
	}, true
}

// TimeSeries handles GET /api/downloads/{package}/timeseries.
func (h *Handler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parseParams(w, r, defaultTimeSeriesPeriod)
	if !ok {
		return
	}

	key := cache.TimeSeriesKey(params.pkg, string(params.period), params.excludeCICD, h.now())
	if !params.bypassCache {
		if cached, ok := h.cache.Get(key); ok {
			if resp, ok := cached.(models.TimeSeriesResponse); ok {
				metrics.RecordCacheHit("timeseries")
				resp.Cached = true
				respondJSON(w, http.StatusOK, &resp)
				return
			}
		}
		metrics.RecordCacheMiss("timeseries")
	}

	token, projectID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.BigQuery.Timeout)
	defer cancel()

	sql := bigquery.BuildTimeSeriesQuery(params.pkg, params.period, params.excludeCICD)
	start := time.Now()
	rows, err := h.client.Query(ctx, projectID, sql, token)
	metrics.RecordBigQueryQuery("timeseries", len(rows), time.Since(start), err)
	if err != nil {
		logging.Error().Err(err).Str("package", params.pkg).Msg("Time series query failed")
		respondError(w, http.StatusInternalServerError, "BigQuery query failed",
			truncateDetails(err.Error(), maxDetailLen))
		return
	}

	points := shapePoints(rows)
	resp := models.TimeSeriesResponse{
		Package:        params.pkg,
		Period:         string(params.period),
		ExcludeCICD:    params.excludeCICD,
		Data:           points,
		TotalDownloads: models.Sum(points),
		QueryTime:      h.now(),
		Cached:         false,
	}

	go h.store(key, resp)
	respondJSON(w, http.StatusOK, &resp)
}

// Aggregate handles GET /api/downloads/{package}.
func (h *Handler) Aggregate(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parseParams(w, r, defaultAggregatePeriod)
	if !ok {
		return
	}

	key := cache.DownloadsKey(params.pkg, string(params.period), params.excludeCICD, h.now())
	if !params.bypassCache {
		if cached, ok := h.cache.Get(key); ok {
			if resp, ok := cached.(models.DownloadsResponse); ok {
				metrics.RecordCacheHit("downloads")
				resp.Cached = true
				respondJSON(w, http.StatusOK, &resp)
				return
			}
		}
		metrics.RecordCacheMiss("downloads")
	}

	token, projectID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.BigQuery.Timeout)
	defer cancel()

	sql := bigquery.BuildCountQuery(params.pkg, params.period, params.excludeCICD)
	start := time.Now()
	rows, err := h.client.Query(ctx, projectID, sql, token)
	metrics.RecordBigQueryQuery("downloads", len(rows), time.Since(start), err)
	if err != nil {
		logging.Error().Err(err).Str("package", params.pkg).Msg("Aggregate query failed")
		respondError(w, http.StatusInternalServerError, "BigQuery query failed",
			truncateDetails(err.Error(), maxDetailLen))
		return
	}

	var count int64
	if len(rows) > 0 && len(rows[0]) > 0 {
		count = parseCount(rows[0][0])
	}

	resp := models.DownloadsResponse{
		Package:     params.pkg,
		Period:      string(params.period),
		Downloads:   count,
		ExcludeCICD: params.excludeCICD,
		QueryTime:   h.now(),
		Cached:      false,
	}

	go h.store(key, resp)
	respondJSON(w, http.StatusOK, &resp)
}

// authorize checks credential configuration and obtains a bearer token.
// On failure it writes the error response and returns false.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (bigquery.Token, string, bool) {
	if !h.cfg.BigQuery.Configured() {
		respondError(w, http.StatusInternalServerError,
			"BigQuery credentials not configured",
			"set GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_KEY")
		return bigquery.Token{}, "", false
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.BigQuery.Timeout)
	defer cancel()

	token, err := h.tokens.Token(ctx, h.cfg.BigQuery.ServiceAccountKey)
	if err != nil {
		logging.Error().Err(err).Msg("Token exchange failed")
		respondError(w, http.StatusInternalServerError,
			"Failed to authenticate with BigQuery",
			truncateDetails(err.Error(), maxDetailLen))
		return bigquery.Token{}, "", false
	}

	return token, h.cfg.BigQuery.ProjectID, true
}

// store writes a response to the cache with the end-of-day TTL.
// Runs on its own goroutine; failures only cost the next request a
// backend round trip.
func (h *Handler) store(key string, value interface{}) {
	h.cache.SetWithTTL(key, value, cache.TTLUntilMidnight(h.now()))
	metrics.CacheKeys.Set(float64(h.cache.GetStats().TotalKeys))
}

// shapePoints converts positional result rows into time series points.
// Column 0 is the bucket date, column 1 the count. Rows the backend
// returns malformed keep their date with a zero count.
func shapePoints(rows [][]string) []models.TimeSeriesPoint {
	points := make([]models.TimeSeriesPoint, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		point := models.TimeSeriesPoint{Date: row[0]}
		if len(row) > 1 {
			point.Downloads = parseCount(row[1])
		}
		points = append(points, point)
	}
	return points
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
