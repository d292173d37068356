// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

// Package models defines the JSON types served by the downloads API.
// Field names match the wire format the dashboard already consumes.
package models

import "time"

// TimeSeriesPoint is one bucket of the download time series.
// Date is an ISO date string truncated to the bucket granularity
// (day, week start, month start, or year start).
type TimeSeriesPoint struct {
	Date      string `json:"date"`
	Downloads int64  `json:"downloads"`
}

// TimeSeriesResponse is the payload of GET /api/downloads/{package}/timeseries.
//
// TotalDownloads is always recomputed as the sum of Data[].Downloads rather
// than trusted from the backend, so it stays consistent if points are ever
// resampled downstream.
type TimeSeriesResponse struct {
	Package        string            `json:"package"`
	Period         string            `json:"period"`
	ExcludeCICD    bool              `json:"exclude_ci_cd"`
	Data           []TimeSeriesPoint `json:"data"`
	TotalDownloads int64             `json:"total_downloads"`
	QueryTime      time.Time         `json:"query_time"`
	Cached         bool              `json:"cached"`
}

// DownloadsResponse is the payload of GET /api/downloads/{package},
// the aggregate-count endpoint.
type DownloadsResponse struct {
	Package     string    `json:"package"`
	Period      string    `json:"period"`
	Downloads   int64     `json:"downloads"`
	ExcludeCICD bool      `json:"exclude_ci_cd"`
	QueryTime   time.Time `json:"query_time"`
	Cached      bool      `json:"cached"`
}

// ErrorResponse is the uniform error envelope for all endpoints.
// ValidPeriods is populated only for period validation failures.
type ErrorResponse struct {
	Error        string   `json:"error"`
	Details      string   `json:"details,omitempty"`
	ValidPeriods []string `json:"validPeriods,omitempty"`
}

// HealthResponse is the payload of GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Sum returns the total downloads across the given points.
func Sum(points []TimeSeriesPoint) int64 {
	var total int64
	for _, p := range points {
		total += p.Downloads
	}
	return total
}
