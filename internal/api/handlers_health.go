// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package api

import (
	"net/http"

	"github.com/tomtom215/pypitrends/internal/models"
)

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.HealthResponse{
		Status:    "ok",
		Timestamp: h.now(),
	})
}

// HealthDebug handles GET /api/health/debug. It reports configuration
// presence and cache efficiency for operators. Secret values are never
// included, only their lengths.
func (h *Handler) HealthDebug(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.GetStats()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": h.now(),
		"config": map[string]interface{}{
			"has_project_id":          h.cfg.BigQuery.ProjectID != "",
			"has_service_account_key": h.cfg.BigQuery.ServiceAccountKey != "",
			"service_account_key_len": len(h.cfg.BigQuery.ServiceAccountKey),
			"bigquery_endpoint":       h.cfg.BigQuery.Endpoint,
			"environment":             h.cfg.Server.Environment,
		},
		"cache": map[string]interface{}{
			"keys":     stats.TotalKeys,
			"hits":     stats.Hits,
			"misses":   stats.Misses,
			"hit_rate": h.cache.HitRate(),
		},
	})
}
