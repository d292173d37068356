// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pypitrends/internal/logging"
	"github.com/tomtom215/pypitrends/internal/models"
)

// sanitizeLogValue replaces control characters so request-derived
// strings cannot forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends the uniform error envelope.
func respondError(w http.ResponseWriter, status int, message, details string) {
	respondJSON(w, status, &models.ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// respondPeriodError sends a period validation failure with the full
// accepted-token list so clients can self-correct.
func respondPeriodError(w http.ResponseWriter, raw string, validPeriods []string) {
	respondJSON(w, http.StatusBadRequest, &models.ErrorResponse{
		Error:        "Invalid period",
		Details:      fmt.Sprintf("period %q is not supported", raw),
		ValidPeriods: validPeriods,
	})
}

// truncateDetails caps upstream error text embedded in responses.
func truncateDetails(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
