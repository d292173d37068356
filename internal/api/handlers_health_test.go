// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/pypitrends/internal/models"
)

func TestHealth(t *testing.T) {
	fx := newFixture(testConfig(), staticRows(nil))

	rec := doGET(t, fx.router, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp models.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Timestamp.IsZero() {
		t.Error("timestamp missing")
	}
}

func TestHealthDebugExposesNoSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.BigQuery.ServiceAccountKey = `{"client_email":"svc@secret","private_key":"SUPER-SECRET-PEM"}`
	fx := newFixture(cfg, staticRows(nil))

	rec := doGET(t, fx.router, "/api/health/debug")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "SUPER-SECRET-PEM") || strings.Contains(body, "svc@secret") {
		t.Fatalf("debug endpoint leaked credential material: %s", body)
	}

	var resp struct {
		Config struct {
			HasProjectID bool `json:"has_project_id"`
			HasKey       bool `json:"has_service_account_key"`
			KeyLen       int  `json:"service_account_key_len"`
		} `json:"config"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !resp.Config.HasProjectID || !resp.Config.HasKey {
		t.Errorf("config presence flags wrong: %+v", resp.Config)
	}
	if resp.Config.KeyLen != len(cfg.BigQuery.ServiceAccountKey) {
		t.Errorf("key length = %d, want %d", resp.Config.KeyLen, len(cfg.BigQuery.ServiceAccountKey))
	}
}
