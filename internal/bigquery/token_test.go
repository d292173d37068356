// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package bigquery

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// testCredentials generates a throwaway service account key pair.
func testCredentials(t *testing.T) (keyJSON string, pub *rsa.PublicKey) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshaling test key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	raw, err := json.Marshal(map[string]string{
		"client_email": "svc@test-project.iam.gserviceaccount.com",
		"private_key":  string(pemKey),
		"project_id":   "test-project",
	})
	if err != nil {
		t.Fatalf("marshaling key json: %v", err)
	}
	return string(raw), &priv.PublicKey
}

func tokenEndpoint(t *testing.T, calls *atomic.Int64, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenAssertionClaims(t *testing.T) {
	keyJSON, pub := testCredentials(t)

	var gotGrant, gotAssertion string
	srv := tokenEndpoint(t, nil, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		gotGrant = r.PostFormValue("grant_type")
		gotAssertion = r.PostFormValue("assertion")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","expires_in":3600,"token_type":"Bearer"}`))
	})

	src := NewTokenSource(srv.URL, 5*time.Second)
	tok, err := src.Token(context.Background(), keyJSON)
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if tok.Value != "tok-1" {
		t.Errorf("token value = %q, want tok-1", tok.Value)
	}

	if gotGrant != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
		t.Errorf("grant_type = %q", gotGrant)
	}

	parsed, err := jwt.Parse(gotAssertion, func(tk *jwt.Token) (interface{}, error) {
		if tk.Method.Alg() != "RS256" {
			t.Errorf("assertion alg = %s, want RS256", tk.Method.Alg())
		}
		return pub, nil
	})
	if err != nil {
		t.Fatalf("parsing assertion: %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("unexpected claims type")
	}
	if claims["iss"] != "svc@test-project.iam.gserviceaccount.com" {
		t.Errorf("iss = %v", claims["iss"])
	}
	if claims["scope"] != "https://www.googleapis.com/auth/bigquery.readonly" {
		t.Errorf("scope = %v", claims["scope"])
	}
	if claims["aud"] != srv.URL {
		t.Errorf("aud = %v, want %s", claims["aud"], srv.URL)
	}

	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	if exp-iat != 3600 {
		t.Errorf("assertion lifetime = %v seconds, want 3600", exp-iat)
	}
}

func TestTokenCachedUntilNearExpiry(t *testing.T) {
	keyJSON, _ := testCredentials(t)

	var calls atomic.Int64
	srv := tokenEndpoint(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-cached","expires_in":3600}`))
	})

	src := NewTokenSource(srv.URL, 5*time.Second)
	clock := time.Now()
	src.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if _, err := src.Token(context.Background(), keyJSON); err != nil {
			t.Fatalf("Token call %d: %v", i, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 upstream call while cached, got %d", got)
	}

	// Inside the refresh margin the cached token no longer qualifies.
	clock = clock.Add(3600*time.Second - 30*time.Second)
	if _, err := src.Token(context.Background(), keyJSON); err != nil {
		t.Fatalf("Token after expiry window: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected refresh near expiry, got %d upstream calls", got)
	}
}

func TestTokenDistinctCredentialsCachedSeparately(t *testing.T) {
	keyA, _ := testCredentials(t)
	keyB, _ := testCredentials(t)

	var calls atomic.Int64
	srv := tokenEndpoint(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
	})

	src := NewTokenSource(srv.URL, 5*time.Second)
	if _, err := src.Token(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Token(context.Background(), keyB); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Token(context.Background(), keyA); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected one fetch per credential, got %d", got)
	}
}

func TestTokenMalformedKey(t *testing.T) {
	src := NewTokenSource("http://unused.invalid", time.Second)

	cases := []string{
		"not json",
		`{"client_email":"a@b.c"}`,
		`{"client_email":"a@b.c","private_key":"not a pem"}`,
	}
	for _, keyJSON := range cases {
		_, err := src.Token(context.Background(), keyJSON)
		var credErr *CredentialError
		if !errors.As(err, &credErr) {
			t.Errorf("key %q: expected CredentialError, got %v", keyJSON, err)
			continue
		}
		if credErr.Status != 0 {
			t.Errorf("key %q: local failure should carry no status, got %d", keyJSON, credErr.Status)
		}
	}
}

func TestTokenEndpointRejection(t *testing.T) {
	keyJSON, _ := testCredentials(t)

	srv := tokenEndpoint(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	src := NewTokenSource(srv.URL, 5*time.Second)
	_, err := src.Token(context.Background(), keyJSON)

	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
	if credErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", credErr.Status)
	}
	if credErr.Body != `{"error":"invalid_grant"}` {
		t.Errorf("body = %q", credErr.Body)
	}
}

func TestProjectID(t *testing.T) {
	keyJSON, _ := testCredentials(t)

	id, err := ProjectID(keyJSON)
	if err != nil {
		t.Fatalf("ProjectID returned error: %v", err)
	}
	if id != "test-project" {
		t.Errorf("project id = %q", id)
	}

	if _, err := ProjectID(`{"client_email":"a@b.c","private_key":"x"}`); err == nil {
		t.Error("expected error for key without project_id")
	}
}
