// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package bigquery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/pypitrends/internal/logging"
	"github.com/tomtom215/pypitrends/internal/metrics"
)

const (
	// bigqueryReadScope is the narrowest scope that permits jobs.query.
	bigqueryReadScope = "https://www.googleapis.com/auth/bigquery.readonly"

	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// assertionLifetime is the validity window claimed in the signed JWT.
	assertionLifetime = time.Hour

	// refreshMargin forces a refresh slightly before expiry so a token
	// never goes stale mid-query.
	refreshMargin = 60 * time.Second

	// maxErrorBody caps how much of an upstream error response is
	// retained for logs and error messages.
	maxErrorBody = 64 * 1024
)

// serviceAccountKey is the subset of a Google service account JSON key
// needed for the JWT-bearer grant.
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	ProjectID   string `json:"project_id"`
}

// Token is a bearer access token with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token is usable at the given instant,
// honoring the refresh margin.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Add(refreshMargin).Before(t.ExpiresAt)
}

// CredentialError reports a failure to obtain an access token. It
// distinguishes malformed local credentials (Status == 0) from
// rejections by the token endpoint.
type CredentialError struct {
	Status int
	Body   string
	Reason string
}

func (e *CredentialError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("credential error: %s", e.Reason)
	}
	return fmt.Sprintf("token endpoint returned %d: %s", e.Status, e.Body)
}

// tokenResponse is the token endpoint's success payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenSource exchanges a service account key for BigQuery-scoped
// access tokens via the OAuth 2.0 JWT-bearer grant. Tokens are cached
// per credential fingerprint and refreshed shortly before expiry.
// Safe for concurrent use.
type TokenSource struct {
	tokenURL string
	client   *http.Client

	mu     sync.Mutex
	tokens map[string]Token

	// now is replaceable in tests
	now func() time.Time
}

// NewTokenSource creates a token source for the given endpoint.
func NewTokenSource(tokenURL string, timeout time.Duration) *TokenSource {
	return &TokenSource{
		tokenURL: tokenURL,
		client:   &http.Client{Timeout: timeout},
		tokens:   make(map[string]Token),
		now:      time.Now,
	}
}

// Token returns a valid access token for the given service account key
// JSON, fetching a fresh one if no cached token remains valid.
func (s *TokenSource) Token(ctx context.Context, keyJSON string) (Token, error) {
	fp := fingerprint(keyJSON)

	s.mu.Lock()
	if tok, ok := s.tokens[fp]; ok && tok.Valid(s.now()) {
		s.mu.Unlock()
		return tok, nil
	}
	s.mu.Unlock()

	tok, err := s.fetch(ctx, keyJSON)
	if err != nil {
		metrics.RecordTokenRefresh(false)
		return Token{}, err
	}
	metrics.RecordTokenRefresh(true)

	s.mu.Lock()
	s.tokens[fp] = tok
	s.mu.Unlock()

	logging.Debug().
		Time("expires_at", tok.ExpiresAt).
		Msg("Refreshed BigQuery access token")
	return tok, nil
}

// ProjectID extracts the project id from a service account key JSON.
func ProjectID(keyJSON string) (string, error) {
	key, err := parseKey(keyJSON)
	if err != nil {
		return "", err
	}
	if key.ProjectID == "" {
		return "", &CredentialError{Reason: "service account key missing project_id"}
	}
	return key.ProjectID, nil
}

func (s *TokenSource) fetch(ctx context.Context, keyJSON string) (Token, error) {
	key, err := parseKey(keyJSON)
	if err != nil {
		return Token{}, err
	}

	assertion, err := s.signAssertion(key)
	if err != nil {
		return Token{}, err
	}

	form := url.Values{
		"grant_type": {jwtBearerGrantType},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return Token{}, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, &CredentialError{Status: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, &CredentialError{Reason: "token endpoint returned no access_token"}
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int64(assertionLifetime / time.Second)
	}

	return Token{
		Value:     tr.AccessToken,
		ExpiresAt: s.now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

// signAssertion builds and signs the RS256 JWT presented to the token
// endpoint. The audience is the token endpoint itself.
func (s *TokenSource) signAssertion(key *serviceAccountKey) (string, error) {
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return "", &CredentialError{Reason: fmt.Sprintf("parsing private key: %v", err)}
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":   key.ClientEmail,
		"scope": bigqueryReadScope,
		"aud":   s.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privKey)
	if err != nil {
		return "", &CredentialError{Reason: fmt.Sprintf("signing assertion: %v", err)}
	}
	return signed, nil
}

func parseKey(keyJSON string) (*serviceAccountKey, error) {
	var key serviceAccountKey
	if err := json.Unmarshal([]byte(keyJSON), &key); err != nil {
		return nil, &CredentialError{Reason: fmt.Sprintf("parsing service account key: %v", err)}
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, &CredentialError{Reason: "service account key missing client_email or private_key"}
	}
	return &key, nil
}

// fingerprint derives a stable cache key from the credential material
// without retaining the material itself.
func fingerprint(keyJSON string) string {
	sum := sha256.Sum256([]byte(keyJSON))
	return hex.EncodeToString(sum[:])
}
