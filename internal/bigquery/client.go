// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package bigquery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pypitrends/internal/logging"
	"github.com/tomtom215/pypitrends/internal/metrics"
)

// maxQueryResults bounds the rows fetched per query. The widest
// supported time series (an all-time yearly series) needs well under
// a hundred rows, so this never truncates a legitimate result.
const maxQueryResults = 10000

// BackendError reports a non-2xx response from the BigQuery REST API.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("bigquery returned %d: %s", e.Status, e.Body)
}

// queryRequest is the jobs.query request payload.
type queryRequest struct {
	Query        string `json:"query"`
	UseLegacySQL bool   `json:"useLegacySql"`
	MaxResults   int    `json:"maxResults"`
}

// queryResponse is the subset of the jobs.query response we consume.
// Cell values arrive positionally under rows[].f[].v.
type queryResponse struct {
	Rows []struct {
		F []struct {
			V string `json:"v"`
		} `json:"f"`
	} `json:"rows"`
	JobComplete bool   `json:"jobComplete"`
	TotalRows   string `json:"totalRows"`
}

// Client executes analytic queries against the BigQuery REST API.
// All calls share one circuit breaker so a failing upstream sheds load
// quickly instead of stacking timed-out requests. Safe for concurrent
// use.
type Client struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[[][]string]
}

// NewClient creates a BigQuery REST client for the given base endpoint.
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 30 second timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewClient(endpoint string, timeout time.Duration) *Client {
	cbName := "bigquery-api"
	metrics.SetCircuitBreakerState(cbName, 0) // 0 = closed

	breaker := gobreaker.NewCircuitBreaker[[][]string](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] BigQuery state transition")
			metrics.SetCircuitBreakerState(name, stateToFloat(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name)
			}
		},
	})

	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
	}
}

// Query runs sql under the given project and returns the result rows
// as positional string cells, in upstream order.
func (c *Client) Query(ctx context.Context, projectID, sql string, token Token) ([][]string, error) {
	return c.breaker.Execute(func() ([][]string, error) {
		return c.query(ctx, projectID, sql, token)
	})
}

// BreakerOpen reports whether err is a circuit breaker rejection.
func BreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (c *Client) query(ctx context.Context, projectID, sql string, token Token) ([][]string, error) {
	payload, err := json.Marshal(queryRequest{
		Query:        sql,
		UseLegacySQL: false,
		MaxResults:   maxQueryResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding query request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bigquery/v2/projects/%s/queries", c.endpoint, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building query request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &BackendError{Status: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading query response: %w", err)
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("decoding query response: %w", err)
	}

	rows := make([][]string, len(qr.Rows))
	for i, row := range qr.Rows {
		cells := make([]string, len(row.F))
		for j, cell := range row.F {
			cells[j] = cell.V
		}
		rows[i] = cells
	}
	return rows, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
