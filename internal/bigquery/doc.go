// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

// Package bigquery builds and executes download-trends queries against
// the public PyPI download log in Google BigQuery.
//
// It has three concerns:
//
//   - Query construction: BuildTimeSeriesQuery and BuildCountQuery
//     translate a package name, a Period, and a noise filter flag into
//     GoogleSQL over bigquery-public-data.pypi.file_downloads.
//   - Credentials: TokenSource exchanges a service account key for a
//     read-only access token via the OAuth 2.0 JWT-bearer grant and
//     caches it until shortly before expiry.
//   - Execution: Client posts queries to the BigQuery REST jobs.query
//     endpoint behind a circuit breaker and returns positional rows.
//
// No Google SDK is involved; the two REST calls the service needs are
// small enough to speak directly.
package bigquery
