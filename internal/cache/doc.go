// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

/*
Package cache provides the in-memory response cache for download queries.

Cache is a generic thread-safe TTL store. DownloadsKey, TimeSeriesKey and
TTLUntilMidnight implement the day-bucketed keying scheme the downloads API
uses: each response is cached under a key that embeds the local calendar day
and expires at local midnight, so a package's numbers are computed at most
once per day per (period, CI-filter) combination.

The cache is a pure optimization. Callers must never fail a request because
of a cache error; a failed read is a miss and a failed write is dropped.
*/
package cache
