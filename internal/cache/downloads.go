// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package cache

import (
	"fmt"
	"time"
)

// Download responses are cached per calendar day: the key embeds the local
// date and the TTL runs out at local midnight, so entries roll over without
// any explicit invalidation. Key and TTL must use the same clock for that to
// hold, which is why both take the time as a parameter and both use local time.

// DownloadsKey derives the cache key for an aggregate downloads response.
// Identical arguments within the same calendar day yield an identical key;
// the next day yields a different one.
func DownloadsKey(pkg, period string, excludeCICD bool, now time.Time) string {
	return fmt.Sprintf("pypi-downloads:%s:%s_%s:%s", pkg, period, ciSuffix(excludeCICD), now.Format("2006-01-02"))
}

// TimeSeriesKey derives the cache key for a time-series response.
// Kept distinct from DownloadsKey so the two endpoint shapes never collide.
func TimeSeriesKey(pkg, period string, excludeCICD bool, now time.Time) string {
	return fmt.Sprintf("pypi-downloads:%s_timeseries:%s_%s:%s", pkg, period, ciSuffix(excludeCICD), now.Format("2006-01-02"))
}

// TTLUntilMidnight returns the non-negative duration from now until
// 23:59:59.999 of the same local day.
func TTLUntilMidnight(now time.Time) time.Duration {
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999_000_000, now.Location())
	ttl := endOfDay.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

func ciSuffix(excludeCICD bool) string {
	if excludeCICD {
		return "no_ci"
	}
	return "with_ci"
}
