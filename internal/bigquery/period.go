// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package bigquery

import "fmt"

// Period identifies a supported download-trends time window.
type Period string

const (
	Period1Month  Period = "1month"
	Period3Month  Period = "3month"
	Period6Month  Period = "6month"
	Period1Year   Period = "1year"
	Period2Year   Period = "2year"
	Period5Year   Period = "5year"
	PeriodAllTime Period = "all"
)

// Granularity is the bucket size of a time series.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// periodAliases maps accepted short forms to canonical periods.
var periodAliases = map[string]Period{
	"1m":      Period1Month,
	"3m":      Period3Month,
	"6m":      Period6Month,
	"1y":      Period1Year,
	"2y":      Period2Year,
	"5y":      Period5Year,
	"alltime": PeriodAllTime,
}

// canonicalPeriods is the set of canonical period names.
var canonicalPeriods = map[Period]bool{
	Period1Month:  true,
	Period3Month:  true,
	Period6Month:  true,
	Period1Year:   true,
	Period2Year:   true,
	Period5Year:   true,
	PeriodAllTime: true,
}

// ValidPeriods lists every accepted period token, canonical names first.
// The order is stable so error payloads are deterministic.
func ValidPeriods() []string {
	return []string{
		"1month", "3month", "6month", "1year", "2year", "5year", "all",
		"1m", "3m", "6m", "1y", "2y", "5y", "alltime",
	}
}

// ParsePeriod normalizes a raw period token to its canonical Period.
// Aliases resolve to their canonical form. Unknown tokens return an error.
func ParsePeriod(raw string) (Period, error) {
	if p, ok := periodAliases[raw]; ok {
		return p, nil
	}
	if canonicalPeriods[Period(raw)] {
		return Period(raw), nil
	}
	return "", fmt.Errorf("invalid period: %q", raw)
}

// windowSpec describes the query window for a canonical period.
type windowSpec struct {
	granularity Granularity
	// monthsBack is the number of whole months before the current month
	// at which the window starts. Ignored when unbounded is true.
	monthsBack int
	// days is the equivalent window length used by aggregate count queries.
	days int
	// unbounded windows have no lower date bound.
	unbounded bool
}

var windows = map[Period]windowSpec{
	Period1Month:  {granularity: GranularityDay, monthsBack: 0, days: 30},
	Period3Month:  {granularity: GranularityWeek, monthsBack: 2, days: 90},
	Period6Month:  {granularity: GranularityMonth, monthsBack: 5, days: 180},
	Period1Year:   {granularity: GranularityMonth, monthsBack: 11, days: 365},
	Period2Year:   {granularity: GranularityMonth, monthsBack: 23, days: 730},
	Period5Year:   {granularity: GranularityMonth, monthsBack: 59, days: 1825},
	PeriodAllTime: {granularity: GranularityYear, unbounded: true},
}

// window returns the window spec for p, falling back to the 1-month
// shape for unrecognized values. Callers validate periods at the API
// boundary; the fallback keeps query construction total.
func (p Period) window() windowSpec {
	if spec, ok := windows[p]; ok {
		return spec
	}
	return windows[Period1Month]
}

// TimeSeriesGranularity returns the bucket size used for p's time series.
func (p Period) TimeSeriesGranularity() Granularity {
	return p.window().granularity
}

// Unbounded reports whether p has no lower date bound.
func (p Period) Unbounded() bool {
	return p.window().unbounded
}
