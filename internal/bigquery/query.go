// Pypitrends - PyPI Package Download Trends API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pypitrends

package bigquery

import (
	"fmt"
	"strings"
)

// factTable is the public PyPI download log maintained by the PyPI team.
const factTable = "`bigquery-public-data.pypi.file_downloads`"

// noiseFilter restricts counting to pip-driven installs. Mirrors and
// CI/CD systems typically fetch through other installers (bandersnatch,
// browser downloads, pip's own test infrastructure identifies itself
// differently), so this is a heuristic rather than a precise exclusion.
const noiseFilter = "details.installer.name = 'pip'"

// quoteLiteral escapes s for embedding in a single-quoted GoogleSQL
// string literal. Package names are validated upstream; this is a
// second line of defense for any caller that skips validation.
func quoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// BuildTimeSeriesQuery produces the bucketed time series query for one
// package over the given period. Bucket dates are formatted in the
// first output column, counts in the second.
func BuildTimeSeriesQuery(pkg string, period Period, excludeCICD bool) string {
	spec := period.window()

	var b strings.Builder
	b.WriteString("SELECT\n")
	fmt.Fprintf(&b, "  FORMAT_DATE('%%Y-%%m-%%d', DATE_TRUNC(DATE(timestamp), %s)) AS date,\n",
		strings.ToUpper(string(spec.granularity)))
	b.WriteString("  COUNT(*) AS downloads\n")
	b.WriteString("FROM " + factTable + "\n")
	fmt.Fprintf(&b, "WHERE file.project = %s\n", quoteLiteral(pkg))

	switch {
	case spec.unbounded:
		// all-time series scans the full table
	case spec.monthsBack == 0:
		b.WriteString("  AND DATE(timestamp) >= DATE_TRUNC(CURRENT_DATE(), MONTH)\n")
	default:
		fmt.Fprintf(&b, "  AND DATE(timestamp) >= DATE_SUB(DATE_TRUNC(CURRENT_DATE(), MONTH), INTERVAL %d MONTH)\n",
			spec.monthsBack)
	}

	if excludeCICD {
		b.WriteString("  AND " + noiseFilter + "\n")
	}

	b.WriteString("GROUP BY date\n")
	b.WriteString("ORDER BY date")
	return b.String()
}

// BuildCountQuery produces the single aggregate download count for one
// package over the given period. The count is the only output column.
func BuildCountQuery(pkg string, period Period, excludeCICD bool) string {
	spec := period.window()

	var b strings.Builder
	b.WriteString("SELECT COUNT(*) AS num_downloads\n")
	b.WriteString("FROM " + factTable + "\n")
	fmt.Fprintf(&b, "WHERE file.project = %s\n", quoteLiteral(pkg))

	if !spec.unbounded {
		fmt.Fprintf(&b, "  AND DATE(timestamp) BETWEEN DATE_SUB(CURRENT_DATE(), INTERVAL %d DAY) AND CURRENT_DATE()\n",
			spec.days)
	}

	if excludeCICD {
		b.WriteString("  AND " + noiseFilter + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
