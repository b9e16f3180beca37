// Package duckdb provides the DuckDB SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import "github.com/leapstack-labs/leapmetrics/pkg/core"

// Config is the DuckDB dialect configuration.
// This is pure data, shared by the adapter and the SQL generator.
var Config = &core.DialectConfig{
	Name:          "duckdb",
	DefaultSchema: "main",
	Placeholder:   core.PlaceholderQuestion,
	Identifiers: core.IdentifierConfig{
		Quote:    `"`,
		QuoteEnd: `"`,
		Escape:   `""`,
	},
	NullsOrdering: "NULLS LAST",
	FloatType:     "DOUBLE",
	Aggregates: []string{
		"SUM", "COUNT", "AVG", "MIN", "MAX",
		"ANY_VALUE", "ARG_MAX", "ARG_MIN", "BOOL_AND", "BOOL_OR",
		"FIRST", "LAST", "LIST", "MEDIAN", "MODE",
		"QUANTILE_CONT", "QUANTILE_DISC", "STRING_AGG",
		"STDDEV_POP", "STDDEV_SAMP", "VAR_POP", "VAR_SAMP",
	},
}
