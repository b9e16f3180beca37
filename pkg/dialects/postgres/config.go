// Package postgres provides the PostgreSQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import "github.com/leapstack-labs/leapmetrics/pkg/core"

// Config is the PostgreSQL dialect configuration.
// This is pure data, shared by the adapter and the SQL generator.
var Config = &core.DialectConfig{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	Identifiers: core.IdentifierConfig{
		Quote:    `"`,
		QuoteEnd: `"`,
		Escape:   `""`,
	},
	NullsOrdering: "NULLS LAST",
	FloatType:     "DOUBLE PRECISION",

	// Function classifications
	Aggregates: []string{
		// Standard aggregates
		"SUM", "COUNT", "AVG", "MIN", "MAX",
		"STDDEV", "STDDEV_POP", "STDDEV_SAMP",
		"VARIANCE", "VAR_POP", "VAR_SAMP",
		// PostgreSQL specific
		"ARRAY_AGG", "STRING_AGG",
		"JSONB_AGG", "JSON_AGG",
		"BOOL_AND", "BOOL_OR", "EVERY",
		"PERCENTILE_CONT", "PERCENTILE_DISC",
		"MODE",
	},
}
