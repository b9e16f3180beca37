package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmetrics/pkg/adapter"
)

var outputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks that every configured database has a registered adapter
// type and that default_database names one of them.
func (c *Config) Validate() error {
	if c.SemanticsDir == "" {
		return fmt.Errorf("semantics_dir is required")
	}

	validOutput := false
	for _, m := range outputModes {
		if c.OutputFormat == m {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return fmt.Errorf("invalid output format %q (expected one of %s)", c.OutputFormat, strings.Join(outputModes, ", "))
	}

	for _, name := range c.DatabaseNames() {
		if err := ValidateDatabase(c.Databases[name]); err != nil {
			return fmt.Errorf("databases.%s: %w", name, err)
		}
	}

	if c.DefaultDatabase != "" {
		if _, ok := c.Databases[c.DefaultDatabase]; !ok {
			return fmt.Errorf("default_database %q is not configured (available: %s)",
				c.DefaultDatabase, strings.Join(c.DatabaseNames(), ", "))
		}
	}
	if c.Server.MaxRows < 0 {
		return fmt.Errorf("server.max_rows must be non-negative, got %d", c.Server.MaxRows)
	}
	return nil
}

// ValidateDatabase checks that db names a registered adapter type.
func ValidateDatabase(db DatabaseConfig) error {
	if db.Type == "" {
		return adapter.ErrTypeRequired
	}
	if !adapter.IsRegistered(strings.ToLower(db.Type)) {
		return &adapter.UnknownAdapterError{Type: db.Type, Available: adapter.ListAdapters()}
	}
	return nil
}
