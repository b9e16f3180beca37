// Package config provides configuration management for the LeapMetrics CLI.
//
// Configuration is layered with koanf: built-in defaults, then
// leapmetrics.yaml, then LEAPMETRICS_ environment variables, then flags the
// user explicitly set.
package config

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
)

// DatabaseConfig is an alias for the shared database configuration.
type DatabaseConfig = core.DatabaseConfig

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr            string `koanf:"addr"`
	Watch           bool   `koanf:"watch"`
	RefreshSchedule string `koanf:"refresh_schedule"`
	MaxRows         int    `koanf:"max_rows"`
}

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory every relative path resolves against.
	ProjectRoot     string                    `koanf:"-"`
	SemanticsDir    string                    `koanf:"semantics_dir"`
	DefaultDatabase string                    `koanf:"default_database"`
	HistoryPath     string                    `koanf:"history_path"`
	OutputFormat    string                    `koanf:"output"`
	Verbose         bool                      `koanf:"verbose"`
	Databases       map[string]DatabaseConfig `koanf:"databases"`
	Server          ServerConfig              `koanf:"server"`
}

// Default configuration values.
const (
	ConfigFileName    = "leapmetrics.yaml"
	ConfigFileNameAlt = "leapmetrics.yml"
	EnvPrefix         = "LEAPMETRICS_"

	DefaultSemanticsDir = "semantics"
	DefaultHistoryFile  = ".leapmetrics/history.db"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultServerAddr   = ":8005"
	DefaultMaxRows      = 10000
)

// SemanticModelPath returns the path of the semantic model document.
func (c *Config) SemanticModelPath() string {
	return filepath.Join(c.SemanticsDir, core.SemanticModelFile)
}

// BusinessRulesPath returns the path of the business rules document.
func (c *Config) BusinessRulesPath() string {
	return filepath.Join(c.SemanticsDir, core.BusinessRulesFile)
}

// DatabaseNames returns the configured database identifiers sorted.
func (c *Config) DatabaseNames() []string {
	names := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSchemaForType returns the default schema for a database type.
// It looks up the dialect in the registry; unknown types fall back to "main".
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(strings.ToLower(dbType)); ok && d.DefaultSchema != "" {
		return d.DefaultSchema
	}
	return core.DefaultSchema
}

// Default returns a configuration with every default applied and no databases.
func Default() *Config {
	return &Config{
		SemanticsDir: DefaultSemanticsDir,
		HistoryPath:  DefaultHistoryFile,
		OutputFormat: DefaultOutput,
		Server: ServerConfig{
			Addr:    DefaultServerAddr,
			MaxRows: DefaultMaxRows,
		},
	}
}
