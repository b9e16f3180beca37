// Package adapter provides the database adapter registry and the shared
// database/sql plumbing concrete adapters embed.
//
// The Adapter contract itself lives in pkg/core. Concrete implementations are
// in pkg/adapters/ subdirectories and register themselves in init().
package adapter

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
)

// Factory constructs an unconnected adapter.
type Factory func(*slog.Logger) core.Adapter

// DialectOf returns the registered SQL dialect an adapter speaks.
func DialectOf(a core.Adapter) (*dialect.Dialect, error) {
	cfg := a.DialectConfig()
	if cfg == nil {
		return nil, dialect.ErrDialectRequired
	}
	d, err := dialect.Lookup(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("adapter dialect: %w", err)
	}
	return d, nil
}
