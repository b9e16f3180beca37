package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/leapmetrics/pkg/adapter"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

func init() {
	adapter.Register("postgres", func(logger *slog.Logger) core.Adapter { return New(logger) })
}
