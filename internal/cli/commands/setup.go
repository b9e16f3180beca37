package commands

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/config"
	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/internal/executor"
	"github.com/leapstack-labs/leapmetrics/internal/history"
	"github.com/leapstack-labs/leapmetrics/internal/project"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Project  *project.Context

	executor *executor.Executor
	history  *history.Store
}

// NewCommandContext loads the project documents and creates a renderer.
// Call Close when done.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	pc, err := project.Load(cfg.SemanticsDir, logger)
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: newRenderer(cmd, cfg),
		Project:  pc,
	}, nil
}

// History opens the query history store on first use.
func (c *CommandContext) History() (*history.Store, error) {
	if c.history != nil {
		return c.history, nil
	}
	store, err := history.Open(c.Cfg.HistoryPath, c.Logger)
	if err != nil {
		return nil, err
	}
	c.history = store
	return store, nil
}

// Executor creates the executor on first use. Runs are recorded in the
// history store when record is true.
func (c *CommandContext) Executor(record bool) (*executor.Executor, error) {
	if c.executor != nil {
		return c.executor, nil
	}
	opts := executor.Options{
		Databases:       c.Cfg.Databases,
		DefaultDatabase: c.Cfg.DefaultDatabase,
		MaxRows:         c.Cfg.Server.MaxRows,
		Logger:          c.Logger,
	}
	if record {
		store, err := c.History()
		if err != nil {
			return nil, err
		}
		opts.History = store
	}
	c.executor = executor.New(opts)
	return c.executor, nil
}

// Close releases database connections and the history store.
func (c *CommandContext) Close() error {
	var errs []error
	if c.executor != nil {
		errs = append(errs, c.executor.Close())
	}
	if c.history != nil {
		errs = append(errs, c.history.Close())
	}
	return errors.Join(errs...)
}

// getConfig returns the current configuration, or the defaults when
// a command runs without the root command (tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		mode = output.ModeAuto
	}
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
}
