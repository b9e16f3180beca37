package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/config"
	"github.com/leapstack-labs/leapmetrics/internal/server"
)

// NewServeCommand creates the serve command. Its flags override the server
// section of leapmetrics.yaml.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve the semantic model, query compiler and business context over HTTP.

Endpoints:
  GET  /health
  GET  /api/models               GET /api/models/{name}
  POST /api/compile              POST /api/query
  POST /api/business-context     POST /api/classify
  POST /api/refresh              GET  /api/events

The documents are reloaded on POST /api/refresh, on file changes with
--watch, and on a cron schedule with --refresh-schedule.`,
		Example: `  # Serve on the default address
  leapmetrics serve

  # Reload when documents change, and every night
  leapmetrics serve --watch --refresh-schedule "0 3 * * *"`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", config.DefaultServerAddr, "Address to listen on")
	cmd.Flags().Bool("watch", false, "Reload when documents change on disk")
	cmd.Flags().String("refresh-schedule", "", "Cron expression for periodic reloads")
	cmd.Flags().Int("max-rows", config.DefaultMaxRows, "Maximum rows returned per query (0 for unlimited)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cmdCtx.Close() }()

	exec, err := cmdCtx.Executor(true)
	if err != nil {
		return err
	}

	cfg := cmdCtx.Cfg
	srv := server.New(server.Config{
		Project:         cmdCtx.Project,
		Executor:        exec,
		Addr:            cfg.Server.Addr,
		Watch:           cfg.Server.Watch,
		RefreshSchedule: cfg.Server.RefreshSchedule,
		Logger:          cmdCtx.Logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := cmdCtx.Renderer
	r.Printf("Serving %s on %s\n", cfg.SemanticsDir, cfg.Server.Addr)
	if !cmdCtx.Project.Snapshot().HasModels() {
		r.Warning("semantic_model.yml not found; compile and query are unavailable until it is added")
	}
	r.Muted("Press Ctrl+C to stop")

	return srv.Serve(ctx)
}
