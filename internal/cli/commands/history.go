package commands

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/internal/history"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
	Model string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show recorded query runs",
		Long: `List recent query runs, newest first, or show one run in full.

Runs are recorded by the query command and the /api/query endpoint.`,
		Example: `  leapmetrics history --limit 5
  leapmetrics history --model orders
  leapmetrics history 3f2a9c1e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = cmdCtx.Close() }()

			store, err := cmdCtx.History()
			if err != nil {
				return err
			}
			r := cmdCtx.Renderer

			if len(args) == 1 {
				e, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(e)
				}
				renderEntry(r, e)
				return nil
			}

			entries, err := store.List(cmd.Context(), history.ListOptions{Model: opts.Model, Limit: opts.Limit})
			if err != nil {
				return err
			}
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(map[string]any{"runs": entries})
			}
			renderEntries(r, entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum runs to show")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Only show runs for this model")
	return cmd
}

func runStatus(e *history.Entry) string {
	if e.Failed() {
		return "failed"
	}
	return "ok"
}

func renderEntries(r *output.Renderer, entries []*history.Entry) {
	if len(entries) == 0 {
		r.Muted("No runs recorded")
		return
	}
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{
			e.ID,
			e.CreatedAt.Local().Format(time.DateTime),
			e.Model,
			strings.Join(e.Request.OutputNames(), ", "),
			runStatus(e),
			e.RowCount,
			e.DurationMS,
		}
	}
	r.Table([]string{"id", "time", "model", "columns", "status", "rows", "ms"}, rows)
}

func renderEntry(r *output.Renderer, e *history.Entry) {
	r.Header(1, "Run "+e.ID)
	pairs := [][2]string{
		{"time", e.CreatedAt.Local().Format(time.DateTime)},
		{"model", e.Model},
		{"database", e.Database},
		{"columns", strings.Join(e.Request.OutputNames(), ", ")},
		{"status", runStatus(e)},
		{"rows", output.FormatValue(e.RowCount)},
		{"duration_ms", output.FormatValue(e.DurationMS)},
	}
	if e.Failed() {
		pairs = append(pairs, [2]string{"error", e.Error})
	}
	r.KeyValues(pairs)
	if e.SQL != "" {
		r.Println("")
		r.Println(output.FormatCodeBlock("sql", e.SQL))
	}
}
