package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/internal/dag"
	"github.com/leapstack-labs/leapmetrics/internal/project"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/semantic"
)

// NewModelsCommand creates the models command group.
func NewModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the semantic model",
	}
	cmd.AddCommand(newModelsListCommand(), newModelsShowCommand(), newModelsGraphCommand())
	return cmd
}

func newModelsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all models",
		Long: `List every model in semantic_model.yml with its table and field counts.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown table
  - JSON: Machine-readable format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(cmd, func(cmdCtx *CommandContext, reg *semantic.Registry) error {
				sums := reg.Summaries()
				r := cmdCtx.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(map[string]any{"models": sums})
				}

				r.Header(1, fmt.Sprintf("Models (%d total)", len(sums)))
				rows := make([][]any, len(sums))
				for i, s := range sums {
					rows[i] = []any{s.Name, s.Table, s.Dimensions, s.Measures, s.Joins, s.Description}
				}
				r.Table([]string{"model", "table", "dimensions", "measures", "joins", "description"}, rows)
				return nil
			})
		},
	}
}

func newModelsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <model>",
		Short: "Show a model's dimensions, measures and joins",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return completeModels(cmd), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, func(cmdCtx *CommandContext, reg *semantic.Registry) error {
				desc, err := reg.DescribeModel(args[0])
				if err != nil {
					return err
				}
				r := cmdCtx.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(desc)
				}
				renderDescription(r, desc)
				return nil
			})
		},
	}
}

func renderDescription(r *output.Renderer, d *semantic.Description) {
	r.Header(1, "Model: "+d.Name)
	pairs := [][2]string{{"table", d.Schema + "." + d.Table}}
	for _, p := range [][2]string{
		{"database", d.Database},
		{"description", d.Description},
		{"primary_key", d.PrimaryKey},
		{"time_dimension", d.TimeDimension},
	} {
		if p[1] != "" {
			pairs = append(pairs, p)
		}
	}
	r.KeyValues(pairs)
	r.Println("")

	r.Header(2, "Dimensions")
	rows := make([][]any, len(d.Dimensions))
	for i, dim := range d.Dimensions {
		rows[i] = []any{dim.Name, dim.Column, dim.Description}
	}
	r.Table([]string{"name", "column", "description"}, rows)
	r.Println("")

	r.Header(2, "Measures")
	rows = make([][]any, len(d.Measures))
	for i, m := range d.Measures {
		rows[i] = []any{m.Name, string(m.Kind), m.Column, m.Description}
	}
	r.Table([]string{"name", "type", "column", "description"}, rows)

	if len(d.Joins) > 0 {
		r.Println("")
		r.Header(2, "Joins")
		rows = make([][]any, len(d.Joins))
		for i, j := range d.Joins {
			rows[i] = []any{j.Alias, j.ToModel, j.ForeignKey + " = " + j.RelatedKey, string(j.Cardinality)}
		}
		r.Table([]string{"alias", "model", "on", "type"}, rows)
	}
}

// GraphEdge is a join in graph output.
type GraphEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Alias string `json:"alias"`
}

// GraphOutput is the JSON output of models graph.
type GraphOutput struct {
	Models    []string    `json:"models"`
	Joins     []GraphEdge `json:"joins"`
	SelfJoins []GraphEdge `json:"self_joins,omitempty"`
	Cycle     []string    `json:"cycle,omitempty"`
}

func newModelsGraphCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Show the join graph between models",
		Long: `Display every model with the joins it declares and the models that
join to it. Join cycles are reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(cmd, func(cmdCtx *CommandContext, reg *semantic.Registry) error {
				g, selfJoins := project.JoinGraph(reg)
				out := buildGraphOutput(g, selfJoins)
				r := cmdCtx.Renderer
				switch r.EffectiveMode() {
				case output.ModeJSON:
					return r.JSON(out)
				case output.ModeMarkdown:
					graphMarkdown(r, g, out)
				default:
					graphText(r, g, out)
				}
				return nil
			})
		},
	}
}

func buildGraphOutput(g *dag.Graph, selfJoins []core.Join) *GraphOutput {
	out := &GraphOutput{Joins: []GraphEdge{}}
	for _, n := range g.GetAllNodes() {
		out.Models = append(out.Models, n.ID)
		for _, e := range g.EdgesFrom(n.ID) {
			out.Joins = append(out.Joins, GraphEdge{From: e.From, To: e.To, Alias: e.Label})
		}
	}
	for _, j := range selfJoins {
		out.SelfJoins = append(out.SelfJoins, GraphEdge{From: j.ToModel, To: j.ToModel, Alias: j.Alias})
	}
	if cyclic, path := g.HasCycle(); cyclic {
		out.Cycle = path
	}
	return out
}

func joinsFrom(g *dag.Graph, model string) []string {
	var s []string
	for _, e := range g.EdgesFrom(model) {
		s = append(s, fmt.Sprintf("%s (%s)", e.To, e.Label))
	}
	return s
}

// graphText outputs the join graph in styled text format.
func graphText(r *output.Renderer, g *dag.Graph, out *GraphOutput) {
	styles := r.Styles()
	r.Header(1, "Join Graph")

	for _, model := range out.Models {
		r.Printf("  %s\n", styles.ModelPath.Render(model))
		if joins := joinsFrom(g, model); len(joins) > 0 {
			r.Printf("    %s %s\n", styles.Muted.Render("joins:"), strings.Join(joins, ", "))
		}
		if parents := g.GetParents(model); len(parents) > 0 {
			r.Printf("    %s %s\n", styles.Muted.Render("joined from:"), strings.Join(parents, ", "))
		}
	}
	r.Println("")

	if out.Cycle != nil {
		r.Warning("join cycle: " + strings.Join(out.Cycle, " -> "))
	}
	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d models, %d joins", g.NodeCount(), g.EdgeCount()+len(out.SelfJoins))))
}

// graphMarkdown outputs the join graph in markdown format.
func graphMarkdown(r *output.Renderer, g *dag.Graph, out *GraphOutput) {
	r.Println(output.FormatHeader(1, "Join Graph"))
	r.Println("")

	for _, model := range out.Models {
		r.Printf("- %s\n", model)
		if joins := joinsFrom(g, model); len(joins) > 0 {
			r.Printf("  - joins: %s\n", strings.Join(joins, ", "))
		}
		if parents := g.GetParents(model); len(parents) > 0 {
			r.Printf("  - joined from: %s\n", strings.Join(parents, ", "))
		}
	}
	r.Println("")

	if out.Cycle != nil {
		r.Printf("**Cycle**: %s\n\n", strings.Join(out.Cycle, " -> "))
	}
	r.Printf("*Total: %d models, %d joins*\n", g.NodeCount(), g.EdgeCount()+len(out.SelfJoins))
}

// withRegistry runs fn with the loaded semantic model.
func withRegistry(cmd *cobra.Command, fn func(*CommandContext, *semantic.Registry) error) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cmdCtx.Close() }()

	reg, err := cmdCtx.Project.Registry()
	if err != nil {
		return err
	}
	return fn(cmdCtx, reg)
}

// completeModels lists model names for shell completion.
func completeModels(cmd *cobra.Command) []string {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return nil
	}
	defer func() { _ = cmdCtx.Close() }()
	reg, err := cmdCtx.Project.Registry()
	if err != nil {
		return nil
	}
	return reg.ListModels()
}
