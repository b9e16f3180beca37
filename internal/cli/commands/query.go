package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/internal/executor"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// RequestOptions holds the flags shared by query and explain. Limit applies
// only when LimitSet records that --limit was given.
type RequestOptions struct {
	Measures   []string
	Dimensions []string
	Filters    []string
	Order      []string
	Limit      int
	LimitSet   bool
	Database   string
}

func (o *RequestOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&o.Measures, "measure", "m", nil, "Measure to compute (repeatable, alias.measure for joined models)")
	cmd.Flags().StringSliceVarP(&o.Dimensions, "dimension", "d", nil, "Dimension to group by (repeatable)")
	cmd.Flags().StringArrayVarP(&o.Filters, "filter", "f", nil, "Filter as 'column op value' (repeatable)")
	cmd.Flags().StringSliceVar(&o.Order, "order", nil, "Order by output column, column[:asc|:desc]")
	cmd.Flags().IntVar(&o.Limit, "limit", 0, "Maximum rows to return (unbounded when omitted)")
	cmd.Flags().StringVar(&o.Database, "database", "", "Database to run against")
	_ = cmd.MarkFlagRequired("measure")
}

// Request builds the compile request for model.
func (o *RequestOptions) Request(model string) (core.CompileRequest, error) {
	req := core.CompileRequest{
		ModelName:  model,
		Measures:   o.Measures,
		Dimensions: o.Dimensions,
	}
	for _, s := range o.Filters {
		f, err := ParseFilter(s)
		if err != nil {
			return req, err
		}
		req.Filters = append(req.Filters, f)
	}
	for _, s := range o.Order {
		req.OrderBy = append(req.OrderBy, core.ParseOrderBy(s))
	}
	if o.LimitSet {
		limit := o.Limit
		req.Limit = &limit
	}
	return req, nil
}

var operatorSymbols = map[string]core.FilterOp{
	"=":  core.OpEq,
	"==": core.OpEq,
	"!=": core.OpNe,
	"<>": core.OpNe,
	">":  core.OpGt,
	">=": core.OpGte,
	"<":  core.OpLt,
	"<=": core.OpLte,
}

// ParseFilter parses "column op value". The operator is a name (eq, in,
// not_in, ...) or a comparison symbol. Values of in and not_in are comma
// separated. Numbers and booleans are typed; quotes force a string.
func ParseFilter(s string) (core.Filter, error) {
	column, rest := cutField(strings.TrimSpace(s))
	opName, raw := cutField(rest)
	if raw == "" {
		return core.Filter{}, fmt.Errorf("invalid filter %q: expected 'column op value'", s)
	}
	op := core.FilterOp(strings.ToLower(opName))
	if sym, ok := operatorSymbols[opName]; ok {
		op = sym
	}

	f := core.Filter{Column: column, Operator: op}
	if op.IsSet() {
		parts := strings.Split(raw, ",")
		values := make([]any, 0, len(parts))
		for _, p := range parts {
			values = append(values, parseValue(strings.TrimSpace(p)))
		}
		f.Value = values
		return f, nil
	}
	f.Value = parseValue(raw)
	return f, nil
}

// cutField splits s at its first run of whitespace. The remainder is kept
// as written.
func cutField(s string) (field, rest string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

func parseValue(s string) any {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if s == "true" || s == "false" {
		return s == "true"
	}
	return s
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &RequestOptions{}
	var showSQL bool

	cmd := &cobra.Command{
		Use:   "query <model>",
		Short: "Compute measures for a model",
		Long: `Compile a metric request against the semantic model and run it on the
model's database.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown table
  - JSON: {data, columns, row_count, sql, ...}`,
		Example: `  # Total revenue
  leapmetrics query orders -m total_amount

  # Revenue by status, completed first
  leapmetrics query orders -m total_amount -d status --order total_amount:desc

  # Joined dimensions and filters
  leapmetrics query orders -m total_amount -d customer.region -f 'status in completed,shipped'

  # One-to-many measures are pre-aggregated
  leapmetrics query orders -m total_amount -m items.total_quantity`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], opts, showSQL)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&showSQL, "show-sql", false, "Print the generated SQL after the results")
	return cmd
}

func runQuery(cmd *cobra.Command, model string, opts *RequestOptions, showSQL bool) error {
	opts.LimitSet = cmd.Flags().Changed("limit")
	req, err := opts.Request(model)
	if err != nil {
		return err
	}

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cmdCtx.Close() }()

	reg, err := cmdCtx.Project.Registry()
	if err != nil {
		return err
	}
	exec, err := cmdCtx.Executor(true)
	if err != nil {
		return err
	}

	res, err := exec.Run(cmd.Context(), reg, req, opts.Database)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}
	renderResult(r, res)
	if showSQL {
		r.Println("")
		r.Println(output.FormatCodeBlock("sql", res.SQL))
	}
	return nil
}

func renderResult(r *output.Renderer, res *executor.Result) {
	rows := make([][]any, len(res.Data))
	for i, row := range res.Data {
		vals := make([]any, len(res.Columns))
		for j, col := range res.Columns {
			vals[j] = row[col]
		}
		rows[i] = vals
	}
	r.Table(res.Columns, rows)
	if res.Truncated {
		r.Warning(fmt.Sprintf("results truncated to %d rows", res.RowCount))
	}
}

// NewExplainCommand creates the explain command.
func NewExplainCommand() *cobra.Command {
	opts := &RequestOptions{}

	cmd := &cobra.Command{
		Use:   "explain <model>",
		Short: "Show the plan and SQL for a request without running it",
		Long: `Compile a metric request and print the generated SQL, its bind arguments
and the joins the plan uses. Nothing is executed.`,
		Example: `  leapmetrics explain orders -m total_amount -m items.total_quantity
  leapmetrics explain orders -m total_amount -d status -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, args[0], opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runExplain(cmd *cobra.Command, model string, opts *RequestOptions) error {
	opts.LimitSet = cmd.Flags().Changed("limit")
	req, err := opts.Request(model)
	if err != nil {
		return err
	}

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cmdCtx.Close() }()

	reg, err := cmdCtx.Project.Registry()
	if err != nil {
		return err
	}
	exec, err := cmdCtx.Executor(false)
	if err != nil {
		return err
	}
	ex, err := exec.Explain(reg, req, opts.Database)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(ex)
	case output.ModeMarkdown:
		explainMarkdown(r, ex)
	default:
		explainText(r, ex)
	}
	return nil
}

func explainMarkdown(r *output.Renderer, ex *executor.Explanation) {
	r.Println(output.FormatHeader(1, "Plan: "+ex.Plan.Model))
	r.Println("")
	r.Printf("- **Dialect**: %s\n", ex.Dialect)
	if ex.Database != "" {
		r.Printf("- **Database**: %s\n", ex.Database)
	}
	r.Printf("- **Models**: %s\n", strings.Join(ex.Plan.Models(), ", "))
	r.Println("")
	if len(ex.Plan.Joins) > 0 {
		r.Println(output.FormatHeader(2, "Joins"))
		r.Println("")
		for _, j := range ex.Plan.Joins {
			r.Printf("- %s\n", joinSummary(j))
		}
		r.Println("")
	}
	r.Println(output.FormatHeader(2, "SQL"))
	r.Println("")
	r.Println(output.FormatCodeBlock("sql", ex.SQL))
	if len(ex.Args) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Arguments"))
		r.Println("")
		for i, a := range ex.Args {
			r.Printf("%d. %s\n", i+1, output.FormatValue(a))
		}
	}
}

func explainText(r *output.Renderer, ex *executor.Explanation) {
	styles := r.Styles()
	r.Header(1, "Plan: "+ex.Plan.Model)
	r.Printf("  %s %s\n", styles.Muted.Render("dialect:"), ex.Dialect)
	if ex.Database != "" {
		r.Printf("  %s %s\n", styles.Muted.Render("database:"), ex.Database)
	}
	for _, j := range ex.Plan.Joins {
		r.Printf("  %s %s\n", styles.Muted.Render("join:"), joinSummary(j))
	}
	r.Println("")
	r.Println(styles.Code.Render(ex.SQL))
	if len(ex.Args) > 0 {
		r.Println("")
		for i, a := range ex.Args {
			r.Printf("  %s %s\n", styles.Muted.Render(fmt.Sprintf("$%d", i+1)), output.FormatValue(a))
		}
	}
}

func joinSummary(j core.PlanJoin) string {
	s := fmt.Sprintf("%s -> %s (%s, %s join)", j.Path, j.Model, j.Cardinality, j.Kind)
	if j.PreAggregate != nil {
		s += ", pre-aggregated"
	}
	return s
}
