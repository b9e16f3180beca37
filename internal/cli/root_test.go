package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmetrics/internal/cli/commands"
	clitest "github.com/leapstack-labs/leapmetrics/internal/cli/testutil"
	"github.com/leapstack-labs/leapmetrics/internal/testutil"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

func run(t *testing.T, p *testutil.Project, args ...string) clitest.Result {
	t.Helper()
	return clitest.Run(t, NewRootCmd(), append([]string{"--project-dir", p.Root}, args...)...)
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func kindOf(err error) core.ErrorKind {
	kind, _ := core.KindOf(err)
	return kind
}

func TestRoot_Commands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range NewRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"version", "models", "query", "explain", "rules", "classify", "validate", "history", "serve", "completion"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestModelsList(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "models", "list", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)

	models := decode(t, res.Stdout)["models"].([]any)
	require.Len(t, models, 4)
	first := models[0].(map[string]any)
	assert.Equal(t, "customers", first["name"])

	res = run(t, p, "models", "list", "-o", "markdown")
	require.NoError(t, res.Err)
	clitest.AssertNoANSI(t, res.Stdout)
	clitest.AssertValidMarkdown(t, res.Stdout)
	assert.Contains(t, res.Stdout, "# Models (4 total)")
	assert.Contains(t, res.Stdout, "main.orders")
}

func TestModelsShow(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "models", "show", "orders", "-o", "markdown")
	require.NoError(t, res.Err, res.Stderr)
	assert.Contains(t, res.Stdout, "# Model: orders")
	assert.Contains(t, res.Stdout, "total_amount")
	assert.Contains(t, res.Stdout, "one_to_many")

	res = run(t, p, "models", "show", "nope")
	require.Error(t, res.Err)
	assert.Equal(t, core.KindUnknownModel, kindOf(res.Err))
}

func TestModelsGraph(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "models", "graph", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)
	out := decode(t, res.Stdout)
	assert.Len(t, out["joins"], 2)
	assert.NotContains(t, out, "cycle")

	res = run(t, p, "models", "graph", "-o", "markdown")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "- orders")
	assert.Contains(t, res.Stdout, "joins: customers (customer), line_items (items)")
}

func TestQuery(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "query", "orders", "-m", "total_amount", "-d", "status", "--order", "total_amount:desc", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)

	out := decode(t, res.Stdout)
	assert.Equal(t, []any{"status", "total_amount"}, out["columns"])
	data := out["data"].([]any)
	require.Len(t, data, 2)
	top := data[0].(map[string]any)
	assert.Equal(t, "completed", top["status"])
	assert.InDelta(t, 475, top["total_amount"], 0.001)
	assert.Equal(t, "warehouse", out["database"])
}

func TestQuery_FilterAndMarkdown(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "query", "orders", "-m", "total_amount", "-f", "status = pending", "--show-sql")
	require.NoError(t, res.Err, res.Stderr)
	clitest.AssertValidMarkdown(t, res.Stdout)
	assert.Contains(t, res.Stdout, "| 75 |")
	assert.Contains(t, res.Stdout, "```sql")
}

func TestQuery_Errors(t *testing.T) {
	p := testutil.NewShopProject(t)

	tests := []struct {
		name string
		args []string
		kind core.ErrorKind
	}{
		{name: "unknown model", args: []string{"query", "nope", "-m", "x"}, kind: core.KindUnknownModel},
		{name: "unknown measure", args: []string{"query", "orders", "-m", "nope"}, kind: core.KindUnknownMeasure},
		{name: "bad operator", args: []string{"query", "orders", "-m", "total_amount", "-f", "status like x"}, kind: core.KindInvalidFilterOperator},
		{name: "negative limit", args: []string{"query", "orders", "-m", "total_amount", "--limit", "-5"}, kind: core.KindInvalidRequest},
		{name: "missing table", args: []string{"query", "refunds", "-m", "refund_count"}, kind: core.KindExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, p, tt.args...)
			require.Error(t, res.Err)
			assert.Equal(t, tt.kind, kindOf(res.Err))
		})
	}
}

func TestQuery_Limit(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "query", "orders", "-m", "order_count", "-d", "status", "--limit", "0", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)
	assert.Empty(t, decode(t, res.Stdout)["data"])

	res = run(t, p, "query", "orders", "-m", "order_count", "-d", "status", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)
	assert.Len(t, decode(t, res.Stdout)["data"], 2)
}

func TestQuery_NoSemanticModel(t *testing.T) {
	p := testutil.NewProject(t, testutil.ProjectOptions{Rules: testutil.ShopRules})

	res := run(t, p, "query", "orders", "-m", "total_amount")
	require.Error(t, res.Err)
	assert.Equal(t, core.KindSpecNotFound, kindOf(res.Err))
}

func TestExplain(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "explain", "orders", "-m", "total_amount", "-m", "items.total_quantity", "-f", "status = completed", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)

	out := decode(t, res.Stdout)
	assert.Equal(t, "duckdb", out["dialect"])
	assert.Contains(t, out["sql"], "GROUP BY")
	assert.Contains(t, out["args"], "completed")

	res = run(t, p, "explain", "orders", "-m", "total_amount", "-d", "customer.region", "-o", "markdown")
	require.NoError(t, res.Err)
	clitest.AssertValidMarkdown(t, res.Stdout)
	assert.Contains(t, res.Stdout, "# Plan: orders")
	assert.Contains(t, res.Stdout, "customer -> customers")
}

func TestRules(t *testing.T) {
	p := testutil.NewShopProject(t)

	tests := []struct {
		name  string
		args  []string
		rules []string
	}{
		{name: "all", args: nil, rules: []string{"cash_tips_not_recorded", "revenue_excludes_refunds"}},
		{name: "category", args: []string{"--category", "metrics"}, rules: []string{"revenue_excludes_refunds"}},
		{name: "concept", args: []string{"--concept", "tip_amount"}, rules: []string{"cash_tips_not_recorded"}},
		{name: "category wins", args: []string{"--category", "metrics", "--concept", "tip_amount"}, rules: []string{"revenue_excludes_refunds"}},
		{name: "no match", args: []string{"--category", "nope"}, rules: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, p, append([]string{"rules", "-o", "json"}, tt.args...)...)
			require.NoError(t, res.Err, res.Stderr)
			out := decode(t, res.Stdout)

			var names []string
			for _, r := range out["rules"].([]any) {
				names = append(names, r.(map[string]any)["name"].(string))
			}
			assert.Equal(t, tt.rules, names)
			assert.Equal(t, []any{"data_quality", "metrics"}, out["categories"])
		})
	}

	res := run(t, p, "rules", "-o", "markdown")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "## Data Quality")
	assert.Contains(t, res.Stdout, "### cash_tips_not_recorded (critical)")
}

func TestClassify(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "classify", "--tag", "revenue", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)
	out := decode(t, res.Stdout)
	require.Len(t, out["classifications"], 1)
	assert.Equal(t, "high_value_customer", out["classifications"].([]any)[0].(map[string]any)["name"])
	assert.Equal(t, []any{"high_value_customer", "bulk_order"}, out["available_names"])

	res = run(t, p, "classify", "--name", "missing")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stderr, "no matching classifications")
	assert.Contains(t, res.Stdout, "high_value_customer, bulk_order")
}

func TestRules_NoDocument(t *testing.T) {
	p := testutil.NewProject(t, testutil.ProjectOptions{Models: testutil.ShopModels})

	res := run(t, p, "rules")
	require.Error(t, res.Err)
	assert.Equal(t, core.KindSpecNotFound, kindOf(res.Err))
}

func TestValidate(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "validate", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)
	out := decode(t, res.Stdout)
	assert.InDelta(t, 4, out["models"], 0)
	assert.InDelta(t, 2, out["joins"], 0)
	assert.InDelta(t, 2, out["rules"], 0)

	// refunds has no table in the warehouse.
	res = run(t, p, "validate", "--check-columns", "-o", "markdown")
	require.ErrorIs(t, res.Err, commands.ErrValidationFailed)
	assert.Contains(t, res.Stdout, "**error** refunds:")
}

func TestHistory(t *testing.T) {
	p := testutil.NewShopProject(t)

	res := run(t, p, "history", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)
	assert.Empty(t, decode(t, res.Stdout)["runs"])

	require.NoError(t, run(t, p, "query", "orders", "-m", "order_count").Err)
	require.Error(t, run(t, p, "query", "refunds", "-m", "refund_count").Err)

	res = run(t, p, "history", "-o", "json")
	require.NoError(t, res.Err, res.Stderr)
	runs := decode(t, res.Stdout)["runs"].([]any)
	require.Len(t, runs, 2)
	latest := runs[0].(map[string]any)
	assert.Equal(t, "refunds", latest["model"])
	assert.NotEmpty(t, latest["error"])

	res = run(t, p, "history", "--model", "orders", "-o", "json")
	require.NoError(t, res.Err)
	runs = decode(t, res.Stdout)["runs"].([]any)
	require.Len(t, runs, 1)
	id := runs[0].(map[string]any)["id"].(string)

	res = run(t, p, "history", id, "-o", "markdown")
	require.NoError(t, res.Err, res.Stderr)
	assert.Contains(t, res.Stdout, "# Run "+id)
	assert.Contains(t, res.Stdout, "```sql")
}

func TestVersion(t *testing.T) {
	res := clitest.Run(t, NewRootCmd(), "version")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "LeapMetrics v"+Version)
}

func TestCompletion(t *testing.T) {
	res := clitest.Run(t, NewRootCmd(), "completion", "bash")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "leapmetrics")
}

func TestInvalidConfig(t *testing.T) {
	p := testutil.NewShopProject(t)
	testutil.WriteFile(t, p.Root+"/leapmetrics.yaml", "databases:\n  bad:\n    type: nosuchdb\n")

	res := run(t, p, "models", "list")
	assert.Error(t, res.Err)
}
