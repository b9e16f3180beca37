package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	duckdbadapter "github.com/leapstack-labs/leapmetrics/pkg/adapters/duckdb"
	"github.com/leapstack-labs/leapmetrics/pkg/core"

	// duckdb driver for seeding fixture databases.
	_ "github.com/marcboeker/go-duckdb"
)

// ShopModels is a small semantic model: orders with customers (many-to-one)
// and line items (one-to-many). The refunds model points at a table that
// ShopSeed never creates.
const ShopModels = `models:
  orders:
    table: orders
    description: One row per order
    primary_key: order_id
    dimensions:
      status:
        column: status
    measures:
      order_count:
        type: count
      total_amount:
        type: sum
        column: amount
    joins:
      customer:
        to_model: customers
        foreign_key: customer_id
        related_key: customer_id
      items:
        to_model: line_items
        foreign_key: order_id
        related_key: order_id
        type: one_to_many
  customers:
    table: customers
    dimensions:
      region:
        column: region
  line_items:
    table: line_items
    dimensions:
      product:
        column: product
    measures:
      total_quantity:
        type: sum
        column: quantity
  refunds:
    table: refunds
    measures:
      refund_count:
        type: count
`

// ShopRules is a business rules document matching ShopModels.
const ShopRules = `rules:
  - name: cash_tips_not_recorded
    category: data_quality
    severity: critical
    applies_to: [tip_amount]
    description: Cash tips are never captured by the payment system.
    guidance: Report tip totals as card tips only.
  - name: revenue_excludes_refunds
    category: metrics
    applies_to: [orders.total_amount]
    description: Revenue is gross of refunds.
    guidance: Subtract refunds explicitly when reporting net revenue.
classifications:
  high_value_customer:
    description: Customers with lifetime spend over 1000
    condition: lifetime_value > 1000
    tags: [customer, revenue]
  bulk_order:
    description: Orders with more than 50 items
    condition: item_count > 50
    tags: [orders]
`

// ShopSeed creates and fills the customers and orders tables behind
// ShopModels. Orders total 550, 475 of it completed.
var ShopSeed = []string{
	`CREATE TABLE customers (customer_id INTEGER, region VARCHAR)`,
	`INSERT INTO customers VALUES (10, 'emea'), (20, 'amer')`,
	`CREATE TABLE orders (order_id INTEGER, customer_id INTEGER, status VARCHAR, amount INTEGER)`,
	`INSERT INTO orders VALUES
		(1, 10, 'completed', 100),
		(2, 10, 'completed', 200),
		(3, 20, 'pending', 75),
		(4, 20, 'completed', 100),
		(5, 20, 'completed', 75)`,
}

// ShopCSV holds the line_items export loaded next to ShopSeed. Order 1 has
// three line items.
var ShopCSV = map[string]string{
	"line_items": `order_id,product,quantity
1,widget,1
1,gadget,2
1,widget,3
2,gadget,4
`,
}

// SeedShop builds the shop warehouse at path.
func SeedShop(t testing.TB, path string) {
	t.Helper()
	SeedDuckDB(t, path, ShopSeed)
	LoadCSV(t, path, ShopCSV)
}

// Project describes a fixture project on disk.
type Project struct {
	// Root holds leapmetrics.yaml.
	Root string
	// SemanticsDir holds the documents.
	SemanticsDir string
	// Warehouse is the seeded DuckDB file, empty unless requested.
	Warehouse string
}

// ProjectOptions selects what NewProject writes.
type ProjectOptions struct {
	Models string
	Rules  string
	// Seed creates warehouse.duckdb with these statements and configures it.
	Seed []string
	// CSV maps table names to CSV contents loaded into the warehouse after Seed.
	CSV map[string]string
}

// NewProject writes a project into a temp directory. Empty documents are
// left out so their absence can be tested.
func NewProject(t testing.TB, opts ProjectOptions) *Project {
	t.Helper()
	root := t.TempDir()
	p := &Project{Root: root, SemanticsDir: filepath.Join(root, "semantics")}
	require.NoError(t, os.MkdirAll(p.SemanticsDir, 0o750))

	if opts.Models != "" {
		WriteFile(t, filepath.Join(p.SemanticsDir, "semantic_model.yml"), opts.Models)
	}
	if opts.Rules != "" {
		WriteFile(t, filepath.Join(p.SemanticsDir, "business_rules.yml"), opts.Rules)
	}

	cfg := "semantics_dir: semantics\nhistory_path: .leapmetrics/history.db\n"
	if opts.Seed != nil {
		p.Warehouse = filepath.Join(root, "warehouse.duckdb")
		SeedDuckDB(t, p.Warehouse, opts.Seed)
		LoadCSV(t, p.Warehouse, opts.CSV)
		cfg += "databases:\n  warehouse:\n    type: duckdb\n    path: warehouse.duckdb\n"
	}
	WriteFile(t, filepath.Join(root, "leapmetrics.yaml"), cfg)
	return p
}

// NewShopProject writes the shop models, rules and a seeded warehouse.
func NewShopProject(t testing.TB) *Project {
	t.Helper()
	return NewProject(t, ProjectOptions{Models: ShopModels, Rules: ShopRules, Seed: ShopSeed, CSV: ShopCSV})
}

// SeedDuckDB runs stmts against the DuckDB database at path.
func SeedDuckDB(t testing.TB, path string, stmts []string) {
	t.Helper()
	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

// LoadCSV writes each CSV to a temp file and loads it into the DuckDB
// database at path through the duckdb adapter.
func LoadCSV(t testing.TB, path string, tables map[string]string) {
	t.Helper()
	if len(tables) == 0 {
		return
	}
	ctx := context.Background()
	adp := duckdbadapter.New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: path}))
	defer func() { _ = adp.Close() }()

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	dir := t.TempDir()
	for _, name := range names {
		file := filepath.Join(dir, name+".csv")
		WriteFile(t, file, tables[name])
		require.NoError(t, adp.LoadCSV(ctx, name, file), name)
	}
}

// WriteFile writes content to path, failing the test on error.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
