package core

// =============================================================================
// Plan
// =============================================================================
//
// A Plan is the fully resolved, dialect-neutral description of a compiled
// metric query. Every name in it refers to a physical relation or column;
// SQL generators never consult the registry again.

// RootRelation is the relation alias of the root model's table.
const RootRelation = "t0"

// TableRef names a physical table and the relation alias it is bound to.
type TableRef struct {
	Relation string `json:"relation"`
	Schema   string `json:"schema"`
	Table    string `json:"table"`
}

// ColumnRef is a column of a relation in the plan.
type ColumnRef struct {
	Relation string `json:"relation"`
	Column   string `json:"column"`
}

// JoinKind is the relational join used for a plan join.
type JoinKind string

// Join kinds.
const (
	// JoinLeft keeps every row of the left side.
	JoinLeft JoinKind = "left"
	// JoinInner keeps only rows with a match. Used when a pre-aggregated
	// branch is filtered, so the filter restricts the fact rows.
	JoinInner JoinKind = "inner"
)

// JoinCondition equates a column of an earlier relation with a column of the joined one.
type JoinCondition struct {
	Left  ColumnRef `json:"left"`
	Right ColumnRef `json:"right"`
}

// PlanJoin is one join in dependency order. Exactly one of Table and
// PreAggregate is set.
type PlanJoin struct {
	// Path is the alias chain from the root, e.g. "customer.company".
	Path        string        `json:"path"`
	Model       string        `json:"model"`
	Cardinality Cardinality   `json:"cardinality"`
	Kind        JoinKind      `json:"kind"`
	On          JoinCondition `json:"on"`
	Table       *TableRef     `json:"table,omitempty"`
	// PreAggregate replaces the table with a one-row-per-key subquery.
	PreAggregate *PreAggregate `json:"pre_aggregate,omitempty"`
}

// Relation returns the alias the join is bound to.
func (j *PlanJoin) Relation() string {
	if j.PreAggregate != nil {
		return j.PreAggregate.Relation
	}
	return j.Table.Relation
}

// PreAggregate collapses a one-to-many branch to one row per join key
// before it meets the fact rows.
type PreAggregate struct {
	// Relation is the alias of the subquery in the outer query.
	Relation string `json:"relation"`
	// Source is the many-side table inside the subquery.
	Source TableRef `json:"source"`
	// Key is the grouping key inside the subquery, exposed as KeyName.
	Key     ColumnRef `json:"key"`
	KeyName string    `json:"key_name"`
	// Joins are to-one joins below the branch root, evaluated inside the subquery.
	Joins    []PlanJoin      `json:"joins,omitempty"`
	Filters  []PlanFilter    `json:"filters,omitempty"`
	Partials []PlanAggregate `json:"partials,omitempty"`
}

// PlanFilter is a pre-aggregation restriction on a raw column.
type PlanFilter struct {
	// Reference is the filter column as requested.
	Reference string    `json:"reference"`
	Column    ColumnRef `json:"column"`
	Op        FilterOp  `json:"op"`
	// Value holds the operand of scalar operators; Values the operand of in/not_in.
	Value  any   `json:"value,omitempty"`
	Values []any `json:"values,omitempty"`
}

// AggregateFunc is the relational aggregate a plan aggregate evaluates.
type AggregateFunc string

// Aggregate functions.
const (
	FuncCountRows     AggregateFunc = "count_rows" // COUNT(*)
	FuncCount         AggregateFunc = "count"      // COUNT(arg)
	FuncSum           AggregateFunc = "sum"
	FuncAvg           AggregateFunc = "avg"
	FuncMin           AggregateFunc = "min"
	FuncMax           AggregateFunc = "max"
	FuncCountDistinct AggregateFunc = "count_distinct"
	// FuncSumRatio is SUM(arg0) / SUM(arg1). Averages over partials.
	FuncSumRatio AggregateFunc = "sum_ratio"
)

// PlanAggregate is one aggregate expression.
type PlanAggregate struct {
	Name string        `json:"name"`
	Func AggregateFunc `json:"func"`
	Args []ColumnRef   `json:"args,omitempty"`
	// ZeroIfNull turns an empty re-aggregation into 0 (counts over partials).
	ZeroIfNull bool `json:"zero_if_null,omitempty"`
}

// ColumnRole distinguishes dimensions from measures in the select list.
type ColumnRole string

// Output column roles.
const (
	RoleDimension ColumnRole = "dimension"
	RoleMeasure   ColumnRole = "measure"
)

// OutputColumn is one entry of the select list.
type OutputColumn struct {
	// Name is the requested reference, used verbatim as the output column name.
	Name string     `json:"name"`
	Role ColumnRole `json:"role"`
	// Model and Field identify the resolved dimension or measure.
	Model string `json:"model"`
	Field string `json:"field"`
	// Dimension is set for dimensions; Aggregate for measures.
	Dimension *ColumnRef     `json:"dimension,omitempty"`
	Aggregate *PlanAggregate `json:"aggregate,omitempty"`
}

// PlanOrder sorts by an output column.
type PlanOrder struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// Plan is a compiled metric query.
type Plan struct {
	Model string `json:"model"`
	// Database is the database identifier shared by every model in the plan.
	// Empty means the project default.
	Database string         `json:"database,omitempty"`
	Source   TableRef       `json:"source"`
	Joins    []PlanJoin     `json:"joins,omitempty"`
	Filters  []PlanFilter   `json:"filters,omitempty"`
	GroupBy  []ColumnRef    `json:"group_by,omitempty"`
	Columns  []OutputColumn `json:"columns"`
	OrderBy  []PlanOrder    `json:"order_by,omitempty"`
	Limit    *int           `json:"limit,omitempty"`
}

// ColumnNames returns output column names in select order.
func (p *Plan) ColumnNames() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// Models returns the distinct models the plan reads, root first.
func (p *Plan) Models() []string {
	seen := map[string]bool{p.Model: true}
	models := []string{p.Model}
	var walk func(joins []PlanJoin)
	walk = func(joins []PlanJoin) {
		for _, j := range joins {
			if !seen[j.Model] {
				seen[j.Model] = true
				models = append(models, j.Model)
			}
			if j.PreAggregate != nil {
				walk(j.PreAggregate.Joins)
			}
		}
	}
	walk(p.Joins)
	return models
}
