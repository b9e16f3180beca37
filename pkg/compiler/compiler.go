// Package compiler turns metric requests into dialect-neutral query plans.
//
// Compilation is a pure function of an immutable registry and a request.
// Every validation failure is reported before a plan exists, so an executor
// never receives a plan with unresolved names.
package compiler

import (
	"fmt"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/semantic"
)

// Compiler compiles requests against one registry snapshot.
// It holds no mutable state and is safe for concurrent use.
type Compiler struct {
	reg *semantic.Registry
}

// New creates a compiler bound to reg.
func New(reg *semantic.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Compile compiles req against reg.
func Compile(reg *semantic.Registry, req core.CompileRequest) (*core.Plan, error) {
	return New(reg).Compile(req)
}

// resolvedFilter is a request filter bound to a model column.
type resolvedFilter struct {
	res    *semantic.Resolved
	column string
	op     core.FilterOp
	value  any
	values []any
}

// Compile validates req and builds its plan.
func (c *Compiler) Compile(req core.CompileRequest) (*core.Plan, error) {
	root, err := c.reg.GetModel(req.ModelName)
	if err != nil {
		return nil, err
	}
	if len(req.Measures) == 0 {
		return nil, &core.InvalidRequestError{Field: "measures", Reason: "at least one measure is required"}
	}
	if err := checkOutputNames(req); err != nil {
		return nil, err
	}

	dims := make([]*semantic.Resolved, len(req.Dimensions))
	for i, ref := range req.Dimensions {
		if dims[i], err = c.reg.ResolveDimension(root, ref); err != nil {
			return nil, err
		}
	}

	measures := make([]*semantic.Resolved, len(req.Measures))
	for i, ref := range req.Measures {
		res, err := c.reg.ResolveMeasure(root, ref)
		if err != nil {
			return nil, err
		}
		ms := res.Model.Measures[res.Field]
		if ms.Kind.RequiresColumn() && ms.Column == "" {
			return nil, &core.AggregationColumnRequiredError{Model: res.Model.Name, Measure: ms.Name, Agg: ms.Kind}
		}
		measures[i] = res
	}

	filters := make([]resolvedFilter, len(req.Filters))
	for i, f := range req.Filters {
		if filters[i], err = c.resolveFilter(root, f); err != nil {
			return nil, err
		}
	}

	if err := checkOrderBy(req); err != nil {
		return nil, err
	}
	if req.Limit != nil && *req.Limit < 0 {
		return nil, &core.InvalidRequestError{Field: "limit", Reason: fmt.Sprintf("must be non-negative, got %d", *req.Limit)}
	}

	b := newBuilder(c.reg, root)
	for _, group := range [][]*semantic.Resolved{dims, measures} {
		for _, r := range group {
			if err := b.require(r); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range filters {
		if err := b.require(f.res); err != nil {
			return nil, err
		}
	}
	if err := b.markBranches(measures); err != nil {
		return nil, err
	}

	plan := &core.Plan{
		Model:    root.Name,
		Database: b.database,
		Source:   core.TableRef{Relation: core.RootRelation, Schema: root.Schema, Table: root.Table},
		Limit:    req.Limit,
	}
	b.emitJoins(plan)

	for _, f := range filters {
		b.addFilter(plan, f)
	}

	for _, d := range dims {
		n := b.node(d)
		if n != nil && n.branch != nil {
			return nil, &core.FanOutError{
				Reference: d.Reference,
				Path:      n.branch.path,
				Reason:    "a dimension beyond a one_to_many join cannot be grouped alongside measures outside it",
			}
		}
		dim := d.Model.Dimensions[d.Field]
		col := core.ColumnRef{Relation: b.outerRelation(n), Column: dim.Column}
		plan.GroupBy = append(plan.GroupBy, col)
		plan.Columns = append(plan.Columns, core.OutputColumn{
			Name:      d.Reference,
			Role:      core.RoleDimension,
			Model:     d.Model.Name,
			Field:     d.Field,
			Dimension: &col,
		})
	}

	for _, m := range measures {
		agg, err := b.aggregate(m)
		if err != nil {
			return nil, err
		}
		plan.Columns = append(plan.Columns, core.OutputColumn{
			Name:      m.Reference,
			Role:      core.RoleMeasure,
			Model:     m.Model.Name,
			Field:     m.Field,
			Aggregate: &agg,
		})
	}

	for _, o := range req.OrderBy {
		plan.OrderBy = append(plan.OrderBy, core.PlanOrder{Column: o.Column, Ascending: o.Ascending})
	}

	return plan, nil
}

func (c *Compiler) resolveFilter(root *core.Model, f core.Filter) (resolvedFilter, error) {
	op, ok := core.ParseFilterOp(string(f.Operator))
	if !ok {
		return resolvedFilter{}, &core.InvalidFilterOperatorError{Column: f.Column, Operator: string(f.Operator)}
	}
	if f.Column == "" {
		return resolvedFilter{}, &core.InvalidRequestError{Field: "filters", Reason: "filter column must not be empty"}
	}
	res, column, err := c.reg.ResolveColumn(root, f.Column)
	if err != nil {
		return resolvedFilter{}, err
	}
	value, values, err := normalizeValue(f.Column, op, f.Value)
	if err != nil {
		return resolvedFilter{}, err
	}
	return resolvedFilter{res: res, column: column, op: op, value: value, values: values}, nil
}

// checkOutputNames rejects requests whose select list would repeat a name.
func checkOutputNames(req core.CompileRequest) error {
	seen := make(map[string]bool, len(req.Dimensions)+len(req.Measures))
	for _, name := range req.OutputNames() {
		if name == "" {
			return &core.InvalidRequestError{Field: "columns", Reason: "empty dimension or measure reference"}
		}
		if seen[name] {
			return &core.InvalidRequestError{Field: "columns", Reason: fmt.Sprintf("%q is selected more than once", name)}
		}
		seen[name] = true
	}
	return nil
}

// checkOrderBy requires every order-by column to be a selected output column.
func checkOrderBy(req core.CompileRequest) error {
	selected := req.OutputNames()
	set := make(map[string]bool, len(selected))
	for _, name := range selected {
		set[name] = true
	}
	for _, o := range req.OrderBy {
		if !set[o.Column] {
			return &core.InvalidOrderByError{Column: o.Column, Selected: selected}
		}
	}
	return nil
}
