// Package sqlgen renders compiled plans as dialect SQL with bind arguments.
package sqlgen

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
)

// Query is rendered SQL plus its bind arguments in placeholder order.
type Query struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args,omitempty"`
}

// ErrEmptyPlan is returned for a plan without output columns.
var ErrEmptyPlan = errors.New("plan has no output columns")

// Generate renders plan in dialect d.
func Generate(plan *core.Plan, d *dialect.Dialect) (*Query, error) {
	if plan == nil || len(plan.Columns) == 0 {
		return nil, ErrEmptyPlan
	}
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}

	p := newPrinter(d)
	if err := p.selectStmt(plan); err != nil {
		return nil, err
	}
	return &Query{SQL: p.String(), Args: p.args}, nil
}

func (p *printer) selectStmt(plan *core.Plan) error {
	p.write("SELECT")
	p.writeln()
	p.indent()
	var err error
	p.list(len(plan.Columns), func(i int) {
		c := plan.Columns[i]
		switch {
		case c.Dimension != nil:
			p.column(*c.Dimension)
		case c.Aggregate != nil:
			if e := p.aggregate(*c.Aggregate); e != nil && err == nil {
				err = e
			}
		default:
			if err == nil {
				err = fmt.Errorf("output column %q has neither a dimension nor an aggregate", c.Name)
			}
		}
		p.write(" AS ")
		p.ident(c.Name)
	}, ",", true)
	p.dedent()
	p.writeln()
	if err != nil {
		return err
	}

	p.write("FROM ")
	p.table(plan.Source)
	p.writeln()

	for _, j := range plan.Joins {
		if err := p.join(j); err != nil {
			return err
		}
	}

	p.where(plan.Filters)
	p.groupBy(plan.GroupBy)

	if len(plan.OrderBy) > 0 {
		p.write("ORDER BY ")
		p.list(len(plan.OrderBy), func(i int) {
			o := plan.OrderBy[i]
			p.ident(o.Column)
			if o.Ascending {
				p.write(" ASC")
			} else {
				p.write(" DESC")
			}
			if p.dialect.NullsOrdering != "" {
				p.write(" " + p.dialect.NullsOrdering)
			}
		}, ", ", false)
		p.writeln()
	}

	if plan.Limit != nil {
		p.write("LIMIT " + strconv.Itoa(*plan.Limit))
		p.writeln()
	}
	return nil
}

func (p *printer) join(j core.PlanJoin) error {
	switch j.Kind {
	case core.JoinInner:
		p.write("INNER JOIN ")
	default:
		p.write("LEFT JOIN ")
	}

	switch {
	case j.PreAggregate != nil:
		if err := p.preAggregate(j.PreAggregate); err != nil {
			return err
		}
	case j.Table != nil:
		p.table(*j.Table)
	default:
		return fmt.Errorf("join %q has neither a table nor a pre-aggregate", j.Path)
	}

	p.write(" ON ")
	p.column(j.On.Left)
	p.write(" = ")
	p.column(j.On.Right)
	p.writeln()
	return nil
}

// preAggregate renders a one-row-per-key subquery and its alias.
func (p *printer) preAggregate(pa *core.PreAggregate) error {
	p.write("(")
	p.writeln()
	p.indent()

	p.write("SELECT")
	p.writeln()
	p.indent()
	p.column(pa.Key)
	p.write(" AS ")
	p.ident(pa.KeyName)
	for _, agg := range pa.Partials {
		p.write(",")
		p.writeln()
		if err := p.aggregate(agg); err != nil {
			return err
		}
		p.write(" AS ")
		p.ident(agg.Name)
	}
	p.dedent()
	p.writeln()

	p.write("FROM ")
	p.table(pa.Source)
	p.writeln()
	for _, j := range pa.Joins {
		if err := p.join(j); err != nil {
			return err
		}
	}
	p.where(pa.Filters)
	p.groupBy([]core.ColumnRef{pa.Key})

	p.dedent()
	p.write(") AS ")
	p.ident(pa.Relation)
	return nil
}

func (p *printer) where(filters []core.PlanFilter) {
	if len(filters) == 0 {
		return
	}
	p.write("WHERE ")
	p.list(len(filters), func(i int) {
		if i > 0 {
			p.write("  AND ")
		}
		p.filter(filters[i])
	}, "", true)
	p.writeln()
}

func (p *printer) groupBy(cols []core.ColumnRef) {
	if len(cols) == 0 {
		return
	}
	p.write("GROUP BY ")
	p.list(len(cols), func(i int) { p.column(cols[i]) }, ", ", false)
	p.writeln()
}

func (p *printer) table(t core.TableRef) {
	p.write(p.dialect.QualifiedTable(t.Schema, t.Table))
	p.write(" AS ")
	p.ident(t.Relation)
}

func (p *printer) column(c core.ColumnRef) {
	p.ident(c.Relation)
	p.write(".")
	p.ident(c.Column)
}
