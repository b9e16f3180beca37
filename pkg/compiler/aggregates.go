package compiler

import (
	"fmt"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/semantic"
)

// aggregate builds the select-list aggregate for a measure. Measures inside a
// pre-aggregated branch become partials of the subquery plus an outer
// re-aggregation over those partials.
func (b *builder) aggregate(m *semantic.Resolved) (core.PlanAggregate, error) {
	ms := m.Model.Measures[m.Field]
	n := b.node(m)

	if n == nil || n.branch == nil {
		countKey := ""
		if n != nil {
			// Rows null-extended by the left join must not count.
			countKey = n.join.RelatedKey
		}
		return direct(m.Reference, ms, b.outerRelation(n), countKey), nil
	}

	br := n.branch
	inner := b.innerRelation(n)
	countKey := ""
	if n != br {
		countKey = n.join.RelatedKey
	}
	partial := func(kind core.AggregationKind) core.ColumnRef {
		name := fmt.Sprintf("m%d", len(br.preAgg.Partials))
		p := direct(name, core.Measure{Kind: kind, Column: ms.Column}, inner, countKey)
		br.preAgg.Partials = append(br.preAgg.Partials, p)
		return core.ColumnRef{Relation: br.relation, Column: name}
	}

	switch ms.Kind {
	case core.AggCount:
		return core.PlanAggregate{Name: m.Reference, Func: core.FuncSum, Args: []core.ColumnRef{partial(core.AggCount)}, ZeroIfNull: true}, nil
	case core.AggSum:
		return core.PlanAggregate{Name: m.Reference, Func: core.FuncSum, Args: []core.ColumnRef{partial(core.AggSum)}}, nil
	case core.AggMin:
		return core.PlanAggregate{Name: m.Reference, Func: core.FuncMin, Args: []core.ColumnRef{partial(core.AggMin)}}, nil
	case core.AggMax:
		return core.PlanAggregate{Name: m.Reference, Func: core.FuncMax, Args: []core.ColumnRef{partial(core.AggMax)}}, nil
	case core.AggAvg:
		sum := partial(core.AggSum)
		// COUNT(column) skips nulls, matching AVG.
		cnt := b.countColumnPartial(br, inner, ms.Column)
		return core.PlanAggregate{Name: m.Reference, Func: core.FuncSumRatio, Args: []core.ColumnRef{sum, cnt}}, nil
	default:
		return core.PlanAggregate{}, &core.FanOutError{
			Reference: m.Reference,
			Path:      br.path,
			Reason:    fmt.Sprintf("%s cannot be re-aggregated from pre-aggregated rows", ms.Kind),
		}
	}
}

func (b *builder) countColumnPartial(br *joinNode, inner, column string) core.ColumnRef {
	name := fmt.Sprintf("m%d", len(br.preAgg.Partials))
	br.preAgg.Partials = append(br.preAgg.Partials, core.PlanAggregate{
		Name: name,
		Func: core.FuncCount,
		Args: []core.ColumnRef{{Relation: inner, Column: column}},
	})
	return core.ColumnRef{Relation: br.relation, Column: name}
}

// direct maps a measure to its aggregate over relation rel. countKey, when
// set, makes count measures count non-null keys instead of rows.
func direct(name string, ms core.Measure, rel, countKey string) core.PlanAggregate {
	arg := []core.ColumnRef{{Relation: rel, Column: ms.Column}}
	switch ms.Kind {
	case core.AggCount:
		if countKey == "" {
			return core.PlanAggregate{Name: name, Func: core.FuncCountRows}
		}
		return core.PlanAggregate{Name: name, Func: core.FuncCount, Args: []core.ColumnRef{{Relation: rel, Column: countKey}}}
	case core.AggSum:
		return core.PlanAggregate{Name: name, Func: core.FuncSum, Args: arg}
	case core.AggAvg:
		return core.PlanAggregate{Name: name, Func: core.FuncAvg, Args: arg}
	case core.AggMin:
		return core.PlanAggregate{Name: name, Func: core.FuncMin, Args: arg}
	case core.AggMax:
		return core.PlanAggregate{Name: name, Func: core.FuncMax, Args: arg}
	default:
		return core.PlanAggregate{Name: name, Func: core.FuncCountDistinct, Args: arg}
	}
}
