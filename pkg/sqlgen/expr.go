package sqlgen

import (
	"fmt"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

var comparisons = map[core.FilterOp]string{
	core.OpEq:  "=",
	core.OpNe:  "<>",
	core.OpGt:  ">",
	core.OpGte: ">=",
	core.OpLt:  "<",
	core.OpLte: "<=",
}

// filter renders one predicate. Values are always bound, never inlined.
func (p *printer) filter(f core.PlanFilter) {
	switch f.Op {
	case core.OpIn, core.OpNotIn:
		if len(f.Values) == 0 {
			// IN () is not valid SQL.
			if f.Op == core.OpIn {
				p.write("1 = 0")
			} else {
				p.write("1 = 1")
			}
			return
		}
		p.column(f.Column)
		if f.Op == core.OpIn {
			p.write(" IN (")
		} else {
			p.write(" NOT IN (")
		}
		p.list(len(f.Values), func(i int) { p.bind(f.Values[i]) }, ", ", false)
		p.write(")")
	default:
		p.column(f.Column)
		if f.Value == nil {
			if f.Op == core.OpNe {
				p.write(" IS NOT NULL")
			} else {
				p.write(" IS NULL")
			}
			return
		}
		p.write(" " + comparisons[f.Op] + " ")
		p.bind(f.Value)
	}
}

func (p *printer) aggregate(a core.PlanAggregate) error {
	arg := func(i int) error {
		if i >= len(a.Args) {
			return fmt.Errorf("aggregate %q: %s needs %d argument(s), got %d", a.Name, a.Func, i+1, len(a.Args))
		}
		p.column(a.Args[i])
		return nil
	}
	call := func(fn string) error {
		p.write(fn + "(")
		if err := arg(0); err != nil {
			return err
		}
		p.write(")")
		return nil
	}

	if a.ZeroIfNull {
		p.write("COALESCE(")
	}
	var err error
	switch a.Func {
	case core.FuncCountRows:
		p.write("COUNT(*)")
	case core.FuncCount:
		err = call("COUNT")
	case core.FuncSum:
		err = call("SUM")
	case core.FuncAvg:
		err = call("AVG")
	case core.FuncMin:
		err = call("MIN")
	case core.FuncMax:
		err = call("MAX")
	case core.FuncCountDistinct:
		p.write("COUNT(DISTINCT ")
		err = arg(0)
		p.write(")")
	case core.FuncSumRatio:
		p.write("CAST(SUM(")
		if err = arg(0); err != nil {
			break
		}
		p.write(") AS " + p.dialect.FloatType + ") / NULLIF(SUM(")
		err = arg(1)
		p.write("), 0)")
	default:
		err = fmt.Errorf("aggregate %q: unsupported function %q", a.Name, a.Func)
	}
	if a.ZeroIfNull {
		p.write(", 0)")
	}
	return err
}
