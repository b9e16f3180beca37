package compiler

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/semantic"
)

// preAggKey is the name of the join key column exposed by a pre-aggregate.
const preAggKey = "k"

// joinNode is one distinct alias-chain prefix required by a request.
type joinNode struct {
	path     string
	join     core.Join
	model    *core.Model
	parent   *joinNode // nil for joins off the root
	relation string

	// branch is the pre-aggregated one_to_many join this node sits at or
	// below. nil when the node is joined directly.
	branch *joinNode
	// Set on branch roots only.
	preAgg    *core.PreAggregate
	planIndex int
	nextInner int
}

// builder accumulates the join tree of one request.
type builder struct {
	reg      *semantic.Registry
	root     *core.Model
	nodes    map[string]*joinNode
	order    []*joinNode // first-use order; a prefix always precedes its extensions
	database string
}

func newBuilder(reg *semantic.Registry, root *core.Model) *builder {
	return &builder{
		reg:      reg,
		root:     root,
		nodes:    make(map[string]*joinNode),
		database: root.Database,
	}
}

// require registers every prefix of r's join path. Chain "a.b" requires "a".
func (b *builder) require(r *semantic.Resolved) error {
	var parent *joinNode
	for i, j := range r.JoinPath {
		key := semantic.PathKey(r.JoinPath[:i+1])
		n, ok := b.nodes[key]
		if !ok {
			model, err := b.reg.GetModel(j.ToModel)
			if err != nil {
				return err
			}
			if model.Database != "" {
				if b.database == "" {
					b.database = model.Database
				} else if model.Database != b.database {
					return &core.UnresolvableJoinError{
						Model:     parentModel(parent, b.root).Name,
						Reference: r.Reference,
						Alias:     j.Alias,
						Reason:    fmt.Sprintf("targets database %q but the query runs on %q", model.Database, b.database),
					}
				}
			}
			n = &joinNode{path: key, join: j, model: model, parent: parent}
			b.nodes[key] = n
			b.order = append(b.order, n)
		}
		parent = n
	}
	return nil
}

func parentModel(parent *joinNode, root *core.Model) *core.Model {
	if parent == nil {
		return root
	}
	return parent.model
}

// node returns the join node r's field lives on, or nil for root fields.
func (b *builder) node(r *semantic.Resolved) *joinNode {
	if len(r.JoinPath) == 0 {
		return nil
	}
	return b.nodes[r.PathKey()]
}

// markBranches decides which one_to_many joins are pre-aggregated. A
// one_to_many join is pre-aggregated whenever some measure lives outside
// its subtree: joining it directly would repeat those measures' rows.
func (b *builder) markBranches(measures []*semantic.Resolved) error {
	for _, n := range b.order {
		if n.parent != nil && n.parent.branch != nil {
			n.branch = n.parent.branch
			if n.join.Cardinality.FansOut() {
				return &core.FanOutError{
					Reference: n.path,
					Path:      n.branch.path,
					Reason:    "nested one_to_many joins inside a pre-aggregated branch are not supported",
				}
			}
			continue
		}
		if !n.join.Cardinality.FansOut() {
			continue
		}
		for _, m := range measures {
			if !within(m.PathKey(), n.path) {
				n.branch = n
				break
			}
		}
	}
	return nil
}

// within reports whether path is branch itself or lies below it.
func within(path, branch string) bool {
	return path == branch || strings.HasPrefix(path, branch+".")
}

// emitJoins assigns relation aliases and appends joins in dependency order.
// Joins below a pre-aggregated branch root are emitted inside its subquery.
func (b *builder) emitJoins(plan *core.Plan) {
	outer := 0
	for _, n := range b.order {
		if n.branch != nil && n.branch != n {
			continue
		}
		outer++
		n.relation = fmt.Sprintf("t%d", outer)

		pj := core.PlanJoin{
			Path:        n.path,
			Model:       n.model.Name,
			Cardinality: n.join.Cardinality,
			Kind:        core.JoinLeft,
			On: core.JoinCondition{
				Left: core.ColumnRef{Relation: b.outerRelation(n.parent), Column: n.join.ForeignKey},
			},
		}

		if n.branch == n {
			inner := n.relation + "_0"
			n.preAgg = &core.PreAggregate{
				Relation: n.relation,
				Source:   core.TableRef{Relation: inner, Schema: n.model.Schema, Table: n.model.Table},
				Key:      core.ColumnRef{Relation: inner, Column: n.join.RelatedKey},
				KeyName:  preAggKey,
			}
			pj.PreAggregate = n.preAgg
			pj.On.Right = core.ColumnRef{Relation: n.relation, Column: preAggKey}
		} else {
			pj.Table = &core.TableRef{Relation: n.relation, Schema: n.model.Schema, Table: n.model.Table}
			pj.On.Right = core.ColumnRef{Relation: n.relation, Column: n.join.RelatedKey}
		}

		n.planIndex = len(plan.Joins)
		plan.Joins = append(plan.Joins, pj)
	}

	for _, n := range b.order {
		if n.branch == nil || n.branch == n {
			continue
		}
		br := n.branch
		br.nextInner++
		n.relation = fmt.Sprintf("%s_%d", br.relation, br.nextInner)
		br.preAgg.Joins = append(br.preAgg.Joins, core.PlanJoin{
			Path:        n.path,
			Model:       n.model.Name,
			Cardinality: n.join.Cardinality,
			Kind:        core.JoinLeft,
			On: core.JoinCondition{
				Left:  core.ColumnRef{Relation: b.innerRelation(n.parent), Column: n.join.ForeignKey},
				Right: core.ColumnRef{Relation: n.relation, Column: n.join.RelatedKey},
			},
			Table: &core.TableRef{Relation: n.relation, Schema: n.model.Schema, Table: n.model.Table},
		})
	}
}

// outerRelation is the relation a node's columns are read from in the
// outer query. nil is the root.
func (b *builder) outerRelation(n *joinNode) string {
	if n == nil {
		return core.RootRelation
	}
	return n.relation
}

// innerRelation is the relation a node's columns are read from inside its
// pre-aggregate subquery.
func (b *builder) innerRelation(n *joinNode) string {
	if n.branch == n {
		return n.preAgg.Source.Relation
	}
	return n.relation
}

// addFilter places a filter in the outer WHERE clause or inside the
// pre-aggregate that owns its column. A filtered pre-aggregate is inner
// joined so the restriction also applies to the fact rows.
func (b *builder) addFilter(plan *core.Plan, f resolvedFilter) {
	n := b.node(f.res)
	pf := core.PlanFilter{Reference: f.res.Reference, Op: f.op, Value: f.value, Values: f.values}

	if n != nil && n.branch != nil {
		br := n.branch
		pf.Column = core.ColumnRef{Relation: b.innerRelation(n), Column: f.column}
		br.preAgg.Filters = append(br.preAgg.Filters, pf)
		plan.Joins[br.planIndex].Kind = core.JoinInner
		return
	}

	pf.Column = core.ColumnRef{Relation: b.outerRelation(n), Column: f.column}
	plan.Filters = append(plan.Filters, pf)
}
