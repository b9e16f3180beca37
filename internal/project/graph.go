package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmetrics/internal/dag"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/semantic"
)

// JoinGraph builds the model graph of reg: one node per model, one edge per
// join from the declaring model to its target labeled with the alias.
// Self-joins have no edge and are returned separately.
func JoinGraph(reg *semantic.Registry) (*dag.Graph, []core.Join) {
	g := dag.NewGraph()
	for _, m := range reg.Models() {
		g.AddNode(m.Name, m)
	}

	var selfJoins []core.Join
	for _, m := range reg.Models() {
		for _, alias := range m.JoinAliases() {
			j := m.Joins[alias]
			if j.ToModel == m.Name {
				selfJoins = append(selfJoins, j)
				continue
			}
			// Targets were checked at load time.
			_ = g.AddEdge(m.Name, j.ToModel, alias)
		}
	}
	return g, selfJoins
}

// IssueLevel classifies a validation finding.
type IssueLevel string

// Issue levels.
const (
	LevelWarning IssueLevel = "warning"
	LevelError   IssueLevel = "error"
)

// Issue is one validation finding.
type Issue struct {
	Level   IssueLevel `json:"level"`
	Model   string     `json:"model,omitempty"`
	Message string     `json:"message"`
}

// Report summarizes a project validation.
type Report struct {
	Models          int     `json:"models"`
	Joins           int     `json:"joins"`
	Rules           int     `json:"rules"`
	Classifications int     `json:"classifications"`
	Issues          []Issue `json:"issues"`
}

// HasErrors reports whether any issue is an error.
func (r *Report) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Level == LevelError {
			return true
		}
	}
	return false
}

func (r *Report) add(level IssueLevel, model, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Level: level, Model: model, Message: fmt.Sprintf(format, args...)})
}

// MetadataFunc fetches live table metadata for a model.
type MetadataFunc func(ctx context.Context, m *core.Model) (*core.TableMetadata, error)

// Validate inspects a loaded snapshot. Structural errors were already
// rejected at load time; Validate reports what loading tolerates: missing
// documents, join cycles, self-joins and rule concepts naming unknown
// fields. With a non-nil metadata function, declared columns are checked
// against the live tables.
func Validate(ctx context.Context, snap *Snapshot, metadata MetadataFunc) *Report {
	report := &Report{Issues: []Issue{}}

	if !snap.HasModels() {
		report.add(LevelWarning, "", "%s not found; compilation is unavailable", core.SemanticModelFile)
	}
	if !snap.HasRules() {
		report.add(LevelWarning, "", "%s not found; business context is unavailable", core.BusinessRulesFile)
	} else {
		report.Rules = len(snap.Rules.Rules())
		report.Classifications = len(snap.Rules.Classifications())
	}
	if !snap.HasModels() {
		return report
	}

	reg := snap.Registry
	graph, selfJoins := JoinGraph(reg)
	report.Models = graph.NodeCount()
	report.Joins = graph.EdgeCount() + len(selfJoins)

	for _, j := range selfJoins {
		report.add(LevelWarning, j.ToModel, "join %q targets its own model", j.Alias)
	}
	if cyclic, path := graph.HasCycle(); cyclic {
		report.add(LevelWarning, path[0], "join cycle: %s", strings.Join(path, " -> "))
	}

	if snap.HasRules() {
		checkConcepts(report, reg, snap.Rules.Rules())
	}

	if metadata != nil {
		for _, m := range reg.Models() {
			checkColumns(ctx, report, m, metadata)
		}
	}
	return report
}

// checkConcepts flags "model.field" concepts whose model exists but lacks the field.
func checkConcepts(report *Report, reg *semantic.Registry, rules []core.Rule) {
	for _, r := range rules {
		for _, concept := range r.AppliesTo {
			modelName, field, ok := strings.Cut(concept, ".")
			if !ok {
				continue
			}
			m, err := reg.GetModel(modelName)
			if err != nil {
				continue
			}
			_, isDim := m.Dimension(field)
			_, isMeasure := m.Measure(field)
			if !isDim && !isMeasure {
				report.add(LevelWarning, m.Name, "rule %q references unknown field %q", r.Name, concept)
			}
		}
	}
}

func checkColumns(ctx context.Context, report *Report, m *core.Model, metadata MetadataFunc) {
	meta, err := metadata(ctx, m)
	if err != nil {
		report.add(LevelError, m.Name, "table %s.%s: %v", m.Schema, m.Table, err)
		return
	}

	check := func(kind, name, column string) {
		if column != "" && !meta.HasColumn(column) {
			report.add(LevelError, m.Name, "%s %q: column %q not found in %s.%s", kind, name, column, m.Schema, m.Table)
		}
	}
	for _, name := range m.DimensionNames() {
		check("dimension", name, m.Dimensions[name].Column)
	}
	for _, name := range m.MeasureNames() {
		check("measure", name, m.Measures[name].Column)
	}
	for _, alias := range m.JoinAliases() {
		check("join", alias, m.Joins[alias].ForeignKey)
	}
	if m.PrimaryKey != "" {
		check("primary key", m.PrimaryKey, m.PrimaryKey)
	}
}
