package semantic

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// validate checks the structural invariants of a model set and returns one
// message per violation, in model order.
func validate(models []core.Model) problems {
	var probs problems

	names := make(map[string]bool, len(models))
	for _, m := range models {
		if names[m.Name] {
			probs.addf("models: duplicate model %q", m.Name)
		}
		names[m.Name] = true
	}

	for _, m := range models {
		path := "models." + m.Name
		if m.Name == "" {
			probs.addf("models: model name must not be empty")
		}
		if strings.TrimSpace(m.Table) == "" {
			probs.addf("%s: missing required field \"table\"", path)
		}

		for _, name := range m.DimensionNames() {
			d := m.Dimensions[name]
			if strings.Contains(name, ".") {
				probs.addf("%s.dimensions.%s: name must not contain '.'", path, name)
			}
			if d.Column == "" {
				probs.addf("%s.dimensions.%s: missing required field \"column\"", path, name)
			}
		}

		if m.TimeDimension != "" {
			if _, ok := m.Dimensions[m.TimeDimension]; !ok {
				probs.addf("%s: time_dimension %q is not a declared dimension", path, m.TimeDimension)
			}
		}

		for _, name := range m.MeasureNames() {
			ms := m.Measures[name]
			if strings.Contains(name, ".") {
				probs.addf("%s.measures.%s: name must not contain '.'", path, name)
			}
			if _, ok := core.ParseAggregationKind(string(ms.Kind)); !ok {
				probs.addf("%s.measures.%s: invalid type %q", path, name, ms.Kind)
				continue
			}
			if ms.Kind.RequiresColumn() && ms.Column == "" {
				err := &core.AggregationColumnRequiredError{Model: m.Name, Measure: name, Agg: ms.Kind}
				probs.addf("%s.measures.%s: %v", path, name, err)
			}
		}

		for _, alias := range m.JoinAliases() {
			j := m.Joins[alias]
			jpath := fmt.Sprintf("%s.joins.%s", path, alias)
			if strings.Contains(alias, ".") {
				probs.addf("%s: alias must not contain '.'", jpath)
			}
			if _, ok := core.ParseCardinality(string(j.Cardinality)); !ok {
				probs.addf("%s: invalid type %q", jpath, j.Cardinality)
			}
			if j.ToModel == "" {
				probs.addf("%s: missing required field \"to_model\"", jpath)
			} else if !names[j.ToModel] {
				probs.addf("%s: target model %q is not defined", jpath, j.ToModel)
			}
			if j.ForeignKey == "" {
				probs.addf("%s: missing required field \"foreign_key\"", jpath)
			}
			if j.RelatedKey == "" {
				probs.addf("%s: missing required field \"related_key\"", jpath)
			}
		}
	}

	return probs
}
