package semantic

import (
	"bytes"
	"fmt"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"gopkg.in/yaml.v3"
)

// modelOut mirrors modelYAML for encoding. Maps are emitted with sorted keys.
type modelOut struct {
	Table         string                   `yaml:"table"`
	Schema        string                   `yaml:"schema"`
	Database      string                   `yaml:"database,omitempty"`
	Description   string                   `yaml:"description,omitempty"`
	PrimaryKey    string                   `yaml:"primary_key,omitempty"`
	TimeDimension string                   `yaml:"time_dimension,omitempty"`
	Dimensions    map[string]dimensionYAML `yaml:"dimensions,omitempty"`
	Measures      map[string]measureYAML   `yaml:"measures,omitempty"`
	Joins         map[string]joinYAML      `yaml:"joins,omitempty"`
}

// Marshal serializes the registry back to a models document.
// Loading the output yields an equivalent registry.
func (r *Registry) Marshal() ([]byte, error) {
	models := &yaml.Node{Kind: yaml.MappingNode}
	for _, m := range r.Models() {
		value := &yaml.Node{}
		if err := value.Encode(toOut(m)); err != nil {
			return nil, fmt.Errorf("failed to encode model %s: %w", m.Name, err)
		}
		models.Content = append(models.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: m.Name},
			value,
		)
	}

	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "models"},
		models,
	}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode semantic model: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode semantic model: %w", err)
	}
	return buf.Bytes(), nil
}

func toOut(m *core.Model) modelOut {
	out := modelOut{
		Table:         m.Table,
		Schema:        m.Schema,
		Database:      m.Database,
		Description:   m.Description,
		PrimaryKey:    m.PrimaryKey,
		TimeDimension: m.TimeDimension,
	}
	if len(m.Dimensions) > 0 {
		out.Dimensions = make(map[string]dimensionYAML, len(m.Dimensions))
		for name, d := range m.Dimensions {
			out.Dimensions[name] = dimensionYAML{Column: d.Column, Description: d.Description}
		}
	}
	if len(m.Measures) > 0 {
		out.Measures = make(map[string]measureYAML, len(m.Measures))
		for name, ms := range m.Measures {
			out.Measures[name] = measureYAML{Type: string(ms.Kind), Column: ms.Column, Description: ms.Description}
		}
	}
	if len(m.Joins) > 0 {
		out.Joins = make(map[string]joinYAML, len(m.Joins))
		for alias, j := range m.Joins {
			out.Joins[alias] = joinYAML{
				ToModel:    j.ToModel,
				ForeignKey: j.ForeignKey,
				RelatedKey: j.RelatedKey,
				Type:       string(j.Cardinality),
			}
		}
	}
	return out
}
