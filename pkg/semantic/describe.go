package semantic

import (
	"sort"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// Summary is the one-line listing of a model.
type Summary struct {
	Name        string `json:"name"`
	Table       string `json:"table"`
	Description string `json:"description,omitempty"`
	Dimensions  int    `json:"dimensions"`
	Measures    int    `json:"measures"`
	Joins       int    `json:"joins"`
}

// Description is a model with its fields in name order.
type Description struct {
	Name          string           `json:"name"`
	Table         string           `json:"table"`
	Schema        string           `json:"schema"`
	Database      string           `json:"database,omitempty"`
	Description   string           `json:"description,omitempty"`
	PrimaryKey    string           `json:"primary_key,omitempty"`
	TimeDimension string           `json:"time_dimension,omitempty"`
	Dimensions    []core.Dimension `json:"dimensions"`
	Measures      []core.Measure   `json:"measures"`
	Joins         []core.Join      `json:"joins"`
}

// Summaries lists every model sorted by name.
func (r *Registry) Summaries() []Summary {
	names := r.ListModels()
	out := make([]Summary, 0, len(names))
	for _, name := range names {
		m := r.models[name]
		out = append(out, Summary{
			Name:        m.Name,
			Table:       m.Schema + "." + m.Table,
			Description: m.Description,
			Dimensions:  len(m.Dimensions),
			Measures:    len(m.Measures),
			Joins:       len(m.Joins),
		})
	}
	return out
}

// DescribeModel returns the named model's full description.
func (r *Registry) DescribeModel(name string) (*Description, error) {
	m, err := r.GetModel(name)
	if err != nil {
		return nil, err
	}

	d := &Description{
		Name:          m.Name,
		Table:         m.Table,
		Schema:        m.Schema,
		Database:      m.Database,
		Description:   m.Description,
		PrimaryKey:    m.PrimaryKey,
		TimeDimension: m.TimeDimension,
		Dimensions:    make([]core.Dimension, 0, len(m.Dimensions)),
		Measures:      make([]core.Measure, 0, len(m.Measures)),
		Joins:         make([]core.Join, 0, len(m.Joins)),
	}
	for _, dim := range m.Dimensions {
		d.Dimensions = append(d.Dimensions, dim)
	}
	for _, ms := range m.Measures {
		d.Measures = append(d.Measures, ms)
	}
	for _, j := range m.Joins {
		d.Joins = append(d.Joins, j)
	}
	sort.Slice(d.Dimensions, func(i, j int) bool { return d.Dimensions[i].Name < d.Dimensions[j].Name })
	sort.Slice(d.Measures, func(i, j int) bool { return d.Measures[i].Name < d.Measures[j].Name })
	sort.Slice(d.Joins, func(i, j int) bool { return d.Joins[i].Alias < d.Joins[j].Alias })
	return d, nil
}
