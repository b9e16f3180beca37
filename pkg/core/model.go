package core

import "sort"

// =============================================================================
// Aggregation kinds
// =============================================================================

// AggregationKind is the closed set of aggregations a measure may declare.
type AggregationKind string

// Supported aggregation kinds.
const (
	AggCount         AggregationKind = "count"
	AggSum           AggregationKind = "sum"
	AggAvg           AggregationKind = "avg"
	AggMin           AggregationKind = "min"
	AggMax           AggregationKind = "max"
	AggCountDistinct AggregationKind = "count_distinct"
)

// AggregationKinds lists every supported kind in declaration order.
var AggregationKinds = []AggregationKind{AggCount, AggSum, AggAvg, AggMin, AggMax, AggCountDistinct}

// ParseAggregationKind converts a document value to an AggregationKind.
func ParseAggregationKind(s string) (AggregationKind, bool) {
	for _, k := range AggregationKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// RequiresColumn reports whether the kind aggregates a source column.
// Only count works on rows alone.
func (k AggregationKind) RequiresColumn() bool {
	return k != AggCount
}

// =============================================================================
// Join cardinality
// =============================================================================

// Cardinality describes how many target rows match one source row.
type Cardinality string

// Supported cardinalities.
const (
	ManyToOne Cardinality = "many_to_one"
	OneToOne  Cardinality = "one_to_one"
	OneToMany Cardinality = "one_to_many"
)

// DefaultCardinality applies when a join omits its type.
const DefaultCardinality = ManyToOne

// ParseCardinality converts a document value to a Cardinality.
// An empty value yields DefaultCardinality.
func ParseCardinality(s string) (Cardinality, bool) {
	switch Cardinality(s) {
	case "":
		return DefaultCardinality, true
	case ManyToOne, OneToOne, OneToMany:
		return Cardinality(s), true
	default:
		return "", false
	}
}

// FansOut reports whether joining through this cardinality can multiply source rows.
func (c Cardinality) FansOut() bool {
	return c == OneToMany
}

// =============================================================================
// Model
// =============================================================================

// DefaultSchema is used when a model omits its schema.
const DefaultSchema = "main"

// Dimension is a groupable, filterable attribute of a model.
type Dimension struct {
	Name        string `json:"name"`
	Column      string `json:"column"`
	Description string `json:"description,omitempty"`
}

// Measure is a named aggregation over a model column.
// Column is empty for count measures.
type Measure struct {
	Name        string          `json:"name"`
	Kind        AggregationKind `json:"type"`
	Column      string          `json:"column,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Join is a declared relationship from one model to another.
type Join struct {
	Alias       string      `json:"alias"`
	ToModel     string      `json:"to_model"`
	ForeignKey  string      `json:"foreign_key"`
	RelatedKey  string      `json:"related_key"`
	Cardinality Cardinality `json:"type"`
}

// Model maps one physical table to its dimensions, measures and joins.
// Models are owned by a registry and must not be modified after load.
type Model struct {
	Name          string               `json:"name"`
	Table         string               `json:"table"`
	Schema        string               `json:"schema"`
	Database      string               `json:"database,omitempty"`
	Description   string               `json:"description,omitempty"`
	PrimaryKey    string               `json:"primary_key,omitempty"`
	TimeDimension string               `json:"time_dimension,omitempty"`
	Dimensions    map[string]Dimension `json:"dimensions"`
	Measures      map[string]Measure   `json:"measures"`
	Joins         map[string]Join      `json:"joins"`
}

// Dimension looks up a dimension by name.
func (m *Model) Dimension(name string) (Dimension, bool) {
	d, ok := m.Dimensions[name]
	return d, ok
}

// Measure looks up a measure by name.
func (m *Model) Measure(name string) (Measure, bool) {
	ms, ok := m.Measures[name]
	return ms, ok
}

// Join looks up a join by alias.
func (m *Model) Join(alias string) (Join, bool) {
	j, ok := m.Joins[alias]
	return j, ok
}

// DimensionNames returns dimension names sorted.
func (m *Model) DimensionNames() []string {
	return sortedKeys(m.Dimensions)
}

// MeasureNames returns measure names sorted.
func (m *Model) MeasureNames() []string {
	return sortedKeys(m.Measures)
}

// JoinAliases returns join aliases sorted.
func (m *Model) JoinAliases() []string {
	return sortedKeys(m.Joins)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
