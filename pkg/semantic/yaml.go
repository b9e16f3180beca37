package semantic

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// modelYAML is the document shape of one model. Nested maps are walked as
// nodes so duplicate and unknown keys can be reported with line numbers.
type modelYAML struct {
	Table         string    `yaml:"table"`
	Schema        string    `yaml:"schema,omitempty"`
	Database      string    `yaml:"database,omitempty"`
	Description   string    `yaml:"description,omitempty"`
	PrimaryKey    string    `yaml:"primary_key,omitempty"`
	TimeDimension string    `yaml:"time_dimension,omitempty"`
	Dimensions    yaml.Node `yaml:"dimensions,omitempty"`
	Measures      yaml.Node `yaml:"measures,omitempty"`
	Joins         yaml.Node `yaml:"joins,omitempty"`
}

type dimensionYAML struct {
	Column      string `yaml:"column"`
	Description string `yaml:"description,omitempty"`
}

type measureYAML struct {
	Type        string `yaml:"type"`
	Column      string `yaml:"column,omitempty"`
	Description string `yaml:"description,omitempty"`
}

type joinYAML struct {
	ToModel    string `yaml:"to_model"`
	ForeignKey string `yaml:"foreign_key"`
	RelatedKey string `yaml:"related_key"`
	Type       string `yaml:"type,omitempty"`
}

var (
	documentFields  = fieldSet("models")
	modelFields     = fieldSet("table", "schema", "database", "description", "primary_key", "time_dimension", "dimensions", "measures", "joins")
	dimensionFields = fieldSet("column", "description")
	measureFields   = fieldSet("type", "column", "description")
	joinFields      = fieldSet("to_model", "foreign_key", "related_key", "type")
)

func fieldSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// keyValue is one entry of a YAML mapping.
type keyValue struct {
	Key   string
	Line  int
	Value *yaml.Node
}

// problems accumulates validation failures for a single document.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// mappingEntries returns the entries of a mapping node in document order.
// A null node yields no entries. Duplicate keys are reported and skipped.
func mappingEntries(node *yaml.Node, path string, probs *problems) []keyValue {
	if node == nil || node.Kind == 0 || isNull(node) {
		return nil
	}
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		probs.addf("%s: expected a mapping (line %d)", path, node.Line)
		return nil
	}

	seen := make(map[string]int, len(node.Content)/2)
	entries := make([]keyValue, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if first, dup := seen[k.Value]; dup {
			probs.addf("%s: duplicate key %q (line %d, first defined on line %d)", path, k.Value, k.Line, first)
			continue
		}
		seen[k.Value] = k.Line
		entries = append(entries, keyValue{Key: k.Value, Line: k.Line, Value: v})
	}
	return entries
}

// checkFields reports keys of a mapping node that are not in known.
func checkFields(node *yaml.Node, known map[string]bool, path string, probs *problems) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i]
		if !known[k.Value] {
			probs.addf("%s: unknown field %q (line %d); known fields: %s", path, k.Value, k.Line, strings.Join(sortedFields(known), ", "))
		}
	}
}

// decodeStrict reports unknown fields then decodes node into out.
// It returns false only when decoding itself failed.
func decodeStrict(node *yaml.Node, out any, known map[string]bool, path string, probs *problems) bool {
	if node.Kind != yaml.MappingNode {
		probs.addf("%s: expected a mapping (line %d)", path, node.Line)
		return false
	}
	checkFields(node, known, path, probs)
	if err := node.Decode(out); err != nil {
		probs.addf("%s: %v", path, err)
		return false
	}
	return true
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

func sortedFields(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
