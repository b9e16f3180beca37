// Package rules loads business rules and classifications and answers
// lookups against them.
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"gopkg.in/yaml.v3"
)

const documentName = "business rules"

// RuleSet is an immutable set of rules and classifications.
type RuleSet struct {
	rules           []core.Rule
	classifications []core.Classification
	categories      []string
	names           []string
}

type documentYAML struct {
	Rules           []ruleYAML `yaml:"rules"`
	Classifications yaml.Node  `yaml:"classifications,omitempty"`
}

type ruleYAML struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Severity    string   `yaml:"severity,omitempty"`
	AppliesTo   []string `yaml:"applies_to,omitempty"`
	Description string   `yaml:"description"`
	Guidance    string   `yaml:"guidance"`
}

type classificationYAML struct {
	Name            string            `yaml:"name"`
	Description     string            `yaml:"description"`
	Condition       string            `yaml:"condition"`
	Tags            []string          `yaml:"tags,omitempty"`
	Characteristics map[string]string `yaml:"characteristics,omitempty"`
}

// Load parses and validates a rules document. Classifications may be given
// as a list or as a mapping keyed by name; a mapping keeps document order.
func Load(data []byte) (*RuleSet, error) {
	var doc documentYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, schemaError("document is empty")
		}
		return nil, schemaError(fmt.Sprintf("invalid YAML: %v", err))
	}

	classes, err := decodeClassifications(&doc.Classifications)
	if err != nil {
		return nil, schemaError(err.Error())
	}

	rs := &RuleSet{}
	var probs []string
	for i, r := range doc.Rules {
		sev, ok := core.ParseSeverity(r.Severity)
		if !ok {
			probs = append(probs, fmt.Sprintf("rules[%d] %q: invalid severity %q (expected critical, warning or info)", i, r.Name, r.Severity))
		}
		rs.rules = append(rs.rules, core.Rule{
			Name:        r.Name,
			Category:    r.Category,
			Severity:    sev,
			AppliesTo:   r.AppliesTo,
			Description: r.Description,
			Guidance:    r.Guidance,
		})
	}
	for _, c := range classes {
		rs.classifications = append(rs.classifications, core.Classification(c))
	}

	probs = append(probs, validate(rs)...)
	if len(probs) > 0 {
		return nil, &core.SchemaValidationError{Document: documentName, Problems: probs}
	}
	rs.index()
	return rs, nil
}

// LoadFile loads a rules document from disk.
// A missing file yields a SpecNotFoundError.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from project configuration
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &core.SpecNotFoundError{Document: documentName, Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Load(data)
}

// New builds a rule set from constructed values, applying Load's validation.
func New(rules []core.Rule, classifications []core.Classification) (*RuleSet, error) {
	rs := &RuleSet{
		rules:           append([]core.Rule(nil), rules...),
		classifications: append([]core.Classification(nil), classifications...),
	}
	for i := range rs.rules {
		if rs.rules[i].Severity == "" {
			rs.rules[i].Severity = core.DefaultSeverity
		}
	}
	if probs := validate(rs); len(probs) > 0 {
		return nil, &core.SchemaValidationError{Document: documentName, Problems: probs}
	}
	rs.index()
	return rs, nil
}

func decodeClassifications(node *yaml.Node) ([]classificationYAML, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
	case yaml.SequenceNode:
		var out []classificationYAML
		for _, item := range node.Content {
			var c classificationYAML
			if err := decodeKnown(item, &c); err != nil {
				return nil, fmt.Errorf("classifications (line %d): %w", item.Line, err)
			}
			out = append(out, c)
		}
		return out, nil
	case yaml.MappingNode:
		var out []classificationYAML
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			var c classificationYAML
			if err := decodeKnown(v, &c); err != nil {
				return nil, fmt.Errorf("classifications.%s (line %d): %w", k.Value, v.Line, err)
			}
			if c.Name != "" && c.Name != k.Value {
				return nil, fmt.Errorf("classifications.%s: name %q does not match its key", k.Value, c.Name)
			}
			c.Name = k.Value
			out = append(out, c)
		}
		return out, nil
	}
	return nil, fmt.Errorf("classifications: expected a list or mapping (line %d)", node.Line)
}

// decodeKnown decodes a node rejecting fields out does not declare.
func decodeKnown(node *yaml.Node, out any) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func validate(rs *RuleSet) []string {
	var probs []string
	seen := make(map[string]bool, len(rs.rules))
	for i, r := range rs.rules {
		label := fmt.Sprintf("rules[%d]", i)
		if r.Name == "" {
			probs = append(probs, label+": missing required field \"name\"")
		} else {
			label = fmt.Sprintf("rule %q", r.Name)
			if seen[r.Name] {
				probs = append(probs, label+": duplicate rule name")
			}
			seen[r.Name] = true
		}
		for _, f := range []struct{ name, value string }{
			{"category", r.Category}, {"description", r.Description}, {"guidance", r.Guidance},
		} {
			if f.value == "" {
				probs = append(probs, fmt.Sprintf("%s: missing required field %q", label, f.name))
			}
		}
		if _, ok := core.ParseSeverity(string(r.Severity)); !ok && r.Severity != "" {
			probs = append(probs, fmt.Sprintf("%s: invalid severity %q", label, r.Severity))
		}
	}

	seen = make(map[string]bool, len(rs.classifications))
	for i, c := range rs.classifications {
		label := fmt.Sprintf("classifications[%d]", i)
		if c.Name == "" {
			probs = append(probs, label+": missing required field \"name\"")
		} else {
			label = fmt.Sprintf("classification %q", c.Name)
			if seen[c.Name] {
				probs = append(probs, label+": duplicate classification name")
			}
			seen[c.Name] = true
		}
		if c.Description == "" {
			probs = append(probs, label+": missing required field \"description\"")
		}
		if c.Condition == "" {
			probs = append(probs, label+": missing required field \"condition\"")
		}
	}
	return probs
}

func (rs *RuleSet) index() {
	set := make(map[string]bool)
	for _, r := range rs.rules {
		if !set[r.Category] {
			set[r.Category] = true
			rs.categories = append(rs.categories, r.Category)
		}
	}
	sort.Strings(rs.categories)
	for _, c := range rs.classifications {
		rs.names = append(rs.names, c.Name)
	}
}

func schemaError(problem string) error {
	return &core.SchemaValidationError{Document: documentName, Problems: []string{problem}}
}

// Rules returns every rule in document order.
func (rs *RuleSet) Rules() []core.Rule {
	return append([]core.Rule(nil), rs.rules...)
}

// Classifications returns every classification in document order.
func (rs *RuleSet) Classifications() []core.Classification {
	return append([]core.Classification(nil), rs.classifications...)
}

// Categories returns the distinct rule categories, sorted.
func (rs *RuleSet) Categories() []string {
	return append([]string{}, rs.categories...)
}

// ClassificationNames returns every classification name in document order.
func (rs *RuleSet) ClassificationNames() []string {
	return append([]string(nil), rs.names...)
}
