package semantic

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"gopkg.in/yaml.v3"
)

// documentName labels errors raised while loading a models document.
const documentName = "semantic model"

// Registry is an immutable set of models keyed by name.
type Registry struct {
	models map[string]*core.Model
	order  []string // document order
}

// Load parses and validates a models document.
// Every problem in the document is reported in one SchemaValidationError.
func Load(data []byte) (*Registry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &core.SchemaValidationError{Document: documentName, Problems: []string{fmt.Sprintf("invalid YAML: %v", err)}}
	}

	var probs problems
	if len(root.Content) == 0 {
		probs.addf("document is empty")
		return nil, &core.SchemaValidationError{Document: documentName, Problems: probs}
	}

	doc := root.Content[0]
	checkFields(doc, documentFields, "document", &probs)
	var modelsNode *yaml.Node
	for _, e := range mappingEntries(doc, "document", &probs) {
		if e.Key == "models" {
			modelsNode = e.Value
		}
	}
	if modelsNode == nil && len(probs) == 0 {
		probs.addf("document: missing required field \"models\"")
	}

	var models []core.Model
	for _, e := range mappingEntries(modelsNode, "models", &probs) {
		if m, ok := convertModel(e, &probs); ok {
			models = append(models, m)
		}
	}

	probs = append(probs, validate(models)...)
	if len(probs) > 0 {
		return nil, &core.SchemaValidationError{Document: documentName, Problems: probs}
	}
	return build(models), nil
}

// LoadFile loads a models document from disk.
// A missing file yields a SpecNotFoundError.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from project configuration
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &core.SpecNotFoundError{Document: documentName, Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Load(data)
}

// New builds a registry from already-constructed models, applying the same
// validation as Load. Empty schemas and cardinalities take their defaults.
func New(models ...core.Model) (*Registry, error) {
	normalized := make([]core.Model, len(models))
	for i, m := range models {
		if m.Schema == "" {
			m.Schema = core.DefaultSchema
		}
		m.Dimensions = cloneMap(m.Dimensions)
		m.Measures = cloneMap(m.Measures)
		joins := make(map[string]core.Join, len(m.Joins))
		for alias, j := range m.Joins {
			j.Alias = alias
			if j.Cardinality == "" {
				j.Cardinality = core.DefaultCardinality
			}
			joins[alias] = j
		}
		m.Joins = joins
		for name, d := range m.Dimensions {
			d.Name = name
			m.Dimensions[name] = d
		}
		for name, ms := range m.Measures {
			ms.Name = name
			m.Measures[name] = ms
		}
		normalized[i] = m
	}

	if probs := validate(normalized); len(probs) > 0 {
		return nil, &core.SchemaValidationError{Document: documentName, Problems: probs}
	}
	return build(normalized), nil
}

func build(models []core.Model) *Registry {
	r := &Registry{
		models: make(map[string]*core.Model, len(models)),
		order:  make([]string, 0, len(models)),
	}
	for i := range models {
		m := models[i]
		r.models[m.Name] = &m
		r.order = append(r.order, m.Name)
	}
	return r
}

// GetModel returns the named model.
func (r *Registry) GetModel(name string) (*core.Model, error) {
	if m, ok := r.models[name]; ok {
		return m, nil
	}
	return nil, &core.UnknownModelError{Name: name, Available: r.ListModels()}
}

// ListModels returns model names sorted.
func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns models in document order. Callers must not modify them.
func (r *Registry) Models() []*core.Model {
	out := make([]*core.Model, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// Len returns the number of models.
func (r *Registry) Len() int {
	return len(r.models)
}

func convertModel(e keyValue, probs *problems) (core.Model, bool) {
	path := "models." + e.Key
	var raw modelYAML
	if !decodeStrict(e.Value, &raw, modelFields, path, probs) {
		return core.Model{}, false
	}

	m := core.Model{
		Name:          e.Key,
		Table:         raw.Table,
		Schema:        raw.Schema,
		Database:      raw.Database,
		Description:   raw.Description,
		PrimaryKey:    raw.PrimaryKey,
		TimeDimension: raw.TimeDimension,
		Dimensions:    map[string]core.Dimension{},
		Measures:      map[string]core.Measure{},
		Joins:         map[string]core.Join{},
	}
	if m.Schema == "" {
		m.Schema = core.DefaultSchema
	}

	for _, d := range mappingEntries(&raw.Dimensions, path+".dimensions", probs) {
		var dy dimensionYAML
		if decodeStrict(d.Value, &dy, dimensionFields, path+".dimensions."+d.Key, probs) {
			m.Dimensions[d.Key] = core.Dimension{Name: d.Key, Column: dy.Column, Description: dy.Description}
		}
	}

	for _, ms := range mappingEntries(&raw.Measures, path+".measures", probs) {
		var my measureYAML
		mpath := path + ".measures." + ms.Key
		if !decodeStrict(ms.Value, &my, measureFields, mpath, probs) {
			continue
		}
		kind, ok := core.ParseAggregationKind(my.Type)
		if !ok {
			probs.addf("%s: invalid type %q (line %d)", mpath, my.Type, ms.Line)
			continue
		}
		m.Measures[ms.Key] = core.Measure{Name: ms.Key, Kind: kind, Column: my.Column, Description: my.Description}
	}

	for _, j := range mappingEntries(&raw.Joins, path+".joins", probs) {
		var jy joinYAML
		jpath := path + ".joins." + j.Key
		if !decodeStrict(j.Value, &jy, joinFields, jpath, probs) {
			continue
		}
		card, ok := core.ParseCardinality(jy.Type)
		if !ok {
			probs.addf("%s: invalid type %q (line %d)", jpath, jy.Type, j.Line)
			continue
		}
		m.Joins[j.Key] = core.Join{
			Alias:       j.Key,
			ToModel:     jy.ToModel,
			ForeignKey:  jy.ForeignKey,
			RelatedKey:  jy.RelatedKey,
			Cardinality: card,
		}
	}

	return m, true
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
