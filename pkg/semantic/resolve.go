package semantic

import (
	"strings"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// Resolved is a field reference bound to the model that declares it.
type Resolved struct {
	// Reference is the reference as requested ("customer.name").
	Reference string
	// Model declares the field.
	Model *core.Model
	// Field is the last segment of the reference.
	Field string
	// JoinPath lists the joins traversed from the root, in order. Empty for
	// local references.
	JoinPath []core.Join
}

// PathKey returns the alias chain of the join path ("customer.company").
func (r *Resolved) PathKey() string {
	return PathKey(r.JoinPath)
}

// PathKey joins the aliases of a join path with dots.
func PathKey(path []core.Join) string {
	aliases := make([]string, len(path))
	for i, j := range path {
		aliases[i] = j.Alias
	}
	return strings.Join(aliases, ".")
}

// SplitReference separates a dotted reference into its alias chain and field.
func SplitReference(ref string) (aliases []string, field string) {
	parts := strings.Split(ref, ".")
	return parts[:len(parts)-1], parts[len(parts)-1]
}

// ResolveDimension resolves a dimension reference against root.
func (r *Registry) ResolveDimension(root *core.Model, ref string) (*Resolved, error) {
	res, err := r.walk(root, ref)
	if err != nil {
		return nil, err
	}
	if _, ok := res.Model.Dimension(res.Field); !ok {
		return nil, &core.UnknownDimensionError{Model: res.Model.Name, Name: res.Field, Available: res.Model.DimensionNames()}
	}
	return res, nil
}

// ResolveMeasure resolves a measure reference against root.
func (r *Registry) ResolveMeasure(root *core.Model, ref string) (*Resolved, error) {
	res, err := r.walk(root, ref)
	if err != nil {
		return nil, err
	}
	if _, ok := res.Model.Measure(res.Field); !ok {
		return nil, &core.UnknownMeasureError{Model: res.Model.Name, Name: res.Field, Available: res.Model.MeasureNames()}
	}
	return res, nil
}

// ResolveColumn resolves a filter column against root. The field may name a
// dimension of the target model, whose column is used, or any raw column.
func (r *Registry) ResolveColumn(root *core.Model, ref string) (*Resolved, string, error) {
	res, err := r.walk(root, ref)
	if err != nil {
		return nil, "", err
	}
	if res.Field == "" {
		return nil, "", &core.InvalidRequestError{Field: "filter column", Reason: "empty column in " + quote(ref)}
	}
	if d, ok := res.Model.Dimension(res.Field); ok {
		return res, d.Column, nil
	}
	return res, res.Field, nil
}

// walk follows the literal alias chain of ref from root. It never searches
// for an indirect path. Revisiting a model on the chain is a cycle.
func (r *Registry) walk(root *core.Model, ref string) (*Resolved, error) {
	aliases, field := SplitReference(ref)

	current := root
	visited := map[string]bool{root.Name: true}
	path := make([]core.Join, 0, len(aliases))
	for _, alias := range aliases {
		j, ok := current.Join(alias)
		if !ok {
			return nil, &core.UnresolvableJoinError{
				Model:     current.Name,
				Reference: ref,
				Alias:     alias,
				Reason:    "is not declared; available joins: " + joinList(current),
			}
		}
		target, ok := r.models[j.ToModel]
		if !ok {
			return nil, &core.UnresolvableJoinError{Model: current.Name, Reference: ref, Alias: alias, Reason: "targets unknown model " + quote(j.ToModel)}
		}
		if visited[target.Name] {
			return nil, &core.UnresolvableJoinError{Model: current.Name, Reference: ref, Alias: alias, Reason: "revisits model " + quote(target.Name) + " (cycle)"}
		}
		visited[target.Name] = true
		path = append(path, j)
		current = target
	}

	return &Resolved{Reference: ref, Model: current, Field: field, JoinPath: path}, nil
}

func joinList(m *core.Model) string {
	aliases := m.JoinAliases()
	if len(aliases) == 0 {
		return "(none)"
	}
	return strings.Join(aliases, ", ")
}

func quote(s string) string {
	return `"` + s + `"`
}
