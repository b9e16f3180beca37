package core

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// Filters
// =============================================================================

// FilterOp is a comparison applied to a raw column before aggregation.
type FilterOp string

// Supported filter operators.
const (
	OpEq    FilterOp = "eq"
	OpNe    FilterOp = "ne"
	OpGt    FilterOp = "gt"
	OpGte   FilterOp = "gte"
	OpLt    FilterOp = "lt"
	OpLte   FilterOp = "lte"
	OpIn    FilterOp = "in"
	OpNotIn FilterOp = "not_in"
)

// FilterOps lists every supported operator.
var FilterOps = []FilterOp{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn}

// ParseFilterOp converts a request value to a FilterOp. Empty means eq.
func ParseFilterOp(s string) (FilterOp, bool) {
	if s == "" {
		return OpEq, true
	}
	for _, op := range FilterOps {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// IsSet reports whether the operator compares against a list of values.
func (op FilterOp) IsSet() bool {
	return op == OpIn || op == OpNotIn
}

// Filter restricts the joined row set before aggregation.
// Column is a raw column or dimension name, optionally qualified by a join
// alias chain ("customer.region").
type Filter struct {
	Column   string   `json:"column"`
	Operator FilterOp `json:"operator,omitempty"`
	Value    any      `json:"value"`
}

// =============================================================================
// Ordering
// =============================================================================

// OrderBy sorts the output by one of the selected output columns.
type OrderBy struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// UnmarshalJSON defaults Ascending to true when the field is absent.
func (o *OrderBy) UnmarshalJSON(data []byte) error {
	type plain OrderBy
	p := plain{Ascending: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = OrderBy(p)
	return nil
}

// ParseOrderBy parses "column", "column:asc" or "column:desc".
func ParseOrderBy(s string) OrderBy {
	col, dir, found := strings.Cut(s, ":")
	if !found {
		return OrderBy{Column: s, Ascending: true}
	}
	return OrderBy{Column: col, Ascending: !strings.EqualFold(dir, "desc")}
}

// =============================================================================
// Requests
// =============================================================================

// CompileRequest asks for measures grouped by dimensions on a root model.
type CompileRequest struct {
	ModelName  string    `json:"model_name"`
	Measures   []string  `json:"measures"`
	Dimensions []string  `json:"dimensions,omitempty"`
	Filters    []Filter  `json:"filters,omitempty"`
	OrderBy    []OrderBy `json:"order_by,omitempty"`
	Limit      *int      `json:"limit,omitempty"`
}

// OutputNames returns dimensions followed by measures, the order of the
// compiled select list.
func (r *CompileRequest) OutputNames() []string {
	names := make([]string, 0, len(r.Dimensions)+len(r.Measures))
	names = append(names, r.Dimensions...)
	return append(names, r.Measures...)
}

// RuleQuery selects business rules by category or concepts.
type RuleQuery struct {
	Category string   `json:"category,omitempty"`
	Concepts []string `json:"concepts,omitempty"`
}

// RuleMatch is the answer to a RuleQuery.
// Categories always lists every category in the rule set.
type RuleMatch struct {
	Rules      []Rule   `json:"rules"`
	Categories []string `json:"categories"`
}

// ClassificationQuery selects classifications by name or tags.
type ClassificationQuery struct {
	Name string   `json:"name,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

// ClassificationMatch is the answer to a ClassificationQuery.
// AvailableNames always lists every classification name.
type ClassificationMatch struct {
	Classifications []Classification `json:"classifications"`
	AvailableNames  []string         `json:"available_names"`
}
