package compiler

import (
	"fmt"
	"reflect"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// normalizeValue checks a filter operand against its operator. Set operators
// take a list; the rest take a scalar. A nil operand is only meaningful for
// eq and ne, which compile to IS [NOT] NULL.
func normalizeValue(column string, op core.FilterOp, v any) (any, []any, error) {
	list, isList := asList(v)
	if op.IsSet() {
		if !isList {
			return nil, nil, &core.InvalidRequestError{Field: "filters", Reason: fmt.Sprintf("operator %s on %q requires a list value", op, column)}
		}
		return nil, list, nil
	}
	if isList {
		return nil, nil, &core.InvalidRequestError{Field: "filters", Reason: fmt.Sprintf("operator %s on %q requires a scalar value", op, column)}
	}
	if v == nil && op != core.OpEq && op != core.OpNe {
		return nil, nil, &core.InvalidRequestError{Field: "filters", Reason: fmt.Sprintf("operator %s on %q cannot compare with null", op, column)}
	}
	return v, nil, nil
}

// asList converts slices and arrays (other than byte slices) to []any.
func asList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
