package core

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error taxonomy
// =============================================================================

// ErrorKind is a stable identifier for an error category, safe to expose to
// callers that branch on it.
type ErrorKind string

// Error kinds.
const (
	KindSpecNotFound              ErrorKind = "spec_not_found"
	KindSchemaValidation          ErrorKind = "schema_validation"
	KindUnknownModel              ErrorKind = "unknown_model"
	KindUnknownMeasure            ErrorKind = "unknown_measure"
	KindUnknownDimension          ErrorKind = "unknown_dimension"
	KindUnresolvableJoin          ErrorKind = "unresolvable_join"
	KindInvalidFilterOperator     ErrorKind = "invalid_filter_operator"
	KindInvalidOrderBy            ErrorKind = "invalid_order_by"
	KindAggregationColumnRequired ErrorKind = "aggregation_column_required"
	KindInvalidRequest            ErrorKind = "invalid_request"
	KindFanOut                    ErrorKind = "fan_out"
	KindExecution                 ErrorKind = "execution_error"
)

// KindedError is implemented by every error in the taxonomy.
type KindedError interface {
	error
	Kind() ErrorKind
}

// KindOf returns the kind of the first taxonomy error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.Kind(), true
	}
	return "", false
}

// IsRequestError reports whether err is a request-validation failure raised
// before any backend interaction.
func IsRequestError(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindSpecNotFound, KindSchemaValidation, KindExecution:
		return false
	default:
		return true
	}
}

// SpecNotFoundError signals that an optional document is absent.
// It is a feature signal, not a fault.
type SpecNotFoundError struct {
	Document string
	Path     string
}

func (e *SpecNotFoundError) Error() string {
	return fmt.Sprintf("%s not found at %s", e.Document, e.Path)
}

// Kind implements KindedError.
func (e *SpecNotFoundError) Kind() ErrorKind { return KindSpecNotFound }

// SchemaValidationError reports every problem found while loading a document.
type SchemaValidationError struct {
	Document string
	Problems []string
}

func (e *SchemaValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid %s: %s", e.Document, e.Problems[0])
	}
	return fmt.Sprintf("invalid %s (%d problems):\n  - %s", e.Document, len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// Kind implements KindedError.
func (e *SchemaValidationError) Kind() ErrorKind { return KindSchemaValidation }

// UnknownModelError is returned for a model name absent from the registry.
type UnknownModelError struct {
	Name      string
	Available []string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("model %q not found; available models: %s", e.Name, strings.Join(e.Available, ", "))
}

// Kind implements KindedError.
func (e *UnknownModelError) Kind() ErrorKind { return KindUnknownModel }

// UnknownMeasureError is returned for a measure absent from its model.
type UnknownMeasureError struct {
	Model     string
	Name      string
	Available []string
}

func (e *UnknownMeasureError) Error() string {
	return fmt.Sprintf("measure %q not found on model %q; available measures: %s", e.Name, e.Model, strings.Join(e.Available, ", "))
}

// Kind implements KindedError.
func (e *UnknownMeasureError) Kind() ErrorKind { return KindUnknownMeasure }

// UnknownDimensionError is returned for a dimension absent from its model.
type UnknownDimensionError struct {
	Model     string
	Name      string
	Available []string
}

func (e *UnknownDimensionError) Error() string {
	return fmt.Sprintf("dimension %q not found on model %q; available dimensions: %s", e.Name, e.Model, strings.Join(e.Available, ", "))
}

// Kind implements KindedError.
func (e *UnknownDimensionError) Kind() ErrorKind { return KindUnknownDimension }

// UnresolvableJoinError is returned when an alias chain cannot be walked.
type UnresolvableJoinError struct {
	Model     string
	Reference string
	Alias     string
	Reason    string
}

func (e *UnresolvableJoinError) Error() string {
	return fmt.Sprintf("cannot resolve %q from model %q: join %q %s", e.Reference, e.Model, e.Alias, e.Reason)
}

// Kind implements KindedError.
func (e *UnresolvableJoinError) Kind() ErrorKind { return KindUnresolvableJoin }

// InvalidFilterOperatorError is returned for an unsupported filter operator.
type InvalidFilterOperatorError struct {
	Column   string
	Operator string
}

func (e *InvalidFilterOperatorError) Error() string {
	ops := make([]string, len(FilterOps))
	for i, op := range FilterOps {
		ops[i] = string(op)
	}
	return fmt.Sprintf("unsupported filter operator %q on column %q; supported: %s", e.Operator, e.Column, strings.Join(ops, ", "))
}

// Kind implements KindedError.
func (e *InvalidFilterOperatorError) Kind() ErrorKind { return KindInvalidFilterOperator }

// InvalidOrderByError is returned when ordering by a column that is not selected.
type InvalidOrderByError struct {
	Column   string
	Selected []string
}

func (e *InvalidOrderByError) Error() string {
	return fmt.Sprintf("cannot order by %q: not a selected column; selected: %s", e.Column, strings.Join(e.Selected, ", "))
}

// Kind implements KindedError.
func (e *InvalidOrderByError) Kind() ErrorKind { return KindInvalidOrderBy }

// AggregationColumnRequiredError is returned for a non-count measure without a column.
type AggregationColumnRequiredError struct {
	Model   string
	Measure string
	Agg     AggregationKind
}

func (e *AggregationColumnRequiredError) Error() string {
	return fmt.Sprintf("measure %q on model %q has type %q and requires a column", e.Measure, e.Model, e.Agg)
}

// Kind implements KindedError.
func (e *AggregationColumnRequiredError) Kind() ErrorKind { return KindAggregationColumnRequired }

// InvalidRequestError is returned for a malformed request field.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Kind implements KindedError.
func (e *InvalidRequestError) Kind() ErrorKind { return KindInvalidRequest }

// FanOutError is returned when a request cannot be compiled without
// multiplying fact rows across a one-to-many join.
type FanOutError struct {
	Reference string
	Path      string
	Reason    string
}

func (e *FanOutError) Error() string {
	return fmt.Sprintf("%q crosses one_to_many join %q: %s", e.Reference, e.Path, e.Reason)
}

// Kind implements KindedError.
func (e *FanOutError) Kind() ErrorKind { return KindFanOut }

// ExecutionError wraps a failure raised by an execution backend.
type ExecutionError struct {
	Database string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("database %q: %v", e.Database, e.Err)
}

// Unwrap returns the backend error.
func (e *ExecutionError) Unwrap() error { return e.Err }

// Kind implements KindedError.
func (e *ExecutionError) Kind() ErrorKind { return KindExecution }
