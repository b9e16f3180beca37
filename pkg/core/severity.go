package core

import "strings"

// =============================================================================
// Severity
// =============================================================================

// Severity indicates the display priority of a business rule.
// It never affects matching.
type Severity string

// Severity levels for business rules.
const (
	// SeverityCritical marks rules that invalidate a naive reading of the data.
	SeverityCritical Severity = "critical"
	// SeverityWarning marks rules that should be reviewed before reporting.
	SeverityWarning Severity = "warning"
	// SeverityInfo marks informational guidance.
	SeverityInfo Severity = "info"
)

// DefaultSeverity applies when a rule omits its severity.
const DefaultSeverity = SeverityInfo

// ParseSeverity converts a string to a Severity value.
// An empty string yields DefaultSeverity. Returns false for unknown values.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultSeverity, true
	case "critical":
		return SeverityCritical, true
	case "warning":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return "", false
	}
}

// Rank orders severities for display, most severe first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// =============================================================================
// Rules and classifications
// =============================================================================

// Rule is a governance statement attached to one or more concepts.
type Rule struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	AppliesTo   []string `json:"applies_to"`
	Description string   `json:"description"`
	Guidance    string   `json:"guidance"`
}

// AppliesToAny reports whether the rule's concepts intersect the given set.
// Matching is exact string equality.
func (r *Rule) AppliesToAny(concepts []string) bool {
	for _, c := range concepts {
		for _, a := range r.AppliesTo {
			if a == c {
				return true
			}
		}
	}
	return false
}

// Classification is a named, tag-bearing categorization of data entities.
// Condition is opaque and evaluated by callers, never here.
type Classification struct {
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Condition       string            `json:"condition"`
	Tags            []string          `json:"tags"`
	Characteristics map[string]string `json:"characteristics"`
}

// HasAnyTag reports whether the classification's tags intersect the given set.
func (c *Classification) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		for _, own := range c.Tags {
			if own == t {
				return true
			}
		}
	}
	return false
}
