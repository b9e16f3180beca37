package rules

import "github.com/leapstack-labs/leapmetrics/pkg/core"

// MatchRules selects rules by category or, when no category is given, by
// concept intersection. An empty query returns every rule. Categories always
// lists the whole rule set's categories.
func (rs *RuleSet) MatchRules(q core.RuleQuery) core.RuleMatch {
	var matched []core.Rule
	switch {
	case q.Category != "":
		for _, r := range rs.rules {
			if r.Category == q.Category {
				matched = append(matched, r)
			}
		}
	case len(q.Concepts) > 0:
		for i := range rs.rules {
			if rs.rules[i].AppliesToAny(q.Concepts) {
				matched = append(matched, rs.rules[i])
			}
		}
	default:
		matched = rs.Rules()
	}
	if matched == nil {
		matched = []core.Rule{}
	}
	return core.RuleMatch{Rules: matched, Categories: rs.Categories()}
}

// MatchClassifications looks up a classification by name, else filters by
// tags, else returns all of them. An unknown name yields an empty result.
func (rs *RuleSet) MatchClassifications(q core.ClassificationQuery) core.ClassificationMatch {
	matched := []core.Classification{}
	switch {
	case q.Name != "":
		for _, c := range rs.classifications {
			if c.Name == q.Name {
				matched = append(matched, c)
				break
			}
		}
	case len(q.Tags) > 0:
		for i := range rs.classifications {
			if rs.classifications[i].HasAnyTag(q.Tags) {
				matched = append(matched, rs.classifications[i])
			}
		}
	default:
		matched = append(matched, rs.classifications...)
	}
	names := rs.ClassificationNames()
	if names == nil {
		names = []string{}
	}
	return core.ClassificationMatch{Classifications: matched, AvailableNames: names}
}
