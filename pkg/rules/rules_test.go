package rules

import (
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := LoadFile(filepath.Join("testdata", "business_rules.yml"))
	require.NoError(t, err)
	return rs
}

func TestLoadFile(t *testing.T) {
	rs := loadFixture(t)

	rules := rs.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, core.SeverityCritical, rules[0].Severity)
	assert.Equal(t, core.SeverityInfo, rules[1].Severity, "severity defaults to info")
	assert.Equal(t, []string{"data_quality", "metrics"}, rs.Categories())

	assert.Equal(t, []string{"high_value_customer", "churn_risk", "bulk_order"}, rs.ClassificationNames())
	hv := rs.Classifications()[0]
	assert.Equal(t, "lifetime_value > 1000", hv.Condition)
	assert.Equal(t, map[string]string{"retention": "high", "segment": "premium"}, hv.Characteristics)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "business_rules.yml"))
	var notFound *core.SpecNotFoundError
	require.ErrorAs(t, err, &notFound)
	kind, _ := core.KindOf(err)
	assert.Equal(t, core.KindSpecNotFound, kind)
}

func TestLoad_ClassificationList(t *testing.T) {
	rs, err := Load([]byte(`
rules: []
classifications:
  - name: b
    description: B
    condition: x > 1
  - name: a
    description: A
    condition: y > 1
    tags: [t]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, rs.ClassificationNames())
	assert.Empty(t, rs.Categories())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		problem string
	}{
		{"empty", "", "document is empty"},
		{"bad yaml", "rules: [", "invalid YAML"},
		{"unknown field", "rules:\n  - name: a\n    category: c\n    description: d\n    guidance: g\n    owner: me\n", "owner"},
		{"bad severity", "rules:\n  - name: a\n    category: c\n    severity: urgent\n    description: d\n    guidance: g\n", `invalid severity "urgent"`},
		{"missing category", "rules:\n  - name: a\n    description: d\n    guidance: g\n", `missing required field "category"`},
		{"duplicate rule", "rules:\n  - {name: a, category: c, description: d, guidance: g}\n  - {name: a, category: c, description: d, guidance: g}\n", "duplicate rule name"},
		{"classification missing condition", "rules: []\nclassifications:\n  x:\n    description: d\n", `missing required field "condition"`},
		{"classification name mismatch", "rules: []\nclassifications:\n  x:\n    name: y\n    description: d\n    condition: c\n", "does not match its key"},
		{"classifications scalar", "rules: []\nclassifications: 3\n", "expected a list or mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			var schemaErr *core.SchemaValidationError
			require.ErrorAs(t, err, &schemaErr)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestMatchRules(t *testing.T) {
	rs := loadFixture(t)

	tests := []struct {
		name  string
		query core.RuleQuery
		want  []string
	}{
		{"all", core.RuleQuery{}, []string{"cash_tips_not_recorded", "revenue_excludes_refunds", "late_orders_restated"}},
		{"by category", core.RuleQuery{Category: "metrics"}, []string{"revenue_excludes_refunds", "late_orders_restated"}},
		{"by concept", core.RuleQuery{Concepts: []string{"tip_amount"}}, []string{"cash_tips_not_recorded"}},
		{"concepts intersect", core.RuleQuery{Concepts: []string{"revenue", "orders.order_date"}}, []string{"revenue_excludes_refunds", "late_orders_restated"}},
		{"exact match only", core.RuleQuery{Concepts: []string{"tip"}}, nil},
		{"category wins over concepts", core.RuleQuery{Category: "data_quality", Concepts: []string{"revenue"}}, []string{"cash_tips_not_recorded"}},
		{"unknown category", core.RuleQuery{Category: "finance"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rs.MatchRules(tt.query)
			names := make([]string, 0, len(got.Rules))
			for _, r := range got.Rules {
				names = append(names, r.Name)
			}
			if tt.want == nil {
				assert.Empty(t, names)
				assert.NotNil(t, got.Rules)
			} else {
				assert.Equal(t, tt.want, names)
			}
			assert.Equal(t, []string{"data_quality", "metrics"}, got.Categories, "categories are never filtered")
		})
	}
}

func TestMatchRules_CashTips(t *testing.T) {
	rs, err := New([]core.Rule{
		{Name: "cash_tips_not_recorded", Category: "data_quality", Severity: core.SeverityCritical, AppliesTo: []string{"tip_amount"}, Description: "d", Guidance: "g"},
		{Name: "fiscal_year", Category: "calendar", AppliesTo: []string{"order_date"}, Description: "d", Guidance: "g"},
	}, nil)
	require.NoError(t, err)

	got := rs.MatchRules(core.RuleQuery{Concepts: []string{"tip_amount"}})
	require.Len(t, got.Rules, 1)
	assert.Equal(t, "cash_tips_not_recorded", got.Rules[0].Name)
	assert.Equal(t, core.SeverityCritical, got.Rules[0].Severity)
	assert.Equal(t, []string{"calendar", "data_quality"}, got.Categories)
	assert.Equal(t, core.SeverityInfo, rs.Rules()[1].Severity)
}

func TestMatchClassifications(t *testing.T) {
	rs := loadFixture(t)
	all := []string{"high_value_customer", "churn_risk", "bulk_order"}

	tests := []struct {
		name  string
		query core.ClassificationQuery
		want  []string
	}{
		{"all", core.ClassificationQuery{}, all},
		{"by name", core.ClassificationQuery{Name: "churn_risk"}, []string{"churn_risk"}},
		{"unknown name is empty", core.ClassificationQuery{Name: "vip"}, []string{}},
		{"name wins over tags", core.ClassificationQuery{Name: "bulk_order", Tags: []string{"customer"}}, []string{"bulk_order"}},
		{"by tag", core.ClassificationQuery{Tags: []string{"customer"}}, []string{"high_value_customer", "churn_risk"}},
		{"tags intersect", core.ClassificationQuery{Tags: []string{"orders", "retention"}}, []string{"churn_risk", "bulk_order"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rs.MatchClassifications(tt.query)
			names := make([]string, 0, len(got.Classifications))
			for _, c := range got.Classifications {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, all, got.AvailableNames)
		})
	}
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, []core.Classification{{Name: "x", Description: "d", Condition: "c"}, {Name: "x", Description: "d", Condition: "c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate classification name")
}
