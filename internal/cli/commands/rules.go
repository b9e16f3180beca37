package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/rules"
)

// RulesOptions holds options for the rules command.
type RulesOptions struct {
	Category string
	Concepts []string
}

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	opts := &RulesOptions{}
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show business rules",
		Long: `List the business rules in business_rules.yml.

Select rules by category, or by the concepts they apply to. A category
takes precedence over concepts. Without either, every rule is shown.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: {rules, categories}`,
		Example: `  # All rules
  leapmetrics rules

  # Rules in one category
  leapmetrics rules --category data_quality

  # Rules touching a measure
  leapmetrics rules --concept orders.total_amount`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRules(cmd, func(cmdCtx *CommandContext, rs *rules.RuleSet) error {
				match := rs.MatchRules(core.RuleQuery{Category: opts.Category, Concepts: opts.Concepts})
				r := cmdCtx.Renderer
				switch r.EffectiveMode() {
				case output.ModeJSON:
					return r.JSON(match)
				case output.ModeMarkdown:
					rulesMarkdown(r, match)
				default:
					rulesText(r, match)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Category, "category", "c", "", "Filter by category")
	cmd.Flags().StringSliceVar(&opts.Concepts, "concept", nil, "Filter by concept (repeatable)")
	_ = cmd.RegisterFlagCompletionFunc("category", func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		var cats []string
		_ = withRules(cmd, func(_ *CommandContext, rs *rules.RuleSet) error {
			cats = rs.Categories()
			return nil
		})
		return cats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// groupByCategory returns categories in sorted order with their rules.
func groupByCategory(rs []core.Rule) ([]string, map[string][]core.Rule) {
	byCat := make(map[string][]core.Rule)
	for _, r := range rs {
		byCat[r.Category] = append(byCat[r.Category], r)
	}
	cats := make([]string, 0, len(byCat))
	for c := range byCat {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats, byCat
}

func severityStyle(styles *output.Styles, s core.Severity) lipgloss.Style {
	switch s {
	case core.SeverityCritical:
		return styles.Error
	case core.SeverityWarning:
		return styles.Warning
	default:
		return styles.Info
	}
}

func rulesText(r *output.Renderer, m core.RuleMatch) {
	styles := r.Styles()
	if len(m.Rules) == 0 {
		r.Muted("No matching rules. Categories: " + strings.Join(m.Categories, ", "))
		return
	}

	r.Header(1, fmt.Sprintf("Business Rules (%d)", len(m.Rules)))
	cats, byCat := groupByCategory(m.Rules)
	for _, cat := range cats {
		r.Println(styles.Header2.Render(output.Title(cat)))
		for _, rule := range byCat[cat] {
			sev := severityStyle(styles, rule.Severity).Render(fmt.Sprintf("[%s]", rule.Severity))
			r.Printf("  %s %s\n", sev, styles.Bold.Render(rule.Name))
			r.Printf("    %s\n", rule.Description)
			r.Printf("    %s %s\n", styles.Muted.Render("guidance:"), rule.Guidance)
			if len(rule.AppliesTo) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("applies to:"), strings.Join(rule.AppliesTo, ", "))
			}
		}
		r.Println("")
	}
}

func rulesMarkdown(r *output.Renderer, m core.RuleMatch) {
	r.Println(output.FormatHeader(1, "Business Rules"))
	r.Println("")
	if len(m.Rules) == 0 {
		r.Println("No matching rules.")
		r.Println("")
		r.Printf("**Categories**: %s\n", strings.Join(m.Categories, ", "))
		return
	}

	cats, byCat := groupByCategory(m.Rules)
	for _, cat := range cats {
		r.Println(output.FormatHeader(2, output.Title(cat)))
		r.Println("")
		for _, rule := range byCat[cat] {
			r.Printf("### %s (%s)\n\n", rule.Name, rule.Severity)
			r.Printf("%s\n\n", rule.Description)
			r.Printf("- **Guidance**: %s\n", rule.Guidance)
			if len(rule.AppliesTo) > 0 {
				r.Printf("- **Applies to**: %s\n", strings.Join(rule.AppliesTo, ", "))
			}
			r.Println("")
		}
	}
}

// withRules runs fn with the loaded business rules.
func withRules(cmd *cobra.Command, fn func(*CommandContext, *rules.RuleSet) error) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cmdCtx.Close() }()

	rs, err := cmdCtx.Project.Rules()
	if err != nil {
		return err
	}
	return fn(cmdCtx, rs)
}
