package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/pkg/core"
	"github.com/leapstack-labs/leapmetrics/pkg/rules"
)

// ClassifyOptions holds options for the classify command.
type ClassifyOptions struct {
	Name string
	Tags []string
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand() *cobra.Command {
	opts := &ClassifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show classification definitions",
		Long: `Look up classifications from business_rules.yml by name or tag.
A name takes precedence over tags. Without either, every classification
is shown.`,
		Example: `  leapmetrics classify --name high_value_customer
  leapmetrics classify --tag revenue -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRules(cmd, func(cmdCtx *CommandContext, rs *rules.RuleSet) error {
				match := rs.MatchClassifications(core.ClassificationQuery{Name: opts.Name, Tags: opts.Tags})
				r := cmdCtx.Renderer
				if r.EffectiveMode() == output.ModeJSON {
					return r.JSON(match)
				}
				renderClassifications(r, match)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "Classification name")
	cmd.Flags().StringSliceVarP(&opts.Tags, "tag", "t", nil, "Filter by tag (repeatable)")
	_ = cmd.RegisterFlagCompletionFunc("name", func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		var names []string
		_ = withRules(cmd, func(_ *CommandContext, rs *rules.RuleSet) error {
			names = rs.ClassificationNames()
			return nil
		})
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func renderClassifications(r *output.Renderer, m core.ClassificationMatch) {
	if len(m.Classifications) == 0 {
		r.Warning("no matching classifications")
		r.Println("Available: " + strings.Join(m.AvailableNames, ", "))
		return
	}

	for i, c := range m.Classifications {
		if i > 0 {
			r.Println("")
		}
		r.Header(2, c.Name)
		pairs := [][2]string{
			{"description", c.Description},
			{"condition", c.Condition},
		}
		if len(c.Tags) > 0 {
			pairs = append(pairs, [2]string{"tags", strings.Join(c.Tags, ", ")})
		}
		keys := make([]string, 0, len(c.Characteristics))
		for k := range c.Characteristics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pairs = append(pairs, [2]string{k, c.Characteristics[k]})
		}
		r.KeyValues(pairs)
	}
	r.Println("")
	r.Muted(fmt.Sprintf("%d of %d classifications", len(m.Classifications), len(m.AvailableNames)))
}
