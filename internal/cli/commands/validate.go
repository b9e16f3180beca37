package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/cli/output"
	"github.com/leapstack-labs/leapmetrics/internal/project"
)

// ErrValidationFailed is returned when validation reports errors.
var ErrValidationFailed = errors.New("validation failed")

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	CheckColumns bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the semantic model and business rules",
		Long: `Load semantic_model.yml and business_rules.yml and report problems.

Schema errors stop loading and are reported directly. Loaded documents
are checked for join cycles, self-joins and rule concepts that name
unknown fields. With --check-columns every declared column is compared
with the live table in the model's database.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  leapmetrics validate
  leapmetrics validate --check-columns -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.CheckColumns, "check-columns", false, "Compare declared columns with the live tables")
	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = cmdCtx.Close() }()

	var metadata project.MetadataFunc
	if opts.CheckColumns {
		exec, err := cmdCtx.Executor(false)
		if err != nil {
			return err
		}
		metadata = exec.TableMetadata
	}

	report := project.Validate(cmd.Context(), cmdCtx.Project.Snapshot(), metadata)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(report); err != nil {
			return err
		}
	case output.ModeMarkdown:
		validateMarkdown(r, report)
	default:
		validateText(r, report)
	}

	if report.HasErrors() {
		return ErrValidationFailed
	}
	return nil
}

func countLevels(report *project.Report) (errs, warns int) {
	for _, i := range report.Issues {
		if i.Level == project.LevelError {
			errs++
		} else {
			warns++
		}
	}
	return errs, warns
}

func issueLine(i project.Issue) string {
	if i.Model == "" {
		return i.Message
	}
	return i.Model + ": " + i.Message
}

func validateText(r *output.Renderer, report *project.Report) {
	styles := r.Styles()

	r.Println(styles.Header1.Render("Project Validation"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Printf("   Models: %d | Joins: %d | Rules: %d | Classifications: %d\n",
		report.Models, report.Joins, report.Rules, report.Classifications)
	r.Println("")

	for _, i := range report.Issues {
		icon := styles.Warning.Render("!")
		if i.Level == project.LevelError {
			icon = styles.StatusFailed.String()
		}
		r.Printf("   %s %s\n", icon, issueLine(i))
	}
	if len(report.Issues) > 0 {
		r.Println("")
	}

	errs, warns := countLevels(report)
	switch {
	case errs > 0:
		r.Error(fmt.Sprintf("%d errors, %d warnings", errs, warns))
	case warns > 0:
		r.Warning(fmt.Sprintf("%d warnings", warns))
	default:
		r.Success("no issues found")
	}
}

func validateMarkdown(r *output.Renderer, report *project.Report) {
	r.Println(output.FormatHeader(1, "Project Validation"))
	r.Println("")
	r.Printf("- **Models**: %d\n", report.Models)
	r.Printf("- **Joins**: %d\n", report.Joins)
	r.Printf("- **Rules**: %d\n", report.Rules)
	r.Printf("- **Classifications**: %d\n", report.Classifications)
	r.Println("")

	if len(report.Issues) == 0 {
		r.Println("No issues found.")
		return
	}
	r.Println(output.FormatHeader(2, "Issues"))
	r.Println("")
	for _, i := range report.Issues {
		r.Printf("- **%s** %s\n", i.Level, issueLine(i))
	}
}
