package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/blogcheck/internal/cli/config"
	"github.com/leapstack-labs/blogcheck/internal/cli/output"
	"github.com/leapstack-labs/blogcheck/pkg/check"
	_ "github.com/leapstack-labs/blogcheck/pkg/check/blog" // register checklist rules
	"github.com/spf13/cobra"
)

// ErrChecksFailed is returned when an error-severity rule fails.
var ErrChecksFailed = errors.New("checks failed")

// groupOrder is the order groups appear in reports, following the exercise.
var groupOrder = []string{"project", "settings", "templates", "views", "routes"}

// maxRecommendations caps the hints shown after a report.
const maxRecommendations = 5

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Format  string   // Output format: text, markdown, json
	Watch   bool     // Re-run when project files change
	Disable []string // Rule IDs to skip, added to checks.disable
	Rules   []string // Run only these rule IDs
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the blog project against the exercise checklist",
		Long: `Check a Django blog project against the exercise checklist.

Every numbered task of the exercise is a rule: project layout, settings,
template inheritance, views and routes. Settings and URL configurations are
evaluated without running Python. View rules need a running development
server; set base_url (or --base-url) to enable them.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format

The command exits with a non-zero status when an error-severity rule fails.`,
		Example: `  # Check the project in the current directory
  blogcheck check

  # Include the view checks against a running server
  python manage.py runserver &
  blogcheck check --base-url http://127.0.0.1:8000

  # Only the template rules, as JSON
  blogcheck check --rule TP01,TP02,TP03 --format json

  # Re-run on every change
  blogcheck check --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, json")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run checks when project files change")
	cmd.Flags().StringSliceVar(&opts.Disable, "disable", nil, "Rule IDs to skip (comma-separated)")
	cmd.Flags().StringSliceVar(&opts.Rules, "rule", nil, "Run only these rule IDs (comma-separated)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	completeRules := func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return ruleIDs(), cobra.ShellCompDirectiveNoFileComp
	}
	_ = cmd.RegisterFlagCompletionFunc("disable", completeRules)
	_ = cmd.RegisterFlagCompletionFunc("rule", completeRules)

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	// Override renderer if format flag is set
	if opts.Format != "" {
		mode, err := output.ParseMode(opts.Format)
		if err != nil {
			return err
		}
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
	}

	if err := cfg.ValidateProjectDir(); err != nil {
		return err
	}
	for _, id := range append(append([]string{}, opts.Rules...), opts.Disable...) {
		if _, ok := check.GetByID(strings.ToUpper(id)); !ok {
			return fmt.Errorf("rule %q not found (run 'blogcheck rules' to list rules)", id)
		}
	}

	runCfg := *cfg
	runCfg.Checks.Disable = append(append([]string{}, cfg.Checks.Disable...), upperAll(opts.Disable)...)
	runner := check.NewRunner(runnerConfig(&runCfg, upperAll(opts.Rules)))

	if opts.Watch {
		return watchProject(cmd.Context(), cfg.ProjectDir, cmdCtx.Logger, func() {
			report := runChecks(cmd.Context(), &runCfg, cmdCtx, runner)
			_ = renderReport(r, report)
		})
	}

	report := runChecks(cmd.Context(), &runCfg, cmdCtx, runner)
	if err := renderReport(r, report); err != nil {
		return err
	}
	if report.HasErrors() {
		return ErrChecksFailed
	}
	return nil
}

// runChecks loads the project and runs the checklist once.
func runChecks(ctx context.Context, cfg *config.Config, cmdCtx *CommandContext, runner *check.Runner) *check.Report {
	if ctx == nil {
		ctx = context.Background()
	}
	c := buildCheckContext(cfg, cmdCtx.Logger)
	report := runner.Run(ctx, c)
	cmdCtx.Logger.Debug("checks finished",
		"run_id", report.RunID, "passed", report.Passed, "failed", report.Failed, "skipped", report.Skipped)
	return report
}

func renderReport(r *output.Renderer, report *check.Report) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(report)
	case output.ModeMarkdown:
		return renderReportMarkdown(r, report)
	default:
		return renderReportText(r, report)
	}
}

// groupedResults returns results bucketed by group in groupOrder, with
// unknown groups appended alphabetically.
func groupedResults(results []check.RuleResult) ([]string, map[string][]check.RuleResult) {
	byGroup := make(map[string][]check.RuleResult)
	for _, res := range results {
		byGroup[res.Group] = append(byGroup[res.Group], res)
	}
	return orderGroups(byGroup), byGroup
}

func orderGroups[T any](byGroup map[string][]T) []string {
	var groups []string
	known := make(map[string]bool)
	for _, g := range groupOrder {
		known[g] = true
		if len(byGroup[g]) > 0 {
			groups = append(groups, g)
		}
	}
	var extra []string
	for g := range byGroup {
		if !known[g] {
			extra = append(extra, g)
		}
	}
	sort.Strings(extra)
	return append(groups, extra...)
}

// recommendations returns the hints of failed rules, most urgent first.
func recommendations(report *check.Report) []string {
	var recs []string
	seen := make(map[string]bool)
	for _, sev := range []check.Severity{check.SeverityError, check.SeverityWarning, check.SeverityInfo} {
		for _, res := range report.Results {
			if res.Status != check.StatusFail || res.Severity != sev || res.Hint == "" || seen[res.Hint] {
				continue
			}
			seen[res.Hint] = true
			recs = append(recs, fmt.Sprintf("%s: %s", res.RuleID, res.Hint))
		}
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func diagnosticLocation(d check.Diagnostic) string {
	switch {
	case d.FilePath != "" && d.Line > 0:
		return fmt.Sprintf(" (%s:%d)", d.FilePath, d.Line)
	case d.Line > 0:
		return fmt.Sprintf(" (line %d)", d.Line)
	default:
		return ""
	}
}

func renderReportText(r *output.Renderer, report *check.Report) error {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("Blog Checklist Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println(styles.Muted.Render("   Project: " + report.Root))
	r.Println("")

	groups, byGroup := groupedResults(report.Results)
	titleCaser := cases.Title(language.English)
	for _, group := range groups {
		r.Println(styles.Bold.Render("   " + titleCaser.String(group)))
		r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))

		for _, res := range byGroup[group] {
			icon := styles.StatusSuccess.String()
			switch {
			case res.Status == check.StatusSkip:
				icon = styles.Muted.Render(output.IconSkipped)
			case res.Status == check.StatusFail && res.Severity == check.SeverityError:
				icon = styles.StatusFailed.String()
			case res.Status == check.StatusFail:
				icon = styles.Warning.Render(output.IconWarning)
			}

			line := fmt.Sprintf("%s %s: %s", icon, res.RuleID, res.Name)
			switch {
			case res.Status == check.StatusSkip:
				line += styles.Muted.Render(" (skipped: " + res.Reason + ")")
			case len(res.Diagnostics) > 1:
				line += fmt.Sprintf(" (%d issues)", len(res.Diagnostics))
			}
			r.Println("   " + line)

			for _, d := range res.Diagnostics {
				r.Println(styles.Muted.Render("       - " + d.Message + diagnosticLocation(d)))
			}
		}
		r.Println("")
	}

	// Score
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Printf("   Passed: %d | Failed: %d | Skipped: %d\n", report.Passed, report.Failed, report.Skipped)
	scoreStyle := styles.Success
	if report.Score < 70 {
		scoreStyle = styles.Warning
	}
	if report.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", report.Score)))
	r.Println("")

	// Recommendations
	if recs := recommendations(report); len(recs) > 0 {
		r.Println(styles.Header2.Render("Next Steps"))
		for i, rec := range recs {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderReportMarkdown(r *output.Renderer, report *check.Report) error {
	r.Println("# Blog Checklist Report")
	r.Println("")
	r.Println(output.FormatKeyValue("Project", report.Root))
	r.Println(output.FormatKeyValue("Run", report.RunID))
	r.Println("")

	groups, byGroup := groupedResults(report.Results)
	titleCaser := cases.Title(language.English)
	for _, group := range groups {
		r.Println("## " + titleCaser.String(group))
		r.Println("")

		for _, res := range byGroup[group] {
			status := "PASS"
			switch {
			case res.Status == check.StatusSkip:
				status = "SKIP"
			case res.Status == check.StatusFail && res.Severity == check.SeverityError:
				status = "FAIL"
			case res.Status == check.StatusFail:
				status = "WARN"
			}

			r.Printf("- **[%s]** %s: %s", status, res.RuleID, res.Name)
			if res.Status == check.StatusSkip && res.Reason != "" {
				r.Printf(" (skipped: %s)", res.Reason)
			}
			r.Println("")

			for _, d := range res.Diagnostics {
				r.Printf("  - %s%s\n", d.Message, diagnosticLocation(d))
			}
		}
		r.Println("")
	}

	// Score
	r.Println("## Score")
	r.Println("")
	r.Printf("**%d/100** (%d passed, %d failed, %d skipped)\n", report.Score, report.Passed, report.Failed, report.Skipped)
	r.Println("")

	if recs := recommendations(report); len(recs) > 0 {
		r.Println("## Next Steps")
		r.Println("")
		for i, rec := range recs {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func upperAll(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strings.ToUpper(strings.TrimSpace(id)))
	}
	return out
}

func ruleIDs() []string {
	rules := check.GetAll()
	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		ids = append(ids, rule.ID)
	}
	return ids
}
