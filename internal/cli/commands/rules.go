package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/blogcheck/internal/cli/config"
	"github.com/leapstack-labs/blogcheck/internal/cli/output"
	"github.com/leapstack-labs/blogcheck/pkg/check"
	_ "github.com/leapstack-labs/blogcheck/pkg/check/blog" // register checklist rules
	"github.com/spf13/cobra"
)

// RulesOptions holds options for the rules command.
type RulesOptions struct {
	Group   string // Filter by group
	Verbose bool   // Show descriptions and hints
	Format  string // Output format
}

// RuleInfo describes a rule as configured for the current project.
type RuleInfo struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Group           string         `json:"group"`
	Task            int            `json:"task,omitempty"`
	Description     string         `json:"description"`
	Hint            string         `json:"hint,omitempty"`
	Severity        check.Severity `json:"severity"`
	DefaultSeverity check.Severity `json:"default_severity"`
	Enabled         bool           `json:"enabled"`
}

// RulesJSONOutput is the JSON output structure for rules listing.
type RulesJSONOutput struct {
	Rules []RuleInfo `json:"rules"`
	Count struct {
		Enabled int            `json:"enabled"`
		Total   int            `json:"total"`
		ByGroup map[string]int `json:"by_group"`
	} `json:"count"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	opts := &RulesOptions{}
	cmd := &cobra.Command{
		Use:   "rules [rule-id]",
		Short: "List the checklist rules",
		Long: `List the checklist rules with their exercise task, group and severity.

Severities and disabled rules reflect the checks section of blogcheck.yaml.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # List all rules
  blogcheck rules

  # Show details for a specific rule
  blogcheck rules TP03

  # List the settings rules with descriptions
  blogcheck rules --group settings -V

  # Output as JSON
  blogcheck rules --format json`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return ruleIDs(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showRule(cmd, args[0], opts)
			}
			return listRules(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Group, "group", "g", "", "Filter by group: "+strings.Join(groupOrder, ", "))
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "V", false, "Show descriptions and hints")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json, markdown")

	_ = cmd.RegisterFlagCompletionFunc("group", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return groupOrder, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func rulesRenderer(cmd *cobra.Command, format string) (*CommandContext, *output.Renderer, error) {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	// Override renderer if format flag is set
	if format != "" {
		mode, err := output.ParseMode(format)
		if err != nil {
			return nil, nil, err
		}
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
	}
	return cmdCtx, r, nil
}

// ruleInfos describes every registered rule under cfg.
func ruleInfos(cfg *config.Config) []RuleInfo {
	rc := runnerConfig(cfg, nil)
	rules := check.GetAll()
	infos := make([]RuleInfo, 0, len(rules))
	for _, rule := range rules {
		info := RuleInfo{
			ID:              rule.ID,
			Name:            rule.Name,
			Group:           rule.Group,
			Task:            rule.Task,
			Description:     rule.Description,
			Hint:            rule.Hint,
			Severity:        rule.Severity,
			DefaultSeverity: rule.Severity,
			Enabled:         !rc.DisabledRules[rule.ID],
		}
		if sev, ok := rc.SeverityOverrides[rule.ID]; ok {
			info.Severity = sev
		}
		infos = append(infos, info)
	}
	return infos
}

func listRules(cmd *cobra.Command, opts *RulesOptions) error {
	cmdCtx, r, err := rulesRenderer(cmd, opts.Format)
	if err != nil {
		return err
	}

	var rules []RuleInfo
	for _, info := range ruleInfos(cmdCtx.Cfg) {
		if opts.Group != "" && info.Group != opts.Group {
			continue
		}
		rules = append(rules, info)
	}
	if opts.Group != "" && len(rules) == 0 {
		return fmt.Errorf("no rules in group %q (groups: %s)", opts.Group, strings.Join(groupOrder, ", "))
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return listRulesJSON(r, rules)
	case output.ModeMarkdown:
		return listRulesMarkdown(r, rules, opts.Verbose)
	default:
		return listRulesText(r, rules, opts.Verbose)
	}
}

func showRule(cmd *cobra.Command, ruleID string, opts *RulesOptions) error {
	cmdCtx, r, err := rulesRenderer(cmd, opts.Format)
	if err != nil {
		return err
	}

	var rule *RuleInfo
	for _, info := range ruleInfos(cmdCtx.Cfg) {
		if strings.EqualFold(info.ID, ruleID) {
			rule = &info
			break
		}
	}
	if rule == nil {
		return fmt.Errorf("rule %q not found", ruleID)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(rule)
	case output.ModeMarkdown:
		return showRuleMarkdown(r, rule)
	default:
		return showRuleText(r, rule)
	}
}

func rulesByGroup(rules []RuleInfo) ([]string, map[string][]RuleInfo) {
	byGroup := make(map[string][]RuleInfo)
	for _, rule := range rules {
		byGroup[rule.Group] = append(byGroup[rule.Group], rule)
	}
	return orderGroups(byGroup), byGroup
}

func rulesTable(rules []RuleInfo, verbose bool) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	header := table.Row{"ID", "Task", "Name", "Severity", "Enabled"}
	if verbose {
		header = append(header, "Description")
	}
	t.AppendHeader(header)
	for _, rule := range rules {
		enabled := "yes"
		if !rule.Enabled {
			enabled = "no"
		}
		row := table.Row{rule.ID, taskLabel(rule.Task), rule.Name, rule.Severity.String(), enabled}
		if verbose {
			row = append(row, rule.Description)
		}
		t.AppendRow(row)
	}
	return t
}

// listRulesText outputs rules in styled text format.
func listRulesText(r *output.Renderer, rules []RuleInfo, verbose bool) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render(fmt.Sprintf("Checklist Rules (%d)", len(rules))))
	r.Println("")

	groups, byGroup := rulesByGroup(rules)
	for _, group := range groups {
		r.Println(styles.Header2.Render(capitalizeFirst(group)))
		r.Println(rulesTable(byGroup[group], verbose).Render())
		r.Println("")
	}

	r.Println(styles.Muted.Render("Use 'blogcheck rules <rule-id>' for details"))
	r.Println("")

	return nil
}

// listRulesMarkdown outputs rules in markdown format.
func listRulesMarkdown(r *output.Renderer, rules []RuleInfo, verbose bool) error {
	r.Println("# Checklist Rules")
	r.Println("")

	groups, byGroup := rulesByGroup(rules)
	for _, group := range groups {
		r.Println("## " + capitalizeFirst(group))
		r.Println("")
		r.Println(rulesTable(byGroup[group], verbose).RenderMarkdown())
		r.Println("")
	}

	return nil
}

// listRulesJSON outputs rules in JSON format.
func listRulesJSON(r *output.Renderer, rules []RuleInfo) error {
	jsonOutput := RulesJSONOutput{
		Rules: rules,
	}
	jsonOutput.Count.ByGroup = make(map[string]int)
	for _, rule := range rules {
		jsonOutput.Count.ByGroup[rule.Group]++
		if rule.Enabled {
			jsonOutput.Count.Enabled++
		}
	}
	jsonOutput.Count.Total = len(rules)

	return r.JSON(jsonOutput)
}

// showRuleText displays detailed rule info in text format.
func showRuleText(r *output.Renderer, rule *RuleInfo) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render(fmt.Sprintf("%s - %s", rule.ID, rule.Name)))
	r.Println("")

	r.Printf("  %s: %s\n", styles.Bold.Render("Group"), rule.Group)
	r.Printf("  %s: %s\n", styles.Bold.Render("Task"), taskLabel(rule.Task))
	r.Printf("  %s: %s\n", styles.Bold.Render("Severity"), getSeverityStyle(styles, rule.Severity).Render(rule.Severity.String()))
	if rule.Severity != rule.DefaultSeverity {
		r.Println(styles.Muted.Render("    (default " + rule.DefaultSeverity.String() + ")"))
	}
	if !rule.Enabled {
		r.Printf("  %s: %s\n", styles.Bold.Render("Enabled"), styles.Warning.Render("no"))
	}
	r.Println("")

	r.Println(styles.Bold.Render("Description"))
	r.Println("  " + rule.Description)
	r.Println("")

	if rule.Hint != "" {
		r.Println(styles.Bold.Render("How to Fix"))
		r.Println("  " + rule.Hint)
		r.Println("")
	}

	return nil
}

// showRuleMarkdown displays detailed rule info in markdown format.
func showRuleMarkdown(r *output.Renderer, rule *RuleInfo) error {
	r.Printf("# %s - %s\n\n", rule.ID, rule.Name)
	r.Printf("**Group:** %s | **Task:** %s | **Severity:** `%s`\n\n", rule.Group, taskLabel(rule.Task), rule.Severity.String())
	r.Println(rule.Description)
	r.Println("")

	if rule.Hint != "" {
		r.Println("## How to Fix")
		r.Println("")
		r.Println(rule.Hint)
		r.Println("")
	}

	return nil
}

// Helper functions

func getSeverityStyle(styles *output.Styles, sev check.Severity) lipgloss.Style {
	switch sev {
	case check.SeverityError:
		return styles.Error
	case check.SeverityWarning:
		return styles.Warning
	case check.SeverityInfo:
		return styles.Info
	default:
		return styles.Muted
	}
}

func taskLabel(task int) string {
	if task == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", task)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
