package check

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Status is the outcome of a single rule.
type Status string

// Rule statuses.
const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// RuleResult is the outcome of one rule in a report.
type RuleResult struct {
	RuleID      string       `json:"rule_id"`
	Name        string       `json:"name"`
	Group       string       `json:"group"`
	Task        int          `json:"task,omitempty"`
	Severity    Severity     `json:"severity"`
	Status      Status       `json:"status"`
	Reason      string       `json:"reason,omitempty"` // why a rule was skipped
	Hint        string       `json:"hint,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Report is the outcome of a full run.
type Report struct {
	RunID   string       `json:"run_id"`
	Root    string       `json:"root"`
	Results []RuleResult `json:"results"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Score   int          `json:"score"`
}

// HasErrors reports whether any error-severity rule failed.
func (r *Report) HasErrors() bool {
	for _, res := range r.Results {
		if res.Status == StatusFail && res.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Diagnostics returns all diagnostics of the report in rule order.
func (r *Report) Diagnostics() []Diagnostic {
	var diags []Diagnostic
	for _, res := range r.Results {
		diags = append(diags, res.Diagnostics...)
	}
	return diags
}

// Runner executes registered rules against a Context.
type Runner struct {
	config        *RunnerConfig
	disabledRules map[string]bool
}

// RunnerConfig holds configuration for the runner.
type RunnerConfig struct {
	// DisabledRules contains rule IDs to skip entirely
	DisabledRules map[string]bool

	// OnlyRules, when non-empty, restricts the run to these rule IDs
	OnlyRules map[string]bool

	// SeverityOverrides changes the default severity of rules
	SeverityOverrides map[string]Severity
}

// NewRunnerConfig creates a default configuration.
func NewRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		DisabledRules:     make(map[string]bool),
		OnlyRules:         make(map[string]bool),
		SeverityOverrides: make(map[string]Severity),
	}
}

// NewRunner creates a new runner with optional configuration.
func NewRunner(config *RunnerConfig) *Runner {
	if config == nil {
		config = NewRunnerConfig()
	}
	if config.DisabledRules == nil {
		config.DisabledRules = make(map[string]bool)
	}
	return &Runner{
		config:        config,
		disabledRules: config.DisabledRules,
	}
}

// Run executes every enabled registered rule, sequentially and in ID order.
func (r *Runner) Run(ctx context.Context, c *Context) *Report {
	report := &Report{RunID: uuid.NewString()}
	if c == nil {
		report.Score = score(0, 0)
		return report
	}
	report.Root = c.Root
	log := c.logger()

	for _, rule := range GetAll() {
		if r.isDisabled(rule.ID) {
			continue
		}

		res := r.runRule(ctx, rule, c)
		log.Debug("rule finished", "rule", rule.ID, "status", res.Status, "diagnostics", len(res.Diagnostics))

		switch res.Status {
		case StatusPass:
			report.Passed++
		case StatusFail:
			report.Failed++
		case StatusSkip:
			report.Skipped++
		}
		report.Results = append(report.Results, res)
	}

	report.Score = score(report.Passed, report.Failed)
	return report
}

func (r *Runner) runRule(ctx context.Context, rule RuleDef, c *Context) RuleResult {
	sev := r.getSeverity(rule.ID, rule.Severity)
	res := RuleResult{
		RuleID:   rule.ID,
		Name:     rule.Name,
		Group:    rule.Group,
		Task:     rule.Task,
		Severity: sev,
		Status:   StatusPass,
	}

	diags, err := rule.Check(ctx, c)
	switch {
	case errors.Is(err, ErrSkipped):
		res.Status = StatusSkip
		res.Reason = strings.TrimPrefix(strings.TrimPrefix(err.Error(), ErrSkipped.Error()), ": ")
		return res
	case err != nil:
		d := Diagnostic{RuleID: rule.ID, Message: err.Error()}
		var ce *Error
		if errors.As(err, &ce) {
			d.Kind = ce.Kind
			d.FilePath = ce.Subject
			d.Message = ce.Msg
		}
		diags = append(diags, d)
	}

	for i := range diags {
		diags[i].RuleID = rule.ID
		diags[i].Severity = sev
	}
	if len(diags) > 0 {
		res.Status = StatusFail
		res.Hint = rule.Hint
		res.Diagnostics = diags
	}
	return res
}

// score is the share of passed rules among those that ran, 0-100.
func score(passed, failed int) int {
	total := passed + failed
	if total == 0 {
		return 100
	}
	return passed * 100 / total
}

func (r *Runner) isDisabled(ruleID string) bool {
	if r.disabledRules[ruleID] {
		return true
	}
	if len(r.config.OnlyRules) > 0 && !r.config.OnlyRules[ruleID] {
		return true
	}
	return false
}

func (r *Runner) getSeverity(ruleID string, defaultSev Severity) Severity {
	if sev, ok := r.config.SeverityOverrides[ruleID]; ok {
		return sev
	}
	return defaultSev
}

// Disable disables a rule by ID.
func (r *Runner) Disable(ruleID string) {
	r.disabledRules[ruleID] = true
}

// Enable enables a previously disabled rule.
func (r *Runner) Enable(ruleID string) {
	delete(r.disabledRules, ruleID)
}
