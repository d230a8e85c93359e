package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/blogcheck/pkg/check"
	_ "github.com/leapstack-labs/blogcheck/pkg/check/blog" // register checklist rules
)

// groupDescriptions introduces each rule group.
var groupDescriptions = map[string]string{
	"project":   "Rules about the directories and files the exercise creates.",
	"settings":  "Rules about values in settings.py, evaluated without running Python.",
	"templates": "Rules about the layout template and the templates that extend it.",
	"views":     "Rules about the pages the views render. They need a running development server.",
	"routes":    "Rules about which view each URL dispatches to.",
}

var ruleGroupOrder = []string{"project", "settings", "templates", "views", "routes"}

// generateRulesDocs writes the checklist rule reference.
func generateRulesDocs(outDir string) error {
	log.Printf("Generating rule docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rules := check.GetAll()
	w := NewMarkdownWriter()

	w.Frontmatter("Checklist Rules", "Every rule blogcheck grades a blog project with")
	w.GeneratedMarker()

	w.Header(1, "Checklist Rules")
	w.Paragraph(fmt.Sprintf("blogcheck grades the exercise with **%d rules** in %d groups. "+
		"Rules are listed by group; the Task column is the exercise step a rule grades.", len(rules), len(ruleGroupOrder)))

	w.Header(2, "Severity Levels")
	w.Table(
		[]string{"Severity", "Effect"},
		[][]string{
			{InlineCode(check.SeverityError.String()), "Fails the check command"},
			{InlineCode(check.SeverityWarning.String()), "Reported, does not fail the check command"},
			{InlineCode(check.SeverityInfo.String()), "Informational"},
		},
	)
	w.Paragraph("Override a severity or disable a rule in `blogcheck.yaml`:")
	w.CodeBlock("yaml", `checks:
  disable: [VW01, VW02]
  severity:
    TP03: error`)

	var summary [][]string
	for _, rule := range rules {
		summary = append(summary, []string{
			fmt.Sprintf("[%s](#%s)", rule.ID, strings.ToLower(rule.ID)),
			taskNumber(rule.Task),
			rule.Name,
			InlineCode(rule.Severity.String()),
		})
	}
	w.Header(2, "Summary")
	w.Table([]string{"ID", "Task", "Name", "Severity"}, summary)

	byGroup := make(map[string][]check.RuleDef)
	for _, rule := range rules {
		byGroup[rule.Group] = append(byGroup[rule.Group], rule)
	}
	for _, group := range ruleGroupOrder {
		if len(byGroup[group]) == 0 {
			continue
		}
		w.Line(fmt.Sprintf("## %s {#%s}", strings.ToUpper(group[:1])+group[1:], group))
		w.Newline()
		if desc, ok := groupDescriptions[group]; ok {
			w.Paragraph(desc)
		}
		for _, rule := range byGroup[group] {
			writeRuleDoc(w, rule)
		}
	}

	if err := os.WriteFile(filepath.Join(outDir, "index.md"), w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated index.md (%d rules)", len(rules))
	return nil
}

// writeRuleDoc writes one rule section: ### TP01 - layout-content {#tp01}
func writeRuleDoc(w *MarkdownWriter, rule check.RuleDef) {
	w.Line(fmt.Sprintf("### %s - %s {#%s}", rule.ID, rule.Name, strings.ToLower(rule.ID)))
	w.Newline()

	w.Line(fmt.Sprintf("%s %s | %s %s", Bold("Task:"), taskNumber(rule.Task), Bold("Severity:"), InlineCode(rule.Severity.String())))
	w.Newline()
	w.Paragraph(rule.Description)

	if rule.Hint != "" {
		w.Header(4, "How to Fix")
		w.Paragraph(rule.Hint)
	}

	w.Line("---")
	w.Newline()
}

func taskNumber(task int) string {
	if task == 0 {
		return "-"
	}
	return strconv.Itoa(task)
}
