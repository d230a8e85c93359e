package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/blogcheck/internal/cli/config"
)

// ConfigField documents one blogcheck.yaml key.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
}

// getConfigSchema mirrors internal/cli/config.Config.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "project_dir", Type: "string", Default: ".", Description: "Django project root, the directory holding manage.py. Relative to the config file"},
		{Name: "project_name", Type: "string", Default: config.DefaultProjectName, Description: "Project package name; the root directory must carry it"},
		{Name: "app_name", Type: "string", Default: config.DefaultAppName, Description: "Blog app package name"},
		{Name: "settings_module", Type: "string", Description: "Settings module; defaults to the one manage.py names"},
		{Name: "root_urlconf", Type: "string", Description: "Root URL module; defaults to ROOT_URLCONF"},
		{Name: "base_url", Type: "string", Description: "Running development server to check views against instead of running them in-process"},
		{Name: "timeout", Type: "duration", Default: config.DefaultTimeout.String(), Description: "Timeout for development server requests"},
		{Name: "output", Type: "string", Default: config.DefaultOutput, Description: "Output format: auto, text, markdown, json"},
		{Name: "verbose", Type: "bool", Default: "false", Description: "Debug logging on stderr"},
		{Name: "checks.disable", Type: "[]string", Description: "Rule IDs to skip"},
		{Name: "checks.severity", Type: "map[string]string", Description: "Severity per rule ID: error, warning, info"},
		{Name: "views.index", Type: "string", Description: "Dotted name / must resolve to; defaults to <app>.views.index"},
		{Name: "views.post", Type: "string", Description: "Dotted name /post/ must resolve to; defaults to <app>.views.post"},
	}
}

// generateConfigDocs writes configuration.md.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating configuration docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "blogcheck configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("blogcheck reads %s, searched in --project-dir and then upward from the working directory. "+
		"Values are layered: flags, then %s environment variables, then the file, then defaults.",
		InlineCode(config.ConfigFileNames[0]), InlineCode(config.EnvPrefix+"*")))

	w.Header(2, "Keys")
	var rows [][]string
	for _, f := range getConfigSchema() {
		def := "-"
		if f.Default != "" {
			def = InlineCode(f.Default)
		}
		rows = append(rows, []string{InlineCode(f.Name), f.Type, def, f.Description})
	}
	w.Table([]string{"Key", "Type", "Default", "Description"}, rows)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `# blogcheck.yaml
project_dir: website
project_name: website
app_name: blog
base_url: http://127.0.0.1:8000
timeout: 5s

checks:
  disable: []
  severity:
    TP03: error`)

	w.Header(2, "Environment Variables")
	w.Paragraph("Keys map to upper-case variables with the prefix; nested keys join with an underscore:")
	w.CodeBlock("bash", `export BLOGCHECK_BASE_URL=http://127.0.0.1:8000
export BLOGCHECK_CHECKS_DISABLE=VW01,VW02
export BLOGCHECK_CHECKS_SEVERITY_TP03=error`)

	if err := os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated configuration.md")
	return nil
}
