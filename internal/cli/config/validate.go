package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"

	"github.com/leapstack-labs/blogcheck/internal/cli/output"
	"github.com/leapstack-labs/blogcheck/pkg/check"
)

var (
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	dottedName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ProjectName == "" {
		return fmt.Errorf("project_name is required")
	}
	if !identifier.MatchString(c.AppName) {
		return fmt.Errorf("app_name %q is not a valid Python package name", c.AppName)
	}
	for key, v := range map[string]string{
		"settings_module": c.SettingsModule,
		"root_urlconf":    c.RootURLConf,
		"views.index":     c.Views.Index,
		"views.post":      c.Views.Post,
	} {
		if v != "" && !dottedName.MatchString(v) {
			return fmt.Errorf("%s %q is not a dotted module path", key, v)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid base_url %q: want http://host:port", c.BaseURL)
		}
	}
	for id, sev := range c.Checks.Severity {
		if _, ok := check.ParseSeverity(sev); !ok {
			return fmt.Errorf("checks.severity.%s: unknown severity %q (want error, warning or info)", id, sev)
		}
	}

	// Directory existence is checked by ValidateProjectDir so that help
	// and init work outside a project.
	return nil
}

// ValidateProjectDir checks that the project directory exists.
func (c *Config) ValidateProjectDir() error {
	info, err := os.Stat(c.ProjectDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("project directory does not exist: %s\nHint: run from the project root or use --project-dir", c.ProjectDir)
	}
	if err != nil {
		return fmt.Errorf("failed to stat project directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project directory is not a directory: %s", c.ProjectDir)
	}
	return nil
}
