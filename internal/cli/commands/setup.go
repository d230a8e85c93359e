package commands

import (
	"log/slog"
	"os"

	"github.com/leapstack-labs/blogcheck/internal/cli/config"
	"github.com/leapstack-labs/blogcheck/internal/cli/output"
	"github.com/leapstack-labs/blogcheck/internal/django"
	"github.com/leapstack-labs/blogcheck/pkg/check"
	"github.com/leapstack-labs/blogcheck/pkg/check/blog"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a renderer for the
// configured output mode.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or defaults rooted at the
// working directory when no configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg := config.Default()
	cfg.ProjectDir, _ = os.Getwd()
	return cfg
}

// settingsModule picks the settings module: configured, then the one
// manage.py names, then <project>.settings.
func settingsModule(cfg *config.Config) string {
	if cfg.SettingsModule != "" {
		return cfg.SettingsModule
	}
	if mod, ok := django.DiscoverSettingsModule(cfg.ProjectDir); ok {
		return mod
	}
	return cfg.ProjectName + ".settings"
}

// rootURLConf picks the root URL module: configured, then ROOT_URLCONF,
// then <project>.urls.
func rootURLConf(cfg *config.Config, settings check.Snapshot) string {
	if cfg.RootURLConf != "" {
		return cfg.RootURLConf
	}
	if s, err := django.Decode(settings); err == nil && s.RootURLConf != "" {
		return s.RootURLConf
	}
	return cfg.ProjectName + ".urls"
}

// expectedRefs returns the configured view overrides.
func expectedRefs(cfg *config.Config) map[string]check.HandlerRef {
	refs := make(map[string]check.HandlerRef)
	if cfg.Views.Index != "" {
		refs[blog.ViewIndex] = check.NamedRef(cfg.Views.Index)
	}
	if cfg.Views.Post != "" {
		refs[blog.ViewPost] = check.NamedRef(cfg.Views.Post)
	}
	return refs
}

// loadURLConf loads the routing table of the configured project.
func loadURLConf(cfg *config.Config, settings check.Snapshot) (*django.URLConf, error) {
	return django.NewURLConfLoader(cfg.ProjectDir).Load(rootURLConf(cfg, settings))
}

// buildCheckContext evaluates the project's settings and URL configuration
// and assembles the context rules run against. Load failures are recorded
// in the context so the affected rules can report them.
func buildCheckContext(cfg *config.Config, logger *slog.Logger) *check.Context {
	c := &check.Context{
		Root:     cfg.ProjectDir,
		Project:  cfg.ProjectName,
		App:      cfg.AppName,
		Expected: expectedRefs(cfg),
		Logger:   logger,
	}

	mod := settingsModule(cfg)
	c.Settings, c.SettingsErr = django.NewSettingsLoader(cfg.ProjectDir).Load(mod)
	if c.SettingsErr != nil {
		logger.Debug("settings not loaded", "module", mod, "error", c.SettingsErr)
	}

	var (
		routes django.Reverser
		names  django.NameReverser
	)
	conf, err := loadURLConf(cfg, c.Settings)
	if err != nil {
		c.ResolverErr = err
		logger.Debug("url configuration not loaded", "error", err)
	} else {
		c.Resolver = conf
		routes = conf
		names = conf
	}

	c.Handlers = django.NewProjectViews(cfg.ProjectDir, c.Settings, names, logger)
	if cfg.BaseURL != "" {
		live, err := django.NewLiveViews(cfg.BaseURL, routes, cfg.Timeout, logger)
		if err != nil {
			logger.Warn("live views disabled, running views in-process", "error", err)
		} else {
			c.Handlers = live
		}
	}
	return c
}

// runnerConfig translates the checks section of the configuration.
func runnerConfig(cfg *config.Config, only []string) *check.RunnerConfig {
	rc := check.NewRunnerConfig()
	for _, id := range cfg.Checks.Disable {
		rc.DisabledRules[id] = true
	}
	for _, id := range only {
		rc.OnlyRules[id] = true
	}
	for id, name := range cfg.Checks.Severity {
		if sev, ok := check.ParseSeverity(name); ok {
			rc.SeverityOverrides[id] = sev
		}
	}
	return rc
}
