// Package config provides configuration management for the blogcheck CLI.
//
// Values are layered with koanf: built-in defaults, then blogcheck.yaml,
// then BLOGCHECK_* environment variables, then explicitly set flags.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	// ProjectDir is the Django project root, the directory holding manage.py.
	ProjectDir     string        `koanf:"project_dir"`
	ProjectName    string        `koanf:"project_name"`
	AppName        string        `koanf:"app_name"`
	SettingsModule string        `koanf:"settings_module"`
	RootURLConf    string        `koanf:"root_urlconf"`
	BaseURL        string        `koanf:"base_url"`
	Timeout        time.Duration `koanf:"timeout"`
	Verbose        bool          `koanf:"verbose"`
	OutputFormat   string        `koanf:"output"`
	Checks         ChecksConfig  `koanf:"checks"`
	Views          ViewsConfig   `koanf:"views"`
}

// ChecksConfig selects and tunes checklist rules.
type ChecksConfig struct {
	Disable  []string          `koanf:"disable"`
	Severity map[string]string `koanf:"severity"` // rule ID -> error|warning|info
}

// ViewsConfig overrides the dotted handler names the routes must resolve to.
// Empty values default to <app>.views.index and <app>.views.post.
type ViewsConfig struct {
	Index string `koanf:"index"`
	Post  string `koanf:"post"`
}

// Default configuration values.
const (
	DefaultProjectName = "website"
	DefaultAppName     = "blog"
	DefaultTimeout     = 5 * time.Second
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// ConfigFileNames are the file names searched for, in order.
var ConfigFileNames = []string{"blogcheck.yaml", "blogcheck.yml"}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		ProjectName:  DefaultProjectName,
		AppName:      DefaultAppName,
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutput,
	}
}
