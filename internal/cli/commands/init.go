package commands

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/blogcheck/internal/cli/config"
	"github.com/leapstack-labs/blogcheck/internal/cli/output"
	"github.com/leapstack-labs/blogcheck/internal/django"
	"github.com/leapstack-labs/blogcheck/internal/scaffold"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configFileName is the file init writes.
const configFileName = "blogcheck.yaml"

const configHeader = `# blogcheck configuration
# Views are checked in-process. Set base_url to check them against a running
# development server instead:
#   base_url: http://127.0.0.1:8000
`

// initFile is the on-disk shape of a generated blogcheck.yaml.
type initFile struct {
	ProjectDir  string `yaml:"project_dir,omitempty"`
	ProjectName string `yaml:"project_name"`
	AppName     string `yaml:"app_name"`
	Timeout     string `yaml:"timeout"`
	Output      string `yaml:"output"`
	Checks      struct {
		Disable  []string          `yaml:"disable"`
		Severity map[string]string `yaml:"severity"`
	} `yaml:"checks"`
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a blogcheck configuration",
		Long: `Create a blogcheck.yaml configuration for a Django blog project.

When the directory already holds a Django project, the project name is taken
from the settings module manage.py points at.

Use --example to also write a complete reference project (website/) that
passes every checklist rule: project package, blog app, templates and static
assets.`,
		Example: `  # Configure the project in the current directory
  blogcheck init

  # Write the reference project next to the configuration
  blogcheck init --example

  # Initialize in a new directory
  blogcheck init my-blog --example

  # Force overwrite existing config
  blogcheck init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			if example {
				return runInitExample(r, dir, force)
			}
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Also write the reference blog project")

	return cmd
}

func prepareInitDir(dir string, force bool) (string, error) {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return "", errors.New(configFileName + " already exists. Use --force to overwrite")
	}
	return configPath, nil
}

// writeInitConfig renders f as YAML below the standard header.
func writeInitConfig(path string, f *initFile) error {
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

func newInitFile(projectName string) *initFile {
	f := &initFile{
		ProjectName: projectName,
		AppName:     config.DefaultAppName,
		Timeout:     config.DefaultTimeout.String(),
		Output:      config.DefaultOutput,
	}
	f.Checks.Disable = []string{}
	f.Checks.Severity = map[string]string{}
	return f
}

// detectProjectName returns the project package manage.py names, if any.
func detectProjectName(dir string) (string, bool) {
	mod, ok := django.DiscoverSettingsModule(dir)
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(mod, ".")
	return name, name != ""
}

func runInit(r *output.Renderer, dir string, force bool) error {
	configPath, err := prepareInitDir(dir, force)
	if err != nil {
		return err
	}

	projectName := config.DefaultProjectName
	detected, found := detectProjectName(dir)
	if found {
		projectName = detected
	}

	if err := writeInitConfig(configPath, newInitFile(projectName)); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFileName, err)
	}

	r.StatusLine(configFileName, output.StatusSuccess, "")
	if found {
		r.StatusLine("Django project", output.StatusSuccess, projectName)
	} else {
		r.StatusLine("Django project", output.StatusWarning, "manage.py not found, using "+projectName)
	}

	r.Println("")
	r.Success("blogcheck configured!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Run 'blogcheck check' to see which tasks are done")
	r.Println("  2. Optionally set base_url to check views against 'python manage.py runserver'")
	r.Println("  3. Run 'blogcheck rules' to list every rule")

	return nil
}

func runInitExample(r *output.Renderer, dir string, force bool) error {
	configPath, err := prepareInitDir(dir, force)
	if err != nil {
		return err
	}

	written, err := scaffold.Write(dir, force)
	if err != nil {
		return fmt.Errorf("failed to write example project: %w", err)
	}

	f := newInitFile(scaffold.ProjectName)
	f.ProjectDir = scaffold.ProjectName
	if err := writeInitConfig(configPath, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFileName, err)
	}

	r.Header(2, "Configuration")
	r.StatusLine(configFileName, output.StatusSuccess, "")

	isWritten := make(map[string]bool, len(written))
	for _, w := range written {
		isWritten[w] = true
	}
	files, _ := scaffold.Files()
	groups := scaffold.Group(files)
	sections := []struct{ key, title string }{
		{"project", "Project"},
		{"app", "Blog App"},
		{"templates", "Templates"},
		{"static", "Static Files"},
	}
	for _, s := range sections {
		r.Println("")
		r.Header(2, s.title)
		for _, file := range groups[s.key] {
			if isWritten[file] {
				r.StatusLine(file, output.StatusSuccess, "")
			} else {
				r.StatusLine(file, output.StatusSkipped, "exists")
			}
		}
	}

	r.Println("")
	r.Success("Reference blog project written!")
	r.Println("")
	r.Println("Try it out:")
	if dir != "." {
		r.Printf("  cd %s\n", dir)
	}
	r.Println("  blogcheck check")
	r.Println("  cd website && python manage.py runserver")
	r.Println("  blogcheck check --base-url http://127.0.0.1:8000")

	return nil
}
