package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/blogcheck/internal/cli/config"
	"github.com/leapstack-labs/blogcheck/internal/cli/output"
	"github.com/leapstack-labs/blogcheck/internal/django"
	"github.com/leapstack-labs/blogcheck/pkg/check"
	"github.com/spf13/cobra"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, markdown, json
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	ProjectDir string        `json:"project_dir"`
	ConfigFile string        `json:"config_file,omitempty"`
	Probes     []DoctorProbe `json:"probes"`
	Healthy    bool          `json:"healthy"`
}

// DoctorProbe is one environment check.
type DoctorProbe struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pass", "warn", "error"
	Detail string `json:"detail,omitempty"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose what blogcheck can see of the project",
		Long: `Diagnose the environment the checklist runs in.

The doctor command reports which configuration file is used, whether the
project's settings and URL configuration evaluate, and whether the
development server at base_url answers. Fix problems reported here first:
they make whole groups of rules fail or skip.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Diagnose the project in the current directory
  blogcheck doctor

  # Include the development server
  blogcheck doctor --base-url http://127.0.0.1:8000

  # Output as JSON
  blogcheck doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, json")

	return cmd
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := diagnose(ctx, cfg)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

// diagnose runs the environment probes. The project probes run first; the
// settings, URL and server probes run concurrently.
func diagnose(ctx context.Context, cfg *config.Config) *DoctorOutput {
	out := &DoctorOutput{
		ProjectDir: cfg.ProjectDir,
		ConfigFile: config.GetConfigFileUsed(),
	}

	if out.ConfigFile != "" {
		out.Probes = append(out.Probes, DoctorProbe{Name: "Configuration", Status: "pass", Detail: out.ConfigFile})
	} else {
		out.Probes = append(out.Probes, DoctorProbe{Name: "Configuration", Status: "warn", Detail: "no blogcheck.yaml found, using defaults"})
	}

	if err := cfg.ValidateProjectDir(); err != nil {
		out.Probes = append(out.Probes, DoctorProbe{Name: "Project directory", Status: "error", Detail: err.Error()})
		return finishDiagnosis(out)
	}
	out.Probes = append(out.Probes, DoctorProbe{Name: "Project directory", Status: "pass", Detail: cfg.ProjectDir})

	if _, err := os.Stat(filepath.Join(cfg.ProjectDir, "manage.py")); err != nil {
		out.Probes = append(out.Probes, DoctorProbe{Name: "manage.py", Status: "error", Detail: "not found; is project_dir the directory startproject created?"})
	} else {
		out.Probes = append(out.Probes, DoctorProbe{Name: "manage.py", Status: "pass"})
	}

	probes := make([]DoctorProbe, 3)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		probes[0], probes[1] = probeProject(cfg)
		return nil
	})
	g.Go(func() error {
		probes[2] = probeServer(gctx, cfg)
		return nil
	})
	_ = g.Wait()
	out.Probes = append(out.Probes, probes...)

	return finishDiagnosis(out)
}

func finishDiagnosis(out *DoctorOutput) *DoctorOutput {
	out.Healthy = true
	for _, p := range out.Probes {
		if p.Status == "error" {
			out.Healthy = false
		}
	}
	return out
}

// probeProject evaluates the settings and URL configuration.
func probeProject(cfg *config.Config) (settingsProbe, urlsProbe DoctorProbe) {
	mod := settingsModule(cfg)
	settingsProbe = DoctorProbe{Name: "Settings (" + mod + ")"}
	snap, err := django.NewSettingsLoader(cfg.ProjectDir).Load(mod)
	switch {
	case errors.Is(err, check.ErrSkipped):
		settingsProbe.Status = "warn"
		settingsProbe.Detail = err.Error() + "; settings checks will be skipped"
	case err != nil:
		settingsProbe.Status = "error"
		settingsProbe.Detail = err.Error()
	default:
		settingsProbe.Status = "pass"
		settingsProbe.Detail = fmt.Sprintf("%d settings", len(snap))
		if s, err := django.Decode(snap); err == nil {
			settingsProbe.Detail += fmt.Sprintf(", DEBUG=%t, STATIC_URL=%q", s.Debug, s.StaticURL)
		}
	}

	urlsProbe = DoctorProbe{Name: "URL configuration (" + rootURLConf(cfg, snap) + ")"}
	conf, err := loadURLConf(cfg, snap)
	if err != nil {
		urlsProbe.Status = "error"
		urlsProbe.Detail = err.Error()
	} else {
		urlsProbe.Status = "pass"
		urlsProbe.Detail = fmt.Sprintf("%d routes", len(conf.Entries()))
	}
	return settingsProbe, urlsProbe
}

// probeServer requests base_url once.
func probeServer(ctx context.Context, cfg *config.Config) DoctorProbe {
	p := DoctorProbe{Name: "Development server"}
	if cfg.BaseURL == "" {
		p.Status = "warn"
		p.Detail = "base_url not set; views run in-process"
		return p
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL, nil)
	if err != nil {
		p.Status = "error"
		p.Detail = err.Error()
		return p
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		p.Status = "error"
		p.Detail = fmt.Sprintf("%s unreachable: %v", cfg.BaseURL, err)
		return p
	}
	_ = resp.Body.Close()

	p.Detail = fmt.Sprintf("%s answered %d in %s", cfg.BaseURL, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	if resp.StatusCode >= http.StatusInternalServerError {
		p.Status = "error"
	} else {
		p.Status = "pass"
	}
	return p
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("blogcheck Doctor"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	for _, p := range out.Probes {
		status := output.StatusSuccess
		switch p.Status {
		case "warn":
			status = output.StatusWarning
		case "error":
			status = output.StatusFailed
		}
		r.StatusLine(p.Name, status, p.Detail)
	}
	r.Println("")

	if out.Healthy {
		r.Success("Ready to run 'blogcheck check'")
	} else {
		r.Warning("Fix the errors above before running 'blogcheck check'")
	}
	r.Println("")
	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# blogcheck Doctor")
	r.Println("")
	r.Println(output.FormatKeyValue("Project", out.ProjectDir))
	r.Println("")

	for _, p := range out.Probes {
		marker := "PASS"
		switch p.Status {
		case "warn":
			marker = "WARN"
		case "error":
			marker = "FAIL"
		}
		line := fmt.Sprintf("- **[%s]** %s", marker, p.Name)
		if p.Detail != "" {
			line += ": " + p.Detail
		}
		r.Println(line)
	}
	r.Println("")
	return nil
}
