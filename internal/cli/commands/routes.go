package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/blogcheck/internal/cli/output"
	"github.com/leapstack-labs/blogcheck/internal/django"
	"github.com/leapstack-labs/blogcheck/pkg/check"
	"github.com/spf13/cobra"
)

// RouteJSON is the JSON form of a route table entry.
type RouteJSON struct {
	Route  string `json:"route"`
	Name   string `json:"name,omitempty"`
	View   string `json:"view"`
	Module string `json:"module"`
	Line   int    `json:"line,omitempty"`
}

// ResolveJSON is the JSON form of a resolved path.
type ResolveJSON struct {
	Path  string `json:"path"`
	View  string `json:"view,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "routes [path...]",
		Short: "Show the project's URL routes",
		Long: `Show the routes of the project's root URL configuration, with included
URL modules flattened in resolution order.

Given paths, resolve each one to the view Django would dispatch it to.`,
		Example: `  # List every route
  blogcheck routes

  # Which views serve the blog pages?
  blogcheck routes / /post

  # Output as JSON
  blogcheck routes --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)
			r := cmdCtx.Renderer
			if format != "" {
				mode, err := output.ParseMode(format)
				if err != nil {
					return err
				}
				r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
			}

			cfg := cmdCtx.Cfg
			if err := cfg.ValidateProjectDir(); err != nil {
				return err
			}
			settings, err := django.NewSettingsLoader(cfg.ProjectDir).Load(settingsModule(cfg))
			if err != nil {
				cmdCtx.Logger.Debug("settings not loaded, using default URL module", "error", err)
			}
			conf, err := loadURLConf(cfg, settings)
			if err != nil {
				return fmt.Errorf("failed to load URL configuration: %w", err)
			}

			if len(args) > 0 {
				return renderResolved(r, resolvePaths(conf, args))
			}
			return renderRoutes(r, conf)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: text, json, markdown")

	return cmd
}

func routeRows(conf *django.URLConf) []RouteJSON {
	entries := conf.Entries()
	rows := make([]RouteJSON, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, RouteJSON{
			Route:  e.Route,
			Name:   e.Name,
			View:   e.View.String(),
			Module: e.Module,
			Line:   e.Line,
		})
	}
	return rows
}

func resolvePaths(conf *django.URLConf, paths []string) []ResolveJSON {
	out := make([]ResolveJSON, 0, len(paths))
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		res := ResolveJSON{Path: p}
		ref, err := conf.Resolve(p)
		switch {
		case errors.Is(err, check.ErrNoRoute):
			res.Error = "no route"
		case err != nil:
			res.Error = err.Error()
		default:
			res.View = ref.String()
		}
		out = append(out, res)
	}
	return out
}

func renderRoutes(r *output.Renderer, conf *django.URLConf) error {
	rows := routeRows(conf)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rows)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Route", "Name", "View", "Defined At"})
	for _, row := range rows {
		at := row.Module
		if row.Line > 0 {
			at = fmt.Sprintf("%s:%d", row.Module, row.Line)
		}
		t.AppendRow(table.Row{row.Route, row.Name, row.View, at})
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println("# Routes")
		r.Println("")
		r.Println(output.FormatKeyValue("URL module", conf.Module))
		r.Println("")
		r.Println(t.RenderMarkdown())
		return nil
	}

	styles := r.Styles()
	r.Println("")
	r.Println(styles.Header1.Render(fmt.Sprintf("Routes (%d)", len(rows))))
	r.Println(styles.Muted.Render("URL module: " + conf.Module))
	r.Println("")
	r.Println(t.Render())
	r.Println("")
	return nil
}

func renderResolved(r *output.Renderer, results []ResolveJSON) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(results)
	case output.ModeMarkdown:
		r.Println("# Resolved Paths")
		r.Println("")
	}
	for _, res := range results {
		if res.Error != "" {
			r.StatusLine(res.Path, output.StatusFailed, res.Error)
			continue
		}
		r.StatusLine(res.Path, output.StatusSuccess, res.View)
	}
	return nil
}
