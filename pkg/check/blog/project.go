package blog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

func init() {
	check.Register(check.RuleDef{
		ID:          "PR01",
		Name:        "project-name",
		Group:       "project",
		Task:        1,
		Description: "The project directory carries the expected project name",
		Hint:        "Create the project with 'django-admin startproject website'",
		Severity:    check.SeverityError,
		Check:       checkProjectName,
	})
	check.Register(check.RuleDef{
		ID:          "PR02",
		Name:        "app-directory",
		Group:       "project",
		Task:        2,
		Description: "The blog application exists in the project",
		Hint:        "Run 'python manage.py startapp blog' inside the project",
		Severity:    check.SeverityError,
		Check:       checkAppDirectory,
	})
	check.Register(check.RuleDef{
		ID:          "PR03",
		Name:        "templates-directory",
		Group:       "project",
		Task:        4,
		Description: "The project has a templates directory",
		Hint:        "Create templates/ next to manage.py",
		Severity:    check.SeverityError,
		Check:       paths("templates"),
	})
	check.Register(check.RuleDef{
		ID:          "PR04",
		Name:        "templates-blog-directory",
		Group:       "project",
		Task:        5,
		Description: "The templates directory has a blog subdirectory",
		Hint:        "Create templates/blog/",
		Severity:    check.SeverityError,
		Check:       paths("templates/blog"),
	})
	check.Register(check.RuleDef{
		ID:          "PR05",
		Name:        "static-directories",
		Group:       "project",
		Task:        7,
		Description: "The project has static/ and static/blog/ directories",
		Hint:        "Create static/blog/ next to manage.py",
		Severity:    check.SeverityError,
		Check:       paths("static", "static/blog"),
	})
	check.Register(check.RuleDef{
		ID:          "PR06",
		Name:        "static-assets",
		Group:       "project",
		Task:        10,
		Description: "Stylesheet, script, favicon and images are copied into static/blog",
		Hint:        "Copy the css, js, assets and images directories into static/blog",
		Severity:    check.SeverityError,
		Check: paths(
			"static/blog/css/styles.css",
			"static/blog/js/scripts.js",
			"static/blog/assets/favicon.ico",
			"static/blog/images",
		),
	})
	check.Register(check.RuleDef{
		ID:          "PR07",
		Name:        "blog-templates",
		Group:       "project",
		Task:        11,
		Description: "index.html and post.html are placed in templates/blog",
		Hint:        "Move index.html and post.html into templates/blog",
		Severity:    check.SeverityError,
		Check:       paths(IndexTemplate, PostTemplate),
	})
	check.Register(check.RuleDef{
		ID:          "PR08",
		Name:        "layout-template",
		Group:       "project",
		Task:        12,
		Description: "A shared layout.html exists in templates",
		Hint:        "Extract the common markup of index.html and post.html into templates/layout.html",
		Severity:    check.SeverityError,
		Check:       paths(LayoutTemplate),
	})
}

// Template locations relative to the project root.
const (
	LayoutTemplate = "templates/layout.html"
	IndexTemplate  = "templates/blog/index.html"
	PostTemplate   = "templates/blog/post.html"
)

// paths builds a check asserting that every rel path exists.
func paths(rels ...string) check.Check {
	return func(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
		results := make([]check.Result, 0, len(rels))
		for _, rel := range rels {
			results = append(results, check.CheckPath(c.Root, rel))
		}
		return check.Collect("", results...), nil
	}
}

func checkProjectName(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
	if c.Project == "" {
		return nil, fmt.Errorf("%w: no project name configured", check.ErrSkipped)
	}
	if got := filepath.Base(c.Root); got != c.Project {
		return check.Collect("", check.Failf(check.KindMissingPath, c.Root,
			"project directory is %q, want %q", got, c.Project)), nil
	}
	return nil, nil
}

func checkAppDirectory(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
	return check.Collect("", check.CheckDir(c.Root, appName(c))), nil
}

func appName(c *check.Context) string {
	if c.App == "" {
		return DefaultApp
	}
	return c.App
}

// DefaultApp is the application name used when none is configured.
const DefaultApp = "blog"
