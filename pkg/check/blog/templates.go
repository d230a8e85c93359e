package blog

import (
	"context"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/blogcheck/internal/djtemplate"
	"github.com/leapstack-labs/blogcheck/pkg/check"
)

func init() {
	check.Register(check.RuleDef{
		ID:          "TP01",
		Name:        "layout-content",
		Group:       "templates",
		Task:        13,
		Description: "layout.html loads static files and replaces the article column with an empty content block",
		Hint:        "Add {% load static %} and replace <div class=\"col-md-8\"> with {% block content %}{% endblock %}",
		Severity:    check.SeverityError,
		Check:       checkLayoutContent,
	})
	check.Register(check.RuleDef{
		ID:          "TP02",
		Name:        "child-content",
		Group:       "templates",
		Task:        14,
		Description: "index.html and post.html load static files and keep their column inside a content block",
		Hint:        "Keep only the <div class=\"col-md-8\"> markup, wrapped in {% block content %}",
		Severity:    check.SeverityError,
		Check:       checkChildContent,
	})
	check.Register(check.RuleDef{
		ID:          "TP03",
		Name:        "extends-layout",
		Group:       "templates",
		Task:        14,
		Description: "index.html and post.html extend layout.html as their first tag",
		Hint:        "Start the template with {% extends 'layout.html' %}",
		Severity:    check.SeverityWarning,
		Check:       checkExtendsLayout,
	})
}

// Layout is the parent template child templates must extend.
const Layout = "layout.html"

func checkLayoutContent(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
	results := check.CheckTemplate(c.Root, LayoutTemplate,
		[]check.Pattern{check.StaticLoad, check.ContentBlock},
		[]check.Pattern{check.LegacyColumnMD, check.LegacyColumnLG},
	)
	return check.Collect("", results...), nil
}

func checkChildContent(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
	var diags []check.Diagnostic
	for _, rel := range []string{IndexTemplate, PostTemplate} {
		results := check.CheckTemplate(c.Root, rel,
			[]check.Pattern{check.StaticLoad, check.LegacyColumnMD, check.ContentBlockStart},
			nil,
		)
		diags = append(diags, check.Collect("", results...)...)
	}
	return diags, nil
}

func checkExtendsLayout(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
	var results []check.Result
	for _, rel := range []string{IndexTemplate, PostTemplate} {
		results = append(results, extendsLayout(c.Root, rel))
	}
	return check.Collect("", results...), nil
}

func extendsLayout(root, rel string) check.Result {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel))) //nolint:gosec // G304: path is below the project root
	if err != nil {
		return check.Failf(check.KindMissingPath, rel, "%s cannot be read", rel)
	}

	doc, err := djtemplate.Parse(string(content), rel)
	if err != nil {
		r := check.Failf(check.KindPatternMismatch, rel, "%s does not parse: %v", rel, err)
		if perr, ok := err.(djtemplate.Error); ok {
			r.Line = perr.Position().Line
		}
		return r
	}

	switch {
	case doc.Extends == nil:
		return check.Failf(check.KindPatternMismatch, rel, "%s does not extend %s", rel, Layout)
	case doc.Extends.Target != Layout:
		r := check.Failf(check.KindPatternMismatch, rel, "%s extends %q, want %q", rel, doc.Extends.Target, Layout)
		r.Line = doc.Extends.Pos().Line
		return r
	case !doc.ExtendsFirst():
		r := check.Failf(check.KindPatternMismatch, rel, "%s: {%% extends %%} must be the first tag", rel)
		r.Line = doc.Extends.Pos().Line
		return r
	}
	return check.Pass(rel, rel+" extends "+Layout)
}
