package blog_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/blogcheck/internal/django"
	"github.com/leapstack-labs/blogcheck/internal/scaffold"
	"github.com/leapstack-labs/blogcheck/internal/testutil"
	"github.com/leapstack-labs/blogcheck/pkg/check"
	"github.com/leapstack-labs/blogcheck/pkg/check/blog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	indexPage = `<html><body><div class="col-md-8"><h1 class="my-4">Page Heading
  <small>Secondary Text</small>
</h1></div></body></html>`
	postPage = `<html><body><div class="col-lg-8"><h1 class="mt-4">Post Title</h1></div></body></html>`
)

// referenceProject writes the reference project and returns its root.
func referenceProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := scaffold.Write(dir, false)
	require.NoError(t, err)
	return filepath.Join(dir, scaffold.ProjectName)
}

func page(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, body)
	}
}

// views serves the blog views in-process under their Django names.
func views(index, post string) *check.RouteTable {
	rt := check.NewRouteTable()
	rt.Handle("/", check.NamedRef("blog.views.index"), page(index))
	rt.Handle("/post/", check.NamedRef("blog.views.post"), page(post))
	return rt
}

// projectViews runs the project's own view functions in-process.
func projectViews(t *testing.T, c *check.Context) check.HandlerSource {
	t.Helper()
	var names django.NameReverser
	if conf, ok := c.Resolver.(*django.URLConf); ok {
		names = conf
	}
	return django.NewProjectViews(c.Root, c.Settings, names, testutil.NewTestLogger(t))
}

// loadContext evaluates the project the way the CLI does.
func loadContext(t *testing.T, root string) *check.Context {
	t.Helper()
	c := &check.Context{
		Root:    root,
		Project: scaffold.ProjectName,
		App:     blog.DefaultApp,
		Logger:  testutil.NewTestLogger(t),
	}
	c.Settings, c.SettingsErr = django.NewSettingsLoader(root).Load("website.settings")
	conf, err := django.NewURLConfLoader(root).Load("website.urls")
	if err != nil {
		c.ResolverErr = err
	} else {
		c.Resolver = conf
	}
	c.Handlers = views(indexPage, postPage)
	return c
}

func run(t *testing.T, c *check.Context) map[string]check.RuleResult {
	t.Helper()
	report := check.NewRunner(nil).Run(context.Background(), c)
	byID := make(map[string]check.RuleResult, len(report.Results))
	for _, res := range report.Results {
		byID[res.RuleID] = res
	}
	return byID
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func edit(t *testing.T, root, rel, old, replacement string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), old)
	write(t, root, rel, strings.Replace(string(content), old, replacement, 1))
}

func TestRules_Registered(t *testing.T) {
	want := []string{
		"PR01", "PR02", "PR03", "PR04", "PR05", "PR06", "PR07", "PR08",
		"RT01", "RT02", "RT03",
		"ST01", "ST02", "ST03",
		"TP01", "TP02", "TP03",
		"VW01", "VW02",
	}
	var got []string
	for _, rule := range check.GetAll() {
		got = append(got, rule.ID)
		assert.NotEmpty(t, rule.Description, rule.ID)
		assert.NotEmpty(t, rule.Hint, rule.ID)
		assert.Positive(t, rule.Task, rule.ID)
	}
	assert.Equal(t, want, got)
	assert.Len(t, check.GetByGroup("views"), 2)
}

func TestReferenceProject_PassesEveryRule(t *testing.T) {
	c := loadContext(t, referenceProject(t))
	require.NoError(t, c.SettingsErr)
	require.NoError(t, c.ResolverErr)

	report := check.NewRunner(nil).Run(context.Background(), c)
	for _, res := range report.Results {
		assert.Equal(t, check.StatusPass, res.Status, "%s: %+v", res.RuleID, res.Diagnostics)
	}
	assert.Equal(t, check.Count(), report.Passed)
	assert.Equal(t, 100, report.Score)
	assert.False(t, report.HasErrors())
}

func TestReferenceProject_LogsEveryRule(t *testing.T) {
	c := loadContext(t, referenceProject(t))
	logger, rec := testutil.NewRecordingLogger(t)
	c.Logger = logger

	check.NewRunner(nil).Run(context.Background(), c)

	var ruleIDs []string
	for _, e := range rec.Entries() {
		if e.Message == "rule finished" {
			ruleIDs = append(ruleIDs, fmt.Sprint(e.Attrs["rule"]))
		}
	}
	assert.Len(t, ruleIDs, check.Count())
	assert.Equal(t, "PR01", ruleIDs[0])
	assert.Empty(t, rec.Messages(slog.LevelWarn))
}

func TestRules_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, root string, c *check.Context)
		fail   []string   // rules expected to fail, the first one is inspected
		kind   check.Kind // kind of the first diagnostic of fail[0]
		msg    string
	}{
		{
			name: "wrong project name",
			mutate: func(_ *testing.T, _ string, c *check.Context) {
				c.Project = "mysite"
			},
			fail: []string{"PR01"},
			kind: check.KindMissingPath,
			msg:  `want "mysite"`,
		},
		{
			name: "missing app",
			mutate: func(_ *testing.T, _ string, c *check.Context) {
				c.App = "news"
			},
			fail: []string{"PR02", "ST01", "RT01", "RT02", "RT03"},
			kind: check.KindMissingPath,
			msg:  "missing news",
		},
		{
			name: "missing static assets",
			mutate: func(t *testing.T, root string, _ *check.Context) {
				require.NoError(t, os.RemoveAll(filepath.Join(root, "static", "blog", "js")))
			},
			fail: []string{"PR06"},
			kind: check.KindMissingPath,
			msg:  "static/blog/js/scripts.js",
		},
		{
			name: "layout missing",
			mutate: func(t *testing.T, root string, _ *check.Context) {
				require.NoError(t, os.Remove(filepath.Join(root, "templates", "layout.html")))
			},
			fail: []string{"PR08", "TP01"},
			kind: check.KindMissingPath,
			msg:  "templates/layout.html",
		},
		{
			name: "layout keeps the column",
			mutate: func(t *testing.T, root string, _ *check.Context) {
				edit(t, root, blog.LayoutTemplate, "{% block content %}{% endblock %}",
					"<div class=\"col-md-8\">{% block content %}{% endblock %}</div>")
			},
			fail: []string{"TP01"},
			kind: check.KindPatternMismatch,
			msg:  `must not contain <div class="col-md-8">`,
		},
		{
			name: "child without content block",
			mutate: func(t *testing.T, root string, _ *check.Context) {
				edit(t, root, blog.PostTemplate, "{% block content %}", "{% block main %}")
			},
			fail: []string{"TP02"},
			kind: check.KindPatternMismatch,
			msg:  "must contain {% block content %}",
		},
		{
			name: "child does not extend layout",
			mutate: func(t *testing.T, root string, _ *check.Context) {
				edit(t, root, blog.IndexTemplate, `{% extends "layout.html" %}`, "")
			},
			fail: []string{"TP03"},
			kind: check.KindPatternMismatch,
			msg:  "does not extend layout.html",
		},
		{
			name: "static dirs not configured",
			mutate: func(_ *testing.T, _ string, c *check.Context) {
				delete(c.Settings, "STATICFILES_DIRS")
			},
			fail: []string{"ST03"},
			kind: check.KindMissingSetting,
			msg:  "STATICFILES_DIRS is not defined",
		},
		{
			name: "settings not loaded",
			mutate: func(_ *testing.T, _ string, c *check.Context) {
				c.Settings = nil
				c.SettingsErr = fmt.Errorf("settings.py:3: undefined: Path")
			},
			fail: []string{"ST01", "ST02", "ST03"},
			kind: check.KindMissingSetting,
			msg:  "settings could not be loaded",
		},
		{
			name: "post route points at index",
			mutate: func(t *testing.T, root string, c *check.Context) {
				edit(t, root, "blog/urls.py", "path('post/', views.post", "path('post/', views.index")
				conf, err := django.NewURLConfLoader(root).Load("website.urls")
				require.NoError(t, err)
				c.Resolver = conf
			},
			fail: []string{"RT03"},
			kind: check.KindRouteMismatch,
			msg:  "resolves to blog.views.index, want blog.views.post",
		},
		{
			name: "routes not loaded",
			mutate: func(_ *testing.T, _ string, c *check.Context) {
				c.Resolver = nil
				c.ResolverErr = fmt.Errorf("urls.py:1: cannot import name 'path'")
			},
			fail: []string{"RT02", "RT03"},
			kind: check.KindRouteMismatch,
			msg:  "routes could not be loaded",
		},
		{
			name: "index view renders the wrong page",
			mutate: func(_ *testing.T, _ string, c *check.Context) {
				c.Handlers = views(postPage, postPage)
			},
			fail: []string{"VW01"},
			kind: check.KindHandlerOutputMismatch,
			msg:  `first heading reads "Post Title"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := referenceProject(t)
			c := loadContext(t, root)
			tt.mutate(t, root, c)

			results := run(t, c)
			failed := make(map[string]bool)
			for _, id := range tt.fail {
				failed[id] = true
				res := results[id]
				require.Equal(t, check.StatusFail, res.Status, "%s should fail", id)
				require.NotEmpty(t, res.Diagnostics)
				assert.Equal(t, res.Severity, res.Diagnostics[0].Severity, id)
				assert.NotEmpty(t, res.Hint, id)
			}
			first := results[tt.fail[0]].Diagnostics[0]
			assert.Equal(t, tt.kind, first.Kind)
			assert.Contains(t, first.Message, tt.msg)

			for id, res := range results {
				if !failed[id] {
					assert.NotEqual(t, check.StatusFail, res.Status, "%s should not fail: %+v", id, res.Diagnostics)
				}
			}
		})
	}
}

func TestViews_SkippedWithoutTransport(t *testing.T) {
	c := loadContext(t, referenceProject(t))
	c.Handlers = nil

	results := run(t, c)
	for _, id := range []string{"VW01", "VW02"} {
		assert.Equal(t, check.StatusSkip, results[id].Status)
		assert.Contains(t, results[id].Reason, "no handler source")
	}
}

func TestViews_SkippedWhenNotRouted(t *testing.T) {
	c := loadContext(t, referenceProject(t))
	rt := check.NewRouteTable()
	rt.Handle("/", check.NamedRef("blog.views.index"), page(indexPage))
	c.Handlers = rt

	results := run(t, c)
	assert.Equal(t, check.StatusPass, results["VW01"].Status)
	assert.Equal(t, check.StatusSkip, results["VW02"].Status)
}

func TestExpectedRef(t *testing.T) {
	c := &check.Context{App: "news"}
	assert.Equal(t, "news.views.index", blog.ExpectedRef(c, blog.ViewIndex).Name)

	c.Expected = map[string]check.HandlerRef{blog.ViewPost: check.NamedRef("news.views.PostView.as_view()")}
	assert.Equal(t, "news.views.PostView.as_view()", blog.ExpectedRef(c, blog.ViewPost).Name)

	c = &check.Context{}
	assert.Equal(t, "blog.views.post", blog.ExpectedRef(c, blog.ViewPost).Name)
}

func TestAppConfigName(t *testing.T) {
	assert.Equal(t, "blog.apps.BlogConfig", blog.AppConfigName("blog"))
	assert.Equal(t, "my_blog.apps.MyBlogConfig", blog.AppConfigName("my_blog"))
}

func TestViews_InProcess(t *testing.T) {
	t.Run("reference project", func(t *testing.T) {
		c := loadContext(t, referenceProject(t))
		c.Handlers = projectViews(t, c)

		results := run(t, c)
		for _, id := range []string{"VW01", "VW02"} {
			assert.Equal(t, check.StatusPass, results[id].Status, "%s: %+v", id, results[id].Diagnostics)
		}
	})

	t.Run("view without a route", func(t *testing.T) {
		root := referenceProject(t)
		edit(t, root, "blog/urls.py", "    path('', views.index, name='index'),\n", "")
		c := loadContext(t, root)
		c.Handlers = projectViews(t, c)

		results := run(t, c)
		assert.Equal(t, check.StatusPass, results["VW01"].Status, "%+v", results["VW01"].Diagnostics)
		assert.Equal(t, check.StatusFail, results["RT02"].Status)
	})

	t.Run("missing layout fails", func(t *testing.T) {
		root := referenceProject(t)
		require.NoError(t, os.Remove(filepath.Join(root, "templates", "layout.html")))
		c := loadContext(t, root)
		c.Handlers = projectViews(t, c)

		results := run(t, c)
		require.Equal(t, check.StatusFail, results["VW01"].Status)
		assert.Contains(t, results["VW01"].Diagnostics[0].Message, "500")
	})

	t.Run("missing view function fails", func(t *testing.T) {
		root := referenceProject(t)
		edit(t, root, "blog/views.py", "def post(request):", "def show(request):")
		c := loadContext(t, root)
		c.Handlers = projectViews(t, c)

		results := run(t, c)
		assert.Equal(t, check.StatusPass, results["VW01"].Status)
		require.Equal(t, check.StatusFail, results["VW02"].Status)
		assert.Contains(t, results["VW02"].Diagnostics[0].Message, "does not define a function post")
	})

	t.Run("unsupported syntax skips", func(t *testing.T) {
		root := referenceProject(t)
		edit(t, root, "blog/views.py", "def index(request):", "class PostList:\n    pass\n\n\ndef index(request):")
		c := loadContext(t, root)
		c.Handlers = projectViews(t, c)

		results := run(t, c)
		for _, id := range []string{"VW01", "VW02"} {
			assert.Equal(t, check.StatusSkip, results[id].Status)
			assert.Contains(t, results[id].Reason, "not supported by the evaluator")
		}
	})
}

func TestSettings_PythonOnlySyntax(t *testing.T) {
	settingsRules := []string{"ST01", "ST02", "ST03"}

	t.Run("f-strings and import guards", func(t *testing.T) {
		root := referenceProject(t)
		edit(t, root, "website/settings.py", "ROOT_URLCONF", "SITE_NAME = f'{BASE_DIR.name} blog'\n\ntry:\n    from .local_settings import *\nexcept ImportError:\n    pass\n\nROOT_URLCONF")
		c := loadContext(t, root)
		require.NoError(t, c.SettingsErr)

		results := run(t, c)
		for _, id := range settingsRules {
			assert.Equal(t, check.StatusPass, results[id].Status, "%s: %+v", id, results[id].Diagnostics)
		}
	})

	t.Run("unsupported syntax skips", func(t *testing.T) {
		root := referenceProject(t)
		edit(t, root, "website/settings.py", "ROOT_URLCONF", "class Local:\n    DEBUG = False\n\n\nROOT_URLCONF")
		c := loadContext(t, root)
		require.Error(t, c.SettingsErr)

		results := run(t, c)
		for _, id := range settingsRules {
			assert.Equal(t, check.StatusSkip, results[id].Status, id)
			assert.Contains(t, results[id].Reason, "website/settings.py")
		}
	})
}

func TestRunner_Idempotent(t *testing.T) {
	reference := referenceProject(t)
	mutated := referenceProject(t)
	require.NoError(t, os.Remove(filepath.Join(mutated, "templates", "layout.html")))
	edit(t, mutated, "blog/urls.py", "    path('post/', views.post, name='post'),\n", "")

	for name, root := range map[string]string{"reference": reference, "mutated": mutated} {
		t.Run(name, func(t *testing.T) {
			for _, source := range []string{"route table", "project views"} {
				c := loadContext(t, root)
				if source == "project views" {
					c.Handlers = projectViews(t, c)
				}

				runner := check.NewRunner(nil)
				first := runner.Run(context.Background(), c)
				second := runner.Run(context.Background(), c)

				assert.NotEqual(t, first.RunID, second.RunID)
				first.RunID, second.RunID = "", ""
				assert.Equal(t, first, second, source)
			}
		})
	}
}
