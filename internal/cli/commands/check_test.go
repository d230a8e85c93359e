package commands

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/blogcheck/internal/cli/testutil"
	"github.com/leapstack-labs/blogcheck/pkg/check"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkReport(t *testing.T, out string) check.Report {
	t.Helper()
	var report check.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	return report
}

func TestCheckCommand_ReferenceProjectJSON(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	useProject(t, dir, nil)

	out, _, err := execute(NewCheckCommand(), "--format", "json")
	require.NoError(t, err)

	report := checkReport(t, out)
	assert.Equal(t, dir, report.Root)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Skipped, "views run in-process without base_url")
	assert.Equal(t, check.Count(), report.Passed)
	assert.Equal(t, 100, report.Score)
	assert.NotEmpty(t, report.RunID)
}

func TestCheckCommand_LiveViews(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<h1 class="my-4">Page Heading <small>Secondary Text</small></h1>`))
	})
	mux.HandleFunc("/post/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<h1 class="mt-4">Post Title</h1>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	useProject(t, dir, map[string]string{"base-url": srv.URL})

	out, _, err := execute(NewCheckCommand(), "--format", "json", "--rule", "VW01,VW02")
	require.NoError(t, err)

	report := checkReport(t, out)
	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.Equal(t, check.StatusPass, res.Status, "%s: %+v", res.RuleID, res.Diagnostics)
	}
}

func TestCheckCommand_UnroutedViews(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	testutil.WriteFile(t, dir, "blog/urls.py", "from django.urls import path\n\nurlpatterns = []\n")
	useProject(t, dir, nil)

	out, _, err := execute(NewCheckCommand(), "--format", "json", "--rule", "VW01,VW02,RT02")
	require.ErrorIs(t, err, ErrChecksFailed)

	report := checkReport(t, out)
	require.Len(t, report.Results, 3)
	status := make(map[string]check.Status, len(report.Results))
	for _, res := range report.Results {
		status[res.RuleID] = res.Status
	}
	assert.Equal(t, check.StatusFail, status["RT02"])
	assert.Equal(t, check.StatusPass, status["VW01"])
	assert.Equal(t, check.StatusPass, status["VW02"])
}

func TestCheckCommand_FailingProject(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	testutil.RemovePath(t, dir, "templates/layout.html")
	testutil.WriteFile(t, dir, "blog/urls.py", "from django.urls import path\n\nfrom . import views\n\nurlpatterns = [\n    path('', views.index, name='index'),\n]\n")
	useProject(t, dir, nil)

	t.Run("markdown", func(t *testing.T) {
		out, _, err := execute(NewCheckCommand(), "--format", "markdown")
		require.ErrorIs(t, err, ErrChecksFailed)

		testutil.AssertNoANSI(t, out)
		testutil.AssertValidMarkdown(t, out)
		assert.Contains(t, out, "# Blog Checklist Report")
		assert.Contains(t, out, "## Templates")
		assert.Contains(t, out, "**[FAIL]** PR08: layout-template")
		assert.Contains(t, out, "**[FAIL]** RT03: post-route")
		assert.Contains(t, out, "**[FAIL]** VW01")
		assert.Contains(t, out, "## Next Steps")
		assert.Contains(t, out, "PR08: Extract the common markup")
	})

	t.Run("text", func(t *testing.T) {
		out, _, err := execute(NewCheckCommand(), "--format", "text")
		require.ErrorIs(t, err, ErrChecksFailed)

		assert.Contains(t, out, "Blog Checklist Report")
		assert.Contains(t, out, "Templates")
		assert.Contains(t, out, "TP01: layout-content")
		assert.Contains(t, out, "/post/ does not resolve")
		assert.Contains(t, out, "Score:")
		assert.Contains(t, out, "Next Steps")
	})

	t.Run("only passing rules", func(t *testing.T) {
		out, _, err := execute(NewCheckCommand(), "--format", "json", "--rule", "pr01,st01")
		require.NoError(t, err)

		report := checkReport(t, out)
		require.Len(t, report.Results, 2)
		assert.Equal(t, "PR01", report.Results[0].RuleID)
		assert.Equal(t, "ST01", report.Results[1].RuleID)
	})

	t.Run("disable failing rules", func(t *testing.T) {
		out, _, err := execute(NewCheckCommand(), "--format", "json", "--disable", "PR08,TP01,RT03,VW01,VW02")
		require.NoError(t, err)

		report := checkReport(t, out)
		assert.Zero(t, report.Failed)
		for _, res := range report.Results {
			assert.NotContains(t, []string{"PR08", "TP01", "RT03", "VW01", "VW02"}, res.RuleID)
		}
	})
}

func TestCheckCommand_UnknownRule(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	useProject(t, dir, nil)

	_, _, err := execute(NewCheckCommand(), "--rule", "XX01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `rule "XX01" not found`)
}

func TestCheckCommand_MissingProjectDir(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	useProject(t, filepath.Join(dir, "nope"), nil)

	_, _, err := execute(NewCheckCommand())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrChecksFailed))
}

func TestRenderReport_Modes(t *testing.T) {
	report := &check.Report{
		RunID: "run-1",
		Root:  "/srv/website",
		Results: []check.RuleResult{
			{RuleID: "TP03", Name: "extends-layout", Group: "templates", Severity: check.SeverityWarning, Status: check.StatusFail,
				Hint: "Start the template with {% extends 'layout.html' %}",
				Diagnostics: []check.Diagnostic{{RuleID: "TP03", Message: "index.html does not extend layout.html", FilePath: "templates/blog/index.html", Line: 3}}},
			{RuleID: "PR01", Name: "project-name", Group: "project", Severity: check.SeverityError, Status: check.StatusPass},
			{RuleID: "VW01", Name: "index-view", Group: "views", Severity: check.SeverityError, Status: check.StatusSkip, Reason: "no server"},
		},
		Passed: 1, Failed: 1, Skipped: 1, Score: 50,
	}

	t.Run("text", func(t *testing.T) {
		tr := testutil.NewTestRendererText()
		require.NoError(t, renderReport(tr.Renderer, report))
		out := tr.Output()

		// Groups follow the exercise order regardless of result order.
		assert.Less(t, strings.Index(out, "Project"), strings.Index(out, "Templates"))
		assert.Less(t, strings.Index(out, "Templates"), strings.Index(out, "Views"))
		assert.Contains(t, out, "(templates/blog/index.html:3)")
		assert.Contains(t, out, "skipped: no server")
		assert.Contains(t, out, "Passed: 1 | Failed: 1 | Skipped: 1")
	})

	t.Run("markdown", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, renderReport(tr.Renderer, report))
		out := tr.Output()

		testutil.AssertNoANSI(t, out)
		assert.Contains(t, out, "**[WARN]** TP03: extends-layout")
		assert.Contains(t, out, "**[PASS]** PR01: project-name")
		assert.Contains(t, out, "**[SKIP]** VW01: index-view (skipped: no server)")
		assert.Contains(t, out, "**50/100** (1 passed, 1 failed, 1 skipped)")
		assert.Contains(t, out, "- **Run:** run-1")
	})

	t.Run("json", func(t *testing.T) {
		tr := testutil.NewTestRendererJSON()
		require.NoError(t, renderReport(tr.Renderer, report))

		got := checkReport(t, tr.Output())
		assert.Equal(t, "run-1", got.RunID)
		assert.Equal(t, check.SeverityWarning, got.Results[0].Severity)
		assert.Equal(t, check.StatusSkip, got.Results[2].Status)
	})
}

func TestRecommendations(t *testing.T) {
	report := &check.Report{Results: []check.RuleResult{
		{RuleID: "TP03", Severity: check.SeverityWarning, Status: check.StatusFail, Hint: "extend"},
		{RuleID: "PR01", Severity: check.SeverityError, Status: check.StatusFail, Hint: "rename"},
		{RuleID: "PR02", Severity: check.SeverityError, Status: check.StatusPass, Hint: "create"},
		{RuleID: "PR03", Severity: check.SeverityError, Status: check.StatusFail, Hint: "rename"},
	}}

	assert.Equal(t, []string{"PR01: rename", "TP03: extend"}, recommendations(report))

	for i := 0; i < 10; i++ {
		report.Results = append(report.Results, check.RuleResult{
			RuleID: "X", Severity: check.SeverityInfo, Status: check.StatusFail, Hint: strings.Repeat("h", i+1),
		})
	}
	assert.Len(t, recommendations(report), maxRecommendations)
}

func TestOrderGroups(t *testing.T) {
	groups := orderGroups(map[string][]int{
		"routes":   {1},
		"zeta":     {1},
		"project":  {1},
		"alpha":    {1},
		"settings": {},
	})
	assert.Equal(t, []string{"project", "routes", "alpha", "zeta"}, groups)
}

func TestRelevantChange(t *testing.T) {
	root := filepath.Join("/", "srv", "website")
	tests := []struct {
		name string
		file string
		op   fsnotify.Op
		want bool
	}{
		{"template write", "templates/layout.html", fsnotify.Write, true},
		{"new file", "blog/urls.py", fsnotify.Create, true},
		{"removed", "static/blog/css/styles.css", fsnotify.Remove, true},
		{"chmod only", "blog/views.py", fsnotify.Chmod, false},
		{"bytecode", "blog/__pycache__/views.cpython-312.pyc", fsnotify.Write, false},
		{"editor swap", "blog/.views.py.swp", fsnotify.Write, false},
		{"editor backup", "blog/views.py~", fsnotify.Write, false},
		{"emacs lock", "blog/.#views.py", fsnotify.Create, false},
		{"database", "db.sqlite3", fsnotify.Write, false},
		{"virtualenv", ".venv/lib/site.py", fsnotify.Write, false},
		{"git", ".git/index", fsnotify.Write, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := fsnotify.Event{Name: filepath.Join(root, filepath.FromSlash(tt.file)), Op: tt.op}
			assert.Equal(t, tt.want, relevantChange(root, event))
		})
	}
}
