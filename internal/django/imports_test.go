package django

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteImports(t *testing.T) {
	tests := []struct {
		name  string
		input string
		pkg   string
		want  string
	}{
		{
			name:  "plain import",
			input: "import os",
			want:  `os = __import__("os")`,
		},
		{
			name:  "dotted import binds top package",
			input: "import os.path, sys",
			want:  `os = __import__("os"); sys = __import__("sys")`,
		},
		{
			name:  "import as",
			input: "import dj_database_url as dburl",
			want:  `dburl = __import__("dj_database_url")`,
		},
		{
			name:  "from import",
			input: "from django.urls import path, include  # routing",
			want:  `path = __import__("django.urls", "path"); include = __import__("django.urls", "include")`,
		},
		{
			name:  "relative import",
			input: "from . import views",
			pkg:   "blog",
			want:  `views = __import__("blog", "views")`,
		},
		{
			name:  "relative submodule import with alias",
			input: "from .views import index as home",
			pkg:   "blog",
			want:  `home = __import__("blog.views", "index")`,
		},
		{
			name:  "star import",
			input: "from .base import *",
			pkg:   "website.settings",
			want:  "pass",
		},
		{
			name:  "indentation is kept",
			input: "if True:\n    import os",
			want:  "if True:\n    os = __import__(\"os\")",
		},
		{
			name:  "parenthesized names keep line count",
			input: "from django.urls import (\n    path,\n    include,\n)\nX = 1",
			want:  "path = __import__(\"django.urls\", \"path\"); include = __import__(\"django.urls\", \"include\")\n\n\n\nX = 1",
		},
		{
			name:  "docstrings are left alone",
			input: "\"\"\"\nfrom my_app import views\n\"\"\"\nimport os",
			want:  "\"\"\"\nfrom my_app import views\n\"\"\"\nos = __import__(\"os\")",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rewriteImports(tt.input, tt.pkg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, strings.Count(tt.input, "\n"), strings.Count(got, "\n"), "line count must not change")
		})
	}
}

func TestRewriteImports_BeyondTopLevel(t *testing.T) {
	_, err := rewriteImports("from .. import views", "blog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, err.Error(), "beyond top-level package")
}

func TestResolveModule(t *testing.T) {
	tests := []struct {
		name, pkg, want string
	}{
		{"blog.views", "website", "blog.views"},
		{".", "blog", "blog"},
		{".views", "blog", "blog.views"},
		{"..views", "website.settings", "website.views"},
	}
	for _, tt := range tests {
		got, err := resolveModule(tt.name, tt.pkg)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestTripleQuoteState(t *testing.T) {
	assert.Equal(t, `"""`, tripleQuoteState(`"""`, ""))
	assert.Equal(t, "", tripleQuoteState(`x = """one line"""`, ""))
	assert.Equal(t, "", tripleQuoteState(`end"""`, `"""`))
	assert.Equal(t, `'''`, tripleQuoteState(`still inside`, `'''`))
}
