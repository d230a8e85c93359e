package djtemplate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapLoader serves templates from memory.
type mapLoader map[string]string

func (m mapLoader) Load(name string) (*Document, error) {
	src, ok := m[name]
	if !ok {
		return nil, &TemplateNotFoundError{Name: name}
	}
	return Parse(src, name)
}

func TestRenderer_Variables(t *testing.T) {
	tests := []struct {
		name  string
		input string
		data  map[string]any
		want  string
	}{
		{"plain text", "<p>hello</p>", nil, "<p>hello</p>"},
		{"variable", "Hi {{ name }}!", map[string]any{"name": "Ada"}, "Hi Ada!"},
		{"dotted path", "{{ post.title }}", map[string]any{"post": map[string]any{"title": "First"}}, "First"},
		{"list index", "{{ tags.1 }}", map[string]any{"tags": []any{"a", "b"}}, "b"},
		{"missing renders empty", "[{{ nope }}]", nil, "[]"},
		{"escaped", "{{ html }}", map[string]any{"html": "<b>"}, "&lt;b&gt;"},
		{"safe filter", "{{ html|safe }}", map[string]any{"html": "<b>"}, "<b>"},
		{"default filter", `{{ title|default:"Blog" }}`, nil, "Blog"},
		{"upper filter", "{{ name|upper }}", map[string]any{"name": "ada"}, "ADA"},
		{"comment dropped", "a{# note #}b", nil, "ab"},
		{"unknown tag dropped", "a{% csrf_token %}b", nil, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Renderer{Loader: mapLoader{"t.html": tt.input}}
			got, err := r.Render("t.html", tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_ControlTags(t *testing.T) {
	data := map[string]any{
		"posts": []any{"one", "two"},
		"user":  map[string]any{"name": "ada", "staff": false},
		"none":  []any{},
	}
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"if true", "{% if user %}yes{% endif %}", "yes"},
		{"if else", "{% if user.staff %}staff{% else %}guest{% endif %}", "guest"},
		{"elif", "{% if user.staff %}a{% elif user.name == 'ada' %}b{% else %}c{% endif %}", "b"},
		{"not", "{% if not user.staff %}x{% endif %}", "x"},
		{"and or", "{% if user.staff or posts and user %}x{% endif %}", "x"},
		{"for", "{% for p in posts %}[{{ p }}]{% endfor %}", "[one][two]"},
		{"forloop counter", "{% for p in posts %}{{ forloop.counter }}{% endfor %}", "12"},
		{"for empty", "{% for p in none %}x{% empty %}nothing{% endfor %}", "nothing"},
		{"with", "{% with who=user.name %}{{ who }}{% endwith %}", "ada"},
		{"comment block", "a{% comment %}{{ posts }}{% endcomment %}b", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Renderer{Loader: mapLoader{"t.html": tt.input}}
			got, err := r.Render("t.html", data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_Inheritance(t *testing.T) {
	loader := mapLoader{
		"layout.html":  "<title>{% block title %}Blog{% endblock %}</title><main>{% block content %}{% endblock %}</main>",
		"child.html":   "{% extends 'layout.html' %}\nignored text\n{% block content %}<h1>Hi</h1>{% endblock %}",
		"super.html":   "{% extends 'layout.html' %}{% block title %}{{ block.super }} | Post{% endblock %}",
		"grand.html":   "{% extends 'child.html' %}{% block title %}Grand{% endblock %}",
		"dynamic.html": "{% extends base %}{% block content %}dyn{% endblock %}",
		"loop.html":    "{% extends 'loop.html' %}",
		"orphan.html":  "{% extends 'missing.html' %}",
	}
	r := &Renderer{Loader: loader}

	tests := []struct {
		name string
		tmpl string
		data map[string]any
		want string
	}{
		{"child replaces block", "child.html", nil, "<title>Blog</title><main><h1>Hi</h1></main>"},
		{"block super", "super.html", nil, "<title>Blog | Post</title><main></main>"},
		{"two levels", "grand.html", nil, "<title>Grand</title><main><h1>Hi</h1></main>"},
		{"dynamic parent", "dynamic.html", map[string]any{"base": "layout.html"}, "<title>Blog</title><main>dyn</main>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.tmpl, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("self extends", func(t *testing.T) {
		_, err := r.Render("loop.html", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extends itself")
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := r.Render("orphan.html", nil)
		var nf *TemplateNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "missing.html", nf.Name)
	})
}

func TestRenderer_TagsAndInclude(t *testing.T) {
	loader := mapLoader{
		"page.html": `{% load static %}<link href="{% static 'css/site.css' %}">{% include "nav.html" %}`,
		"nav.html":  `<a href="{% url 'index' %}">{{ brand }}</a>`,
		"bad.html":  `{% url 'nowhere' %}`,
	}
	r := &Renderer{
		Loader: loader,
		Tags: map[string]TagFunc{
			"static": func(args []string, _ map[string]any) (string, error) {
				return "/static/" + args[0], nil
			},
			"url": func(args []string, _ map[string]any) (string, error) {
				if args[0] == "index" {
					return "/", nil
				}
				return "", fmt.Errorf("no route named %q", args[0])
			},
		},
	}

	got, err := r.Render("page.html", map[string]any{"brand": "Blog"})
	require.NoError(t, err)
	assert.Equal(t, `<link href="/static/css/site.css"><a href="/">Blog</a>`, got)

	_, err = r.Render("bad.html", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no route named "nowhere"`)
}

func TestDirLoader(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(second, "blog"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(first, "layout.html"), []byte("first"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(second, "layout.html"), []byte("second"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(second, "blog", "index.html"), []byte("index"), 0o600))

	l := &DirLoader{Dirs: []string{first, second}}

	doc, err := l.Load("layout.html")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.File, filepath.ToSlash(first)), doc.File)

	doc, err = l.Load("blog/index.html")
	require.NoError(t, err)
	assert.Equal(t, "index", doc.Nodes[0].(*TextNode).Text)

	_, err = l.Load("missing.html")
	var nf *TemplateNotFoundError
	require.ErrorAs(t, err, &nf)
}
