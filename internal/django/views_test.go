package django

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

const viewsPy = `from django.shortcuts import render
from django.http import HttpResponse

from .models import Post


def index(request):
    posts = ['First', 'Second']
    return render(request, 'blog/index.html', {'posts': posts, 'title': 'Home'})


def post(request):
    return render(request, ['blog/missing.html', 'blog/post.html'])


def about(request):
    return HttpResponse('<p>About</p>', status=202)


def broken(request):
    return render(request, 'blog/nowhere.html')


def plain(request):
    return 'not a response'
`

const layoutHTML = `{% load static %}<html><head><title>{% block title %}Blog{% endblock %}</title>` +
	`<link href="{% static 'blog/css/styles.css' %}"></head>` +
	`<body><a href="{% url 'index' %}">Home</a>{% block content %}{% endblock %}</body></html>`

func viewsProject(t *testing.T, files map[string]string) string {
	t.Helper()
	all := map[string]string{
		"blog/views.py":                 viewsPy,
		"templates/layout.html":         layoutHTML,
		"templates/blog/index.html":     `{% extends "layout.html" %}{% block title %}{{ title }}{% endblock %}{% block content %}{% for p in posts %}<h2>{{ p }}</h2>{% endfor %}{% endblock %}`,
		"templates/blog/post.html":      `{% extends "layout.html" %}{% block content %}<h1 class="mt-4">Post Title</h1>{% endblock %}`,
		"blog/templates/blog/side.html": `side`,
	}
	for k, v := range files {
		all[k] = v
	}
	return writeProject(t, all)
}

func projectViews(t *testing.T, root string, names NameReverser) *ProjectViews {
	t.Helper()
	snap, err := NewSettingsLoader(root).Load("website.settings")
	require.NoError(t, err)
	return NewProjectViews(root, snap, names, nil)
}

func serveView(t *testing.T, v *ProjectViews, name string) *check.ViewResponse {
	t.Helper()
	h, target, err := v.Handler(check.NamedRef(name))
	require.NoError(t, err)
	assert.Equal(t, "/", target)
	return check.InvokeView(context.Background(), h, target)
}

func TestProjectViews_Render(t *testing.T) {
	root := viewsProject(t, nil)
	conf, err := NewURLConfLoader(root).Load("website.urls")
	require.NoError(t, err)
	v := projectViews(t, root, conf)

	resp := serveView(t, v, "blog.views.index")
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, `<html><head><title>Home</title><link href="/static/blog/css/styles.css"></head>`+
		`<body><a href="/">Home</a><h2>First</h2><h2>Second</h2></body></html>`, resp.Body)

	t.Run("first existing template wins", func(t *testing.T) {
		resp := serveView(t, v, "blog.views.post")
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.True(t, check.PostHeading.Re.MatchString(resp.Body), resp.Body)
	})

	t.Run("http response", func(t *testing.T) {
		resp := serveView(t, v, "blog.views.about")
		assert.Equal(t, http.StatusAccepted, resp.Status)
		assert.Equal(t, "<p>About</p>", resp.Body)
	})

	t.Run("missing template", func(t *testing.T) {
		resp := serveView(t, v, "blog.views.broken")
		assert.Equal(t, http.StatusInternalServerError, resp.Status)
		assert.Contains(t, resp.Body, "blog/nowhere.html")
	})

	t.Run("not a response", func(t *testing.T) {
		resp := serveView(t, v, "blog.views.plain")
		assert.Equal(t, http.StatusInternalServerError, resp.Status)
		assert.Contains(t, resp.Body, "not an HttpResponse")
	})
}

func TestProjectViews_WithoutRoutes(t *testing.T) {
	root := viewsProject(t, map[string]string{
		"blog/urls.py": "from django.urls import path\n\nurlpatterns = []\n",
	})
	conf, err := NewURLConfLoader(root).Load("website.urls")
	require.NoError(t, err)

	for _, names := range []NameReverser{conf, nil} {
		v := projectViews(t, root, names)
		resp := serveView(t, v, "blog.views.index")
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Contains(t, resp.Body, `<a href="#">Home</a>`)
	}
}

func TestProjectViews_TemplateDirs(t *testing.T) {
	root := viewsProject(t, map[string]string{
		"website/settings.py": settingsPy + "\nSTATIC_URL = '/assets'\n",
		"blog/views.py": `from django.template.loader import render_to_string
from django.http import HttpResponse


def side(request):
    return HttpResponse(render_to_string('blog/side.html'))


def index(request):
    return HttpResponse(render_to_string('layout.html'))
`,
	})
	v := projectViews(t, root, nil)

	resp := serveView(t, v, "blog.views.side")
	assert.Equal(t, "side", resp.Body, "app templates directory is searched")

	resp = serveView(t, v, "blog.views.index")
	assert.Contains(t, resp.Body, `href="/assets/blog/css/styles.css"`)
}

func TestProjectViews_HandlerErrors(t *testing.T) {
	root := viewsProject(t, nil)
	v := projectViews(t, root, nil)

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"missing function", "blog.views.detail", "does not define a function detail"},
		{"missing module", "news.views.index", "module news.views not found"},
		{"not a dotted name", "index", "not a module-level view"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := v.Handler(check.NamedRef(tt.ref))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, errors.Is(err, check.ErrSkipped))
		})
	}

	t.Run("unsupported syntax", func(t *testing.T) {
		root := viewsProject(t, map[string]string{
			"blog/views.py": viewsPy + "\n\nclass PostList:\n    pass\n",
		})
		v := projectViews(t, root, nil)

		_, _, err := v.Handler(check.NamedRef("blog.views.index"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, check.ErrSkipped))
	})
}

func TestStaticPrefix(t *testing.T) {
	assert.Equal(t, "/static/", staticPrefix("static/"))
	assert.Equal(t, "/static/", staticPrefix("/static"))
	assert.Equal(t, "https://cdn.example.com/s/", staticPrefix("https://cdn.example.com/s"))
}
