package django

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/leapstack-labs/blogcheck/internal/djtemplate"
	"github.com/leapstack-labs/blogcheck/pkg/check"
)

// NameReverser maps a route name to its path, as {% url %} does.
type NameReverser interface {
	ReverseName(name string) (string, error)
}

// ProjectViews is a check.HandlerSource that runs view functions in-process.
// The view module is evaluated with stand-ins for render() and HttpResponse,
// and templates are rendered from the directories the settings configure.
// No route is needed to reach a view.
type ProjectViews struct {
	root      string
	environ   map[string]string
	renderer  *djtemplate.Renderer
	staticURL string
	names     NameReverser
	logger    *slog.Logger
}

var _ check.HandlerSource = (*ProjectViews)(nil)

// NewProjectViews creates a handler source for the project at root. settings
// may be nil, in which case templates are looked up in root/templates.
// names resolves {% url %} tags; unresolvable names render as "#".
func NewProjectViews(root string, settings check.Snapshot, names NameReverser, logger *slog.Logger) *ProjectViews {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	v := &ProjectViews{
		root:      root,
		environ:   environMap(os.Environ()),
		staticURL: "/static/",
		names:     names,
		logger:    logger,
	}
	dirs := []string{filepath.Join(root, "templates")}
	if s, err := Decode(settings); err == nil {
		if d := templateDirs(root, s); len(d) > 0 {
			dirs = d
		}
		if s.StaticURL != "" {
			v.staticURL = staticPrefix(s.StaticURL)
		}
	} else {
		logger.Debug("settings not decoded, using default template dirs", "error", err)
	}
	v.renderer = &djtemplate.Renderer{
		Loader: &djtemplate.DirLoader{Dirs: dirs},
		Tags: map[string]djtemplate.TagFunc{
			"static": v.staticTag,
			"url":    v.urlTag,
		},
	}
	return v
}

// templateDirs lists the template directories the TEMPLATES setting
// configures: DIRS first, then <app>/templates of installed apps when
// APP_DIRS is set.
func templateDirs(root string, s *Settings) []string {
	var dirs []string
	for _, backend := range s.Templates {
		for _, d := range backend.Dirs {
			if !filepath.IsAbs(d) {
				d = filepath.Join(root, d)
			}
			dirs = append(dirs, filepath.Clean(d))
		}
	}
	for _, backend := range s.Templates {
		if !backend.AppDirs {
			continue
		}
		for _, app := range s.InstalledApps {
			dir := filepath.Join(root, filepath.FromSlash(appPackagePath(app)), "templates")
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// appPackagePath returns the package directory of an INSTALLED_APPS entry:
// "blog" for "blog.apps.BlogConfig".
func appPackagePath(app string) string {
	if i := strings.Index(app, ".apps."); i >= 0 {
		app = app[:i]
	}
	return strings.ReplaceAll(app, ".", "/")
}

// staticPrefix normalizes STATIC_URL the way Django does: a relative value
// is served from the site root and the prefix ends in a slash.
func staticPrefix(u string) string {
	if !strings.HasPrefix(u, "/") && !strings.Contains(u, "://") {
		u = "/" + u
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

func (v *ProjectViews) staticTag(args []string, _ map[string]any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("'static' takes at least one argument (path to file)")
	}
	return v.staticURL + strings.TrimPrefix(args[0], "/"), nil
}

func (v *ProjectViews) urlTag(args []string, _ map[string]any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("'url' takes at least one argument, a URL pattern name")
	}
	if v.names != nil {
		if path, err := v.names.ReverseName(args[0]); err == nil {
			return path, nil
		}
	}
	v.logger.Debug("url tag not resolved", "name", args[0])
	return "#", nil
}

// Handler implements check.HandlerSource. ref must name a function of a
// project module, e.g. "blog.views.index". The module is evaluated on every
// call.
func (v *ProjectViews) Handler(ref check.HandlerRef) (http.Handler, string, error) {
	i := strings.LastIndex(ref.Name, ".")
	if i <= 0 {
		return nil, "", fmt.Errorf("%s is not a module-level view", ref)
	}
	mod, name := ref.Name[:i], ref.Name[i+1:]

	file, err := moduleFile(v.root, mod)
	if err != nil {
		return nil, "", fmt.Errorf("views: %w", err)
	}
	display := displayPath(v.root, file)

	modules := baseModules(v.environ)
	for k, m := range v.djangoModules() {
		modules[k] = m
	}
	predeclared := starlark.StringDict{
		"__import__": importer(modules),
		"__name__":   starlark.String(mod),
	}
	globals, err := execModule(file, display, packageOf(mod, file), predeclared)
	if err != nil {
		return nil, "", err
	}

	fn, ok := globals[name].(*starlark.Function)
	if !ok {
		return nil, "", fmt.Errorf("%s does not define a function %s", display, name)
	}
	return &viewHandler{views: v, fn: fn, display: display}, "/", nil
}

// djangoModules are the stand-ins for the Django modules views import.
func (v *ProjectViews) djangoModules() map[string]starlark.Value {
	render := starlark.NewBuiltin("render", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var request, tmpl starlark.Value
		var context, contentType, using starlark.Value = starlark.None, starlark.None, starlark.None
		status := 200
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"request", &request, "template_name", &tmpl, "context?", &context,
			"content_type?", &contentType, "status?", &status, "using?", &using); err != nil {
			return nil, err
		}
		names, err := templateNames(tmpl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		data, err := contextData(context)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return &responseValue{status: status, templates: names, data: data, contentType: optString(contentType)}, nil
	})

	response := starlark.NewBuiltin("HttpResponse", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var content, contentType starlark.Value = starlark.String(""), starlark.None
		status := 200
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"content?", &content, "content_type?", &contentType, "status?", &status); err != nil {
			return nil, err
		}
		var body string
		switch c := content.(type) {
		case starlark.String:
			body = string(c)
		case starlark.Bytes:
			body = string(c)
		default:
			body = c.String()
		}
		return &responseValue{status: status, content: body, contentType: optString(contentType)}, nil
	})

	request := starlark.NewBuiltin("HttpRequest", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return newRequestValue(&http.Request{Method: http.MethodGet}), nil
	})

	renderToString := starlark.NewBuiltin("render_to_string", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var tmpl starlark.Value
		var context, req, using starlark.Value = starlark.None, starlark.None, starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"template_name", &tmpl, "context?", &context, "request?", &req, "using?", &using); err != nil {
			return nil, err
		}
		names, err := templateNames(tmpl)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		data, err := contextData(context)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		out, err := v.render(names, data)
		if err != nil {
			return nil, err
		}
		return starlark.String(out), nil
	})

	httpMod := starlark.StringDict{"HttpResponse": response, "HttpRequest": request}
	return map[string]starlark.Value{
		"django.shortcuts":       module("django.shortcuts", starlark.StringDict{"render": render}),
		"django.http":            module("django.http", httpMod),
		"django.template.loader": module("django.template.loader", starlark.StringDict{"render_to_string": renderToString}),
	}
}

// render renders the first template of names that exists.
func (v *ProjectViews) render(names []string, data map[string]any) (string, error) {
	var err error
	for _, name := range names {
		var out string
		out, err = v.renderer.Render(name, data)
		if err == nil {
			return out, nil
		}
		if _, missing := err.(*djtemplate.TemplateNotFoundError); !missing {
			return "", err
		}
	}
	return "", err
}

func templateNames(v starlark.Value) ([]string, error) {
	switch t := v.(type) {
	case starlark.String:
		return []string{string(t)}, nil
	case starlark.Indexable:
		var names []string
		for i := 0; i < t.Len(); i++ {
			s, ok := t.Index(i).(starlark.String)
			if !ok {
				return nil, fmt.Errorf("template names must be strings, got %s", t.Index(i).Type())
			}
			names = append(names, string(s))
		}
		if len(names) > 0 {
			return names, nil
		}
	}
	return nil, fmt.Errorf("want a template name, got %s", v.Type())
}

func contextData(v starlark.Value) (map[string]any, error) {
	if v == starlark.None {
		return map[string]any{}, nil
	}
	g, err := ToGo(v)
	if err != nil {
		return nil, err
	}
	data, ok := g.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("context must be a dict, got %s", v.Type())
	}
	return data, nil
}

func optString(v starlark.Value) string {
	if s, ok := v.(starlark.String); ok {
		return string(s)
	}
	return ""
}

// viewHandler calls one view function per request.
type viewHandler struct {
	views   *ProjectViews
	fn      *starlark.Function
	display string
}

func (h *viewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	thread := &starlark.Thread{
		Name:  "view:" + h.fn.Name(),
		Print: func(_ *starlark.Thread, _ string) {},
	}
	thread.SetMaxExecutionSteps(maxSteps)

	result, err := starlark.Call(thread, h.fn, starlark.Tuple{newRequestValue(r)}, nil)
	if err != nil {
		h.fail(w, evalError(h.display, err))
		return
	}
	resp, ok := result.(*responseValue)
	if !ok {
		h.fail(w, fmt.Errorf("%s returned %s, not an HttpResponse", h.fn.Name(), result.Type()))
		return
	}

	body := resp.content
	if len(resp.templates) > 0 {
		body, err = h.views.render(resp.templates, resp.data)
		if err != nil {
			h.fail(w, err)
			return
		}
	}
	ct := resp.contentType
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, body)
}

func (h *viewHandler) fail(w http.ResponseWriter, err error) {
	h.views.logger.Debug("view failed", "view", h.fn.Name(), "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// newRequestValue models the HttpRequest attributes views commonly read.
func newRequestValue(r *http.Request) starlark.Value {
	get := starlark.NewDict(0)
	if r.URL != nil {
		for k, vs := range r.URL.Query() {
			if len(vs) > 0 {
				_ = get.SetKey(starlark.String(k), starlark.String(vs[len(vs)-1]))
			}
		}
	}
	path := "/"
	if r.URL != nil && r.URL.Path != "" {
		path = r.URL.Path
	}
	return starlarkstruct.FromStringDict(starlark.String("HttpRequest"), starlark.StringDict{
		"method":  starlark.String(r.Method),
		"path":    starlark.String(path),
		"GET":     get,
		"POST":    starlark.NewDict(0),
		"COOKIES": starlark.NewDict(0),
		"META":    starlark.NewDict(0),
		"session": starlark.NewDict(0),
		"user":    NewRef("request.user"),
	})
}

// responseValue is the Starlark value of render() and HttpResponse().
type responseValue struct {
	status      int
	contentType string
	content     string
	templates   []string
	data        map[string]any
}

var _ starlark.HasAttrs = (*responseValue)(nil)

func (r *responseValue) String() string        { return fmt.Sprintf("<HttpResponse status_code=%d>", r.status) }
func (r *responseValue) Type() string          { return "HttpResponse" }
func (r *responseValue) Freeze()               {}
func (r *responseValue) Truth() starlark.Bool  { return starlark.True }
func (r *responseValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", r.Type()) }

// Attr implements starlark.HasAttrs.
func (r *responseValue) Attr(name string) (starlark.Value, error) {
	if name == "status_code" {
		return starlark.MakeInt(r.status), nil
	}
	return nil, nil
}

// AttrNames implements starlark.HasAttrs.
func (r *responseValue) AttrNames() []string { return []string{"status_code"} }
