package django

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.starlark.net/starlark"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

// maxIncludeDepth bounds include() nesting.
const maxIncludeDepth = 8

// URLPattern is one entry of a urlpatterns list.
type URLPattern struct {
	Route   string // route as written in path() or re_path()
	Regex   bool   // declared with re_path()
	Name    string // name= argument
	View    check.HandlerRef
	Include *URLConf // set for include() entries; View is zero then
	Line    int

	re        *regexp.Regexp
	converted bool // route contains converters or regex syntax
}

// URLConf is an evaluated URL configuration module.
type URLConf struct {
	Module   string
	File     string
	Patterns []*URLPattern
}

// URLConfLoader evaluates URL configuration modules below a project root.
type URLConfLoader struct {
	root    string
	environ map[string]string
}

// NewURLConfLoader creates a loader for the project at root.
func NewURLConfLoader(root string) *URLConfLoader {
	return &URLConfLoader{root: root, environ: environMap(os.Environ())}
}

// Load evaluates the dotted module (e.g. "website.urls") and every module it
// includes.
func (l *URLConfLoader) Load(dotted string) (*URLConf, error) {
	return l.load(dotted, nil)
}

func (l *URLConfLoader) load(dotted string, stack []string) (*URLConf, error) {
	for _, m := range stack {
		if m == dotted {
			return nil, fmt.Errorf("urls: include cycle %s -> %s", strings.Join(stack, " -> "), dotted)
		}
	}
	if len(stack) >= maxIncludeDepth {
		return nil, fmt.Errorf("urls: includes nested deeper than %d at %s", maxIncludeDepth, dotted)
	}
	stack = append(stack, dotted)

	file, err := moduleFile(l.root, dotted)
	if err != nil {
		return nil, fmt.Errorf("urls: %w", err)
	}
	display := displayPath(l.root, file)
	pkg := packageOf(dotted, file)

	modules := baseModules(l.environ)
	b := &urlBuiltins{module: dotted}
	urlsMod := module("django.urls", starlark.StringDict{
		"path":    starlark.NewBuiltin("path", b.path(false)),
		"re_path": starlark.NewBuiltin("re_path", b.path(true)),
		"include": starlark.NewBuiltin("include", b.include),
	})
	modules["django.urls"] = urlsMod
	modules["django.conf.urls"] = urlsMod

	predeclared := starlark.StringDict{
		"__import__": importer(modules),
		"__name__":   starlark.String(dotted),
	}
	globals, err := execModule(file, display, pkg, predeclared)
	if err != nil {
		return nil, err
	}

	raw, ok := globals["urlpatterns"]
	if !ok {
		return nil, &EvalError{File: display, Msg: "module does not define urlpatterns"}
	}
	conf := &URLConf{Module: dotted, File: display}
	if err := l.collect(conf, raw, stack); err != nil {
		return nil, err
	}
	return conf, nil
}

// collect appends the patterns in the urlpatterns value v to conf, loading
// included modules.
func (l *URLConfLoader) collect(conf *URLConf, v starlark.Value, stack []string) error {
	seq, ok := v.(starlark.Indexable)
	if !ok {
		return &EvalError{File: conf.File, Msg: fmt.Sprintf("urlpatterns must be a list, got %s", v.Type())}
	}
	for i := 0; i < seq.Len(); i++ {
		pv, ok := seq.Index(i).(*patternValue)
		if !ok {
			// Refs from unmodelled helpers contribute no routes.
			continue
		}
		p := pv.pattern
		if pv.include != nil {
			inc, err := l.resolveInclude(conf, pv.include, stack)
			if err != nil {
				return err
			}
			p.Include = inc
		}
		conf.Patterns = append(conf.Patterns, p)
	}
	return nil
}

func (l *URLConfLoader) resolveInclude(conf *URLConf, inc *includeValue, stack []string) (*URLConf, error) {
	if inc.module != "" {
		return l.load(inc.module, stack)
	}
	nested := &URLConf{Module: conf.Module, File: conf.File}
	if err := l.collect(nested, inc.patterns, stack); err != nil {
		return nil, err
	}
	return nested, nil
}

// urlBuiltins implements path(), re_path() and include() for one module.
type urlBuiltins struct {
	module string
}

type builtinFunc = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

func (b *urlBuiltins) path(regex bool) builtinFunc {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			route  string
			view   starlark.Value
			extra  starlark.Value = starlark.None
			name   starlark.Value = starlark.None
			result = &patternValue{}
		)
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "route", &route, "view", &view, "kwargs?", &extra, "name?", &name); err != nil {
			return nil, err
		}

		p := &URLPattern{Route: route, Regex: regex, Line: callerLine(thread)}
		if s, ok := name.(starlark.String); ok {
			p.Name = string(s)
		}

		switch v := view.(type) {
		case *includeValue:
			result.include = v
		case Ref:
			p.View = check.NamedRef(v.name)
		case *starlark.Function:
			p.View = check.NamedRef(b.module + "." + v.Name())
		case *starlark.List, starlark.Tuple:
			result.include = &includeValue{patterns: v}
		default:
			return nil, fmt.Errorf("%s: view must be a callable or include(), got %s", fn.Name(), view.Type())
		}

		re, converted, err := compileRoute(route, regex, result.include == nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name(), err)
		}
		p.re, p.converted = re, converted

		result.pattern = p
		return result, nil
	}
}

func (b *urlBuiltins) include(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		arg       starlark.Value
		namespace starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "arg", &arg, "namespace?", &namespace); err != nil {
		return nil, err
	}
	if t, ok := arg.(starlark.Tuple); ok && t.Len() > 0 {
		arg = t.Index(0)
	}
	switch v := arg.(type) {
	case starlark.String:
		return &includeValue{module: string(v)}, nil
	case Ref:
		return &includeValue{module: v.name}, nil
	case *starlark.List:
		return &includeValue{patterns: v}, nil
	default:
		return nil, fmt.Errorf("%s: want module name or pattern list, got %s", fn.Name(), arg.Type())
	}
}

// callerLine returns the line of the innermost call site in thread.
func callerLine(thread *starlark.Thread) int {
	if thread == nil || thread.CallStackDepth() < 2 {
		return 0
	}
	return int(thread.CallFrame(1).Pos.Line)
}

// patternValue is the Starlark value of a path() call.
type patternValue struct {
	pattern *URLPattern
	include *includeValue
}

func (p *patternValue) String() string        { return fmt.Sprintf("<URLPattern %q>", p.pattern.Route) }
func (p *patternValue) Type() string          { return "URLPattern" }
func (p *patternValue) Freeze()               {}
func (p *patternValue) Truth() starlark.Bool  { return starlark.True }
func (p *patternValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", p.Type()) }

// includeValue is the Starlark value of an include() call.
type includeValue struct {
	module   string
	patterns starlark.Value
}

func (i *includeValue) String() string {
	if i.module != "" {
		return fmt.Sprintf("include(%q)", i.module)
	}
	return "include([...])"
}
func (i *includeValue) Type() string          { return "include" }
func (i *includeValue) Freeze()               {}
func (i *includeValue) Truth() starlark.Bool  { return starlark.True }
func (i *includeValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", i.Type()) }
