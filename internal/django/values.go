package django

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// Path is a pathlib.Path value. Operations are lexical; the filesystem is
// only consulted by exists() and is_dir().
type Path struct {
	path string
}

var (
	_ starlark.HasAttrs  = Path{}
	_ starlark.HasBinary = Path{}
)

// NewPath returns a Path for p.
func NewPath(p string) Path { return Path{path: p} }

func (p Path) String() string        { return p.path }
func (p Path) Type() string          { return "Path" }
func (p Path) Freeze()               {}
func (p Path) Truth() starlark.Bool  { return p.path != "" }
func (p Path) Hash() (uint32, error) { return starlark.String(p.path).Hash() }

var pathAttrs = []string{"absolute", "exists", "is_dir", "joinpath", "name", "parent", "resolve", "stem", "suffix"}

// Attr implements starlark.HasAttrs.
func (p Path) Attr(name string) (starlark.Value, error) {
	switch name {
	case "parent":
		return Path{filepath.Dir(p.path)}, nil
	case "name":
		return starlark.String(filepath.Base(p.path)), nil
	case "suffix":
		return starlark.String(filepath.Ext(p.path)), nil
	case "stem":
		return starlark.String(strings.TrimSuffix(filepath.Base(p.path), filepath.Ext(p.path))), nil
	case "resolve", "absolute":
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			abs, err := filepath.Abs(p.path)
			if err != nil {
				return nil, err
			}
			return Path{abs}, nil
		}), nil
	case "joinpath":
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			out := p.path
			for i, a := range args {
				s, ok := pathString(a)
				if !ok {
					return nil, fmt.Errorf("%s: argument %d: want str or Path, got %s", b.Name(), i+1, a.Type())
				}
				out = joinPath(out, s)
			}
			return Path{out}, nil
		}), nil
	case "exists", "is_dir":
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			info, err := os.Stat(p.path)
			if err != nil {
				return starlark.False, nil
			}
			return starlark.Bool(name == "exists" || info.IsDir()), nil
		}), nil
	}
	return nil, nil
}

// AttrNames implements starlark.HasAttrs.
func (p Path) AttrNames() []string { return pathAttrs }

// Binary implements the / operator.
func (p Path) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	if op != syntax.SLASH {
		return nil, nil
	}
	s, ok := pathString(y)
	if !ok {
		return nil, nil
	}
	if side == starlark.Left {
		return Path{joinPath(p.path, s)}, nil
	}
	return Path{joinPath(s, p.path)}, nil
}

// joinPath joins elem onto base; an absolute elem replaces base.
func joinPath(base, elem string) string {
	if filepath.IsAbs(elem) {
		return filepath.Clean(elem)
	}
	return filepath.Join(base, elem)
}

func pathString(v starlark.Value) (string, bool) {
	switch v := v.(type) {
	case starlark.String:
		return string(v), true
	case Path:
		return v.path, true
	}
	return "", false
}

// Ref is an opaque reference to something the evaluator does not model: an
// unknown module, an attribute of it, or the result of calling it. Refs are
// named by their dotted path, e.g. "blog.views.index".
type Ref struct {
	name string
}

var (
	_ starlark.HasAttrs  = Ref{}
	_ starlark.Callable  = Ref{}
	_ starlark.HasBinary = Ref{}
)

// NewRef returns a reference named name.
func NewRef(name string) Ref { return Ref{name: name} }

func (r Ref) String() string        { return r.name }
func (r Ref) Type() string          { return "ref" }
func (r Ref) Freeze()               {}
func (r Ref) Truth() starlark.Bool  { return starlark.True }
func (r Ref) Hash() (uint32, error) { return starlark.String(r.name).Hash() }
func (r Ref) Name() string          { return r.name }

// Attr implements starlark.HasAttrs.
func (r Ref) Attr(name string) (starlark.Value, error) {
	return Ref{r.name + "." + name}, nil
}

// AttrNames implements starlark.HasAttrs.
func (r Ref) AttrNames() []string { return nil }

// CallInternal implements starlark.Callable.
func (r Ref) CallInternal(_ *starlark.Thread, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	return Ref{r.name + "()"}, nil
}

// Binary lets a list absorb a ref: urlpatterns += static(...) leaves the
// list unchanged.
func (r Ref) Binary(op syntax.Token, y starlark.Value, _ starlark.Side) (starlark.Value, error) {
	if l, ok := y.(*starlark.List); ok && op == syntax.PLUS {
		return l, nil
	}
	return nil, nil
}

// module returns a module value with the given members.
func module(name string, members starlark.StringDict) *starlarkstruct.Module {
	return &starlarkstruct.Module{Name: name, Members: members}
}

// osModule models the parts of os and os.path settings files use.
func osModule(environ map[string]string) *starlarkstruct.Module {
	env := starlark.NewDict(len(environ))
	keys := make([]string, 0, len(environ))
	for k := range environ {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = env.SetKey(starlark.String(k), starlark.String(environ[k]))
	}
	env.Freeze()

	getenv := starlark.NewBuiltin("getenv", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var key string
		var def starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "default?", &def); err != nil {
			return nil, err
		}
		if v, ok := environ[key]; ok {
			return starlark.String(v), nil
		}
		return def, nil
	})

	return module("os", starlark.StringDict{
		"environ": env,
		"getenv":  getenv,
		"sep":     starlark.String(string(filepath.Separator)),
		"path":    osPathModule(),
	})
}

func osPathModule() *starlarkstruct.Module {
	unary := func(name string, fn func(string) (string, error)) *starlark.Builtin {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("%s: want 1 argument, got %d", b.Name(), len(args))
			}
			s, ok := pathString(args[0])
			if !ok {
				return nil, fmt.Errorf("%s: want str or Path, got %s", b.Name(), args[0].Type())
			}
			out, err := fn(s)
			if err != nil {
				return nil, err
			}
			return starlark.String(out), nil
		})
	}
	predicate := func(name string, fn func(os.FileInfo) bool) *starlark.Builtin {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("%s: want 1 argument, got %d", b.Name(), len(args))
			}
			s, ok := pathString(args[0])
			if !ok {
				return starlark.False, nil
			}
			info, err := os.Stat(s)
			return starlark.Bool(err == nil && fn(info)), nil
		})
	}

	join := starlark.NewBuiltin("join", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%s: missing argument", b.Name())
		}
		var out string
		for i, a := range args {
			s, ok := pathString(a)
			if !ok {
				return nil, fmt.Errorf("%s: argument %d: want str or Path, got %s", b.Name(), i+1, a.Type())
			}
			if i == 0 {
				out = s
				continue
			}
			out = joinPath(out, s)
		}
		return starlark.String(out), nil
	})

	return module("os.path", starlark.StringDict{
		"join":     join,
		"abspath":  unary("abspath", filepath.Abs),
		"realpath": unary("realpath", filepath.Abs),
		"dirname":  unary("dirname", func(s string) (string, error) { return filepath.Dir(s), nil }),
		"basename": unary("basename", func(s string) (string, error) { return filepath.Base(s), nil }),
		"normpath": unary("normpath", func(s string) (string, error) { return filepath.Clean(s), nil }),
		"exists":   predicate("exists", func(os.FileInfo) bool { return true }),
		"isdir":    predicate("isdir", os.FileInfo.IsDir),
		"isfile":   predicate("isfile", func(fi os.FileInfo) bool { return fi.Mode().IsRegular() }),
	})
}

// pathlibModule provides the Path constructor.
func pathlibModule() *starlarkstruct.Module {
	ctor := starlark.NewBuiltin("Path", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		out := "."
		for i, a := range args {
			s, ok := pathString(a)
			if !ok {
				return nil, fmt.Errorf("%s: argument %d: want str or Path, got %s", b.Name(), i+1, a.Type())
			}
			if i == 0 {
				out = filepath.Clean(s)
				continue
			}
			out = joinPath(out, s)
		}
		return Path{out}, nil
	})
	return module("pathlib", starlark.StringDict{
		"Path":        ctor,
		"PurePath":    ctor,
		"PosixPath":   ctor,
		"WindowsPath": ctor,
	})
}
