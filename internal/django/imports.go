package django

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
)

var (
	importLine = regexp.MustCompile(`^(\s*)import\s+(.+)$`)
	fromLine   = regexp.MustCompile(`^(\s*)from\s+(\.*[\w.]*)\s+import\s+(.+)$`)
)

var errUnsupportedImport = errors.New("unsupported import")

// rewriteImports turns Python import statements into assignments from the
// predeclared __import__ builtin, keeping line numbers stable. pkg is the
// dotted package of the file, used to resolve relative imports.
func rewriteImports(src, pkg string) (string, error) {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	inString := ""

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if inString != "" || strings.Contains(line, `"""`) || strings.Contains(line, `'''`) {
			inString = tripleQuoteState(line, inString)
			out = append(out, line)
			continue
		}

		if m := importLine.FindStringSubmatch(line); m != nil {
			stmts, err := importStmts(stripComment(m[2]))
			if err != nil {
				return "", fmt.Errorf("line %d: %w", i+1, err)
			}
			out = append(out, m[1]+strings.Join(stmts, "; "))
			continue
		}

		if m := fromLine.FindStringSubmatch(line); m != nil {
			names := stripComment(m[3])
			consumed := 0
			if strings.HasPrefix(names, "(") {
				for !strings.Contains(names, ")") && i+consumed+1 < len(lines) {
					consumed++
					names += " " + stripComment(lines[i+consumed])
				}
				names = strings.Trim(strings.TrimSpace(names), "()")
			}
			mod, err := resolveModule(m[2], pkg)
			if err != nil {
				return "", fmt.Errorf("line %d: %w", i+1, err)
			}
			out = append(out, m[1]+strings.Join(fromStmts(mod, names), "; "))
			for ; consumed > 0; consumed-- {
				i++
				out = append(out, "")
			}
			continue
		}

		out = append(out, line)
	}
	return strings.Join(out, "\n"), nil
}

// importStmts handles "import a.b as c, d".
func importStmts(spec string) ([]string, error) {
	var stmts []string
	for _, item := range strings.Split(spec, ",") {
		fields := strings.Fields(item)
		switch {
		case len(fields) == 1:
			top := strings.SplitN(fields[0], ".", 2)[0]
			stmts = append(stmts, fmt.Sprintf("%s = __import__(%s)", top, strconv.Quote(top)))
		case len(fields) == 3 && fields[1] == "as":
			stmts = append(stmts, fmt.Sprintf("%s = __import__(%s)", fields[2], strconv.Quote(fields[0])))
		default:
			return nil, fmt.Errorf("%w %q", errUnsupportedImport, strings.TrimSpace(item))
		}
	}
	return stmts, nil
}

// fromStmts handles "from mod import a, b as c". Star imports bind nothing.
func fromStmts(mod, names string) []string {
	var stmts []string
	for _, item := range strings.Split(names, ",") {
		fields := strings.Fields(item)
		switch {
		case len(fields) == 1 && fields[0] == "*":
			stmts = append(stmts, "pass")
		case len(fields) == 1:
			stmts = append(stmts, fmt.Sprintf("%s = __import__(%s, %s)", fields[0], strconv.Quote(mod), strconv.Quote(fields[0])))
		case len(fields) == 3 && fields[1] == "as":
			stmts = append(stmts, fmt.Sprintf("%s = __import__(%s, %s)", fields[2], strconv.Quote(mod), strconv.Quote(fields[0])))
		}
	}
	if len(stmts) == 0 {
		stmts = append(stmts, "pass")
	}
	return stmts
}

// resolveModule turns a possibly relative module name into an absolute
// dotted one.
func resolveModule(name, pkg string) (string, error) {
	dots := len(name) - len(strings.TrimLeft(name, "."))
	if dots == 0 {
		return name, nil
	}
	parts := strings.Split(pkg, ".")
	if pkg == "" || dots-1 > len(parts)-1 {
		return "", fmt.Errorf("relative import %q beyond top-level package", name)
	}
	base := strings.Join(parts[:len(parts)-(dots-1)], ".")
	if rest := name[dots:]; rest != "" {
		return base + "." + rest, nil
	}
	return base, nil
}

func stripComment(s string) string {
	if i := strings.Index(s, "#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// tripleQuoteState returns the open triple-quote delimiter after line, given
// the one open before it.
func tripleQuoteState(line, open string) string {
	for {
		if open != "" {
			i := strings.Index(line, open)
			if i < 0 {
				return open
			}
			line = line[i+3:]
			open = ""
			continue
		}
		d, s := strings.Index(line, `"""`), strings.Index(line, `'''`)
		switch {
		case d < 0 && s < 0:
			return ""
		case s < 0 || (d >= 0 && d < s):
			open, line = `"""`, line[d+3:]
		default:
			open, line = `'''`, line[s+3:]
		}
	}
}

// importer returns the __import__ builtin over the given modules. Unknown
// modules and members become Refs.
func importer(modules map[string]starlark.Value) *starlark.Builtin {
	return starlark.NewBuiltin("__import__", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var mod, attr string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "module", &mod, "attr?", &attr); err != nil {
			return nil, err
		}
		if attr == "" {
			if v, ok := modules[mod]; ok {
				return v, nil
			}
			return NewRef(mod), nil
		}
		if v, ok := modules[mod+"."+attr]; ok {
			return v, nil
		}
		if m, ok := modules[mod].(starlark.HasAttrs); ok {
			v, err := m.Attr(attr)
			if err == nil && v != nil {
				return v, nil
			}
		}
		return NewRef(mod + "." + attr), nil
	})
}
