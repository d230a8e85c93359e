package django

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

// fileOptions enables the Python constructs settings and URL modules use
// at top level.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// ErrUnsupportedSyntax marks Python the evaluator cannot parse. The module
// may be valid Python, so checks depending on it are skipped, not failed.
var ErrUnsupportedSyntax = fmt.Errorf("%w: python construct not supported by the evaluator", check.ErrSkipped)

// EvalError is a failure to evaluate a Python module, positioned in the
// module's source.
type EvalError struct {
	File string
	Line int
	Msg  string
	Err  error

	// Unsupported is set for syntax the evaluator does not model.
	Unsupported bool
}

func (e *EvalError) Error() string {
	msg := e.Msg
	if e.Unsupported {
		msg += " (python construct not supported by the evaluator)"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
	}
	return fmt.Sprintf("%s: %s", e.File, msg)
}

func (e *EvalError) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Unsupported {
		errs = append(errs, ErrUnsupportedSyntax)
	}
	return errs
}

// moduleFile locates the source of a dotted module below root, accepting
// both module.py and module/__init__.py.
func moduleFile(root, dotted string) (string, error) {
	if dotted == "" {
		return "", errors.New("empty module name")
	}
	rel := filepath.Join(strings.Split(dotted, ".")...)
	candidates := []string{
		filepath.Join(root, rel+".py"),
		filepath.Join(root, rel, "__init__.py"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", fmt.Errorf("module %s not found (looked for %s)", dotted, filepath.ToSlash(filepath.Join(rel+".py")))
}

// packageOf returns the package a module file belongs to: "blog" for the
// module "blog.urls", "website.settings" for "website/settings/__init__.py".
func packageOf(dotted, file string) string {
	if filepath.Base(file) == "__init__.py" {
		return dotted
	}
	if i := strings.LastIndex(dotted, "."); i >= 0 {
		return dotted[:i]
	}
	return ""
}

// execModule reads file, rewrites its imports and executes it with the given
// predeclared names. display is the path used in errors.
func execModule(file, display, pkg string, predeclared starlark.StringDict) (starlark.StringDict, error) {
	content, err := os.ReadFile(file) //nolint:gosec // G304: module path is below the project root
	if err != nil {
		return nil, &EvalError{File: display, Msg: fmt.Sprintf("failed to read file: %v", err), Err: err}
	}

	src, err := rewriteSource(string(content), pkg)
	if err != nil {
		return nil, &EvalError{File: display, Msg: err.Error(), Err: err, Unsupported: errors.Is(err, errUnsupportedImport)}
	}

	thread := &starlark.Thread{
		Name: "exec:" + display,
		Print: func(_ *starlark.Thread, _ string) {
			// print() output of project modules is not shown
		},
	}
	thread.SetMaxExecutionSteps(maxSteps)

	globals, err := starlark.ExecFileOptions(fileOptions, thread, display, src, predeclared)
	if err != nil {
		e := evalError(display, err)
		var serr syntax.Error
		e.Unsupported = errors.As(err, &serr) && pythonOnly(sourceLine(src, e.Line))
		return nil, e
	}
	return globals, nil
}

// pythonOnlySyntax matches lines using Python the evaluator has no grammar
// for: class and with statements, decorators, identity tests, walrus
// assignments and f-strings left after rewriting.
var pythonOnlySyntax = regexp.MustCompile(
	`^\s*(@\w|(class|with|async|del|global|nonlocal|assert)\b)|\b(is|yield|await)\b|:=|(^|[^\w'"])([rR]?[fF]|[fF][rR])['"]`)

// pythonOnly reports whether a line that failed to parse is valid Python
// the evaluator does not model, as opposed to a genuine syntax error.
func pythonOnly(line string) bool {
	return pythonOnlySyntax.MatchString(stripComment(line))
}

func sourceLine(src string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.SplitN(src, "\n", n+1)
	if n > len(lines) {
		return ""
	}
	return lines[n-1]
}

// maxSteps bounds evaluation of a single module.
const maxSteps = 1_000_000

func evalError(display string, err error) *EvalError {
	var serr syntax.Error
	if errors.As(err, &serr) {
		return &EvalError{File: display, Line: int(serr.Pos.Line), Msg: serr.Msg, Err: err}
	}
	var rerrs resolve.ErrorList
	if errors.As(err, &rerrs) && len(rerrs) > 0 {
		return &EvalError{File: display, Line: int(rerrs[0].Pos.Line), Msg: rerrs[0].Msg, Err: err}
	}
	var eerr *starlark.EvalError
	if errors.As(err, &eerr) {
		line := 0
		for i := 0; i < len(eerr.CallStack); i++ {
			if fr := eerr.CallStack.At(i); fr.Pos.Filename() == display {
				line = int(fr.Pos.Line)
				break
			}
		}
		return &EvalError{File: display, Line: line, Msg: eerr.Msg, Err: err}
	}
	return &EvalError{File: display, Msg: err.Error(), Err: err}
}
