package django

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Statement rewrites for Python the evaluator has no syntax for. try blocks
// always run their body and never their handlers, which is what happens
// when nothing raises.
var (
	tryLine     = regexp.MustCompile(`^(\s*)try\s*:(.*)$`)
	exceptLine  = regexp.MustCompile(`^(\s*)except\b[^:]*:(.*)$`)
	finallyLine = regexp.MustCompile(`^(\s*)finally\s*:(.*)$`)
	raiseLine   = regexp.MustCompile(`^(\s*)raise\b(.*)$`)
)

// rewriteSource prepares a Python module for evaluation: compatibility
// rewrites first, then imports. Line numbers are preserved.
func rewriteSource(src, pkg string) (string, error) {
	return rewriteImports(rewriteCompat(src), pkg)
}

// rewriteCompat rewrites try/except/finally, raise and single-line
// f-strings into Starlark equivalents.
func rewriteCompat(src string) string {
	lines := strings.Split(src, "\n")
	inString := ""
	for i, line := range lines {
		if inString != "" || strings.Contains(line, `"""`) || strings.Contains(line, `'''`) {
			inString = tripleQuoteState(line, inString)
			continue
		}
		switch {
		case tryLine.MatchString(line):
			line = tryLine.ReplaceAllString(line, "${1}if True:${2}")
		case exceptLine.MatchString(line):
			line = exceptLine.ReplaceAllString(line, "${1}if False:${2}")
		case finallyLine.MatchString(line):
			line = finallyLine.ReplaceAllString(line, "${1}if True:${2}")
		case raiseLine.MatchString(line):
			m := raiseLine.FindStringSubmatch(line)
			line = m[1] + "fail(" + strconv.Quote(strings.TrimSpace("raise "+stripComment(m[2]))) + ")"
		}
		if converted, err := rewriteFStrings(line); err == nil {
			line = converted
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

var errUnterminated = errors.New("unterminated string")

// rewriteFStrings turns f'...{expr}...' literals on one line into
// ('...%s...' % (expr,)). Format specs fall back to %s unless they are a
// plain printf conversion such as .2f.
func rewriteFStrings(line string) (string, error) {
	if !strings.ContainsAny(line, "fF") {
		return line, nil
	}
	var out strings.Builder
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case c == '#':
			out.WriteString(line[i:])
			return out.String(), nil
		case c == '\'' || c == '"':
			end, err := skipString(line, i)
			if err != nil {
				return "", err
			}
			out.WriteString(line[i:end])
			i = end
		case isIdentStart(c) && (i == 0 || !isIdentByte(line[i-1])):
			j := i
			for j < len(line) && isIdentByte(line[j]) {
				j++
			}
			prefix := line[i:j]
			if j < len(line) && (line[j] == '\'' || line[j] == '"') && isFPrefix(prefix) {
				lit, end, err := convertFString(line, j, strings.ContainsAny(prefix, "rR"))
				if err != nil {
					return "", err
				}
				out.WriteString(lit)
				i = end
				continue
			}
			out.WriteString(prefix)
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), nil
}

// convertFString converts the f-string whose quote is at line[q]. It
// returns the replacement and the index after the closing quote.
func convertFString(line string, q int, raw bool) (string, int, error) {
	quote := line[q]
	if strings.HasPrefix(line[q:], strings.Repeat(string(quote), 3)) {
		return "", 0, errors.New("triple-quoted f-string")
	}
	var (
		lit   strings.Builder
		exprs []string
	)
	for i := q + 1; i < len(line); {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			lit.WriteString(line[i : i+2])
			i += 2
		case c == quote:
			prefix := ""
			if raw {
				prefix = "r"
			}
			s := prefix + string(quote) + lit.String() + string(quote)
			if len(exprs) == 0 {
				return s, i + 1, nil
			}
			return "(" + s + " % (" + strings.Join(exprs, ", ") + ",))", i + 1, nil
		case c == '{' && i+1 < len(line) && line[i+1] == '{':
			lit.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(line) && line[i+1] == '}':
			lit.WriteByte('}')
			i += 2
		case c == '{':
			end, err := exprEnd(line, i+1)
			if err != nil {
				return "", 0, err
			}
			expr, verb := splitReplacement(line[i+1 : end])
			exprs = append(exprs, expr)
			lit.WriteString(verb)
			i = end + 1
		case c == '%':
			lit.WriteString("%%")
			i++
		default:
			lit.WriteByte(c)
			i++
		}
	}
	return "", 0, errUnterminated
}

// exprEnd returns the index of the } closing a replacement field that
// starts at i.
func exprEnd(line string, i int) (int, error) {
	depth := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == '\'' || c == '"':
			end, err := skipString(line, i)
			if err != nil {
				return 0, err
			}
			i = end
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == '}':
			if depth == 0 {
				return i, nil
			}
			depth--
		}
		i++
	}
	return 0, errors.New("unterminated replacement field")
}

var printfSpec = regexp.MustCompile(`^[0-9]*(\.[0-9]+)?[dfeEgGxXos]$`)

// splitReplacement splits "expr!r:spec" into the expression and the %
// verb that formats it.
func splitReplacement(field string) (string, string) {
	expr, spec := field, ""
	depth := 0
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ':':
			if depth == 0 {
				expr, spec = field[:i], field[i+1:]
				i = len(field)
			}
		}
	}
	verb := "%s"
	if e, conv, ok := strings.Cut(expr, "!"); ok && len(conv) == 1 && !strings.HasPrefix(conv, "=") {
		expr = e
		if conv == "r" || conv == "a" {
			verb = "%r"
		}
	}
	if printfSpec.MatchString(spec) {
		verb = "%" + spec
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(expr), "=")), verb
}

// skipString returns the index after the string literal starting at i.
func skipString(line string, i int) (int, error) {
	quote := line[i]
	for j := i + 1; j < len(line); j++ {
		switch line[j] {
		case '\\':
			j++
		case quote:
			return j + 1, nil
		}
	}
	return 0, errUnterminated
}

func isFPrefix(p string) bool {
	switch strings.ToLower(p) {
	case "f", "rf", "fr":
		return true
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
