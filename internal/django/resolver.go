package django

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

// converters maps path() converter names to their regular expressions.
var converters = map[string]string{
	"int":  `[0-9]+`,
	"str":  `[^/]+`,
	"slug": `[-a-zA-Z0-9_]+`,
	"uuid": `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`,
	"path": `.+`,
}

var converterRe = regexp.MustCompile(`<(?:(?P<conv>[^>:]+):)?(?P<param>[^>]+)>`)

// compileRoute converts a path() route, or a re_path() regex, to a regular
// expression anchored at the start. Endpoint routes are anchored at the end
// too. converted reports whether the route is not a plain literal.
func compileRoute(route string, regex, endpoint bool) (*regexp.Regexp, bool, error) {
	if regex {
		expr := strings.ReplaceAll(route, `\Z`, `\z`)
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, false, fmt.Errorf("invalid regex %q: %w", route, err)
		}
		_, literal := literalRegex(route)
		return re, !literal, nil
	}

	var b strings.Builder
	b.WriteString("^")
	rest := route
	converted := false
	for {
		loc := converterRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		converted = true
		b.WriteString(regexp.QuoteMeta(rest[:loc[0]]))
		conv, param := "str", rest[loc[4]:loc[5]]
		if loc[2] >= 0 {
			conv = rest[loc[2]:loc[3]]
		}
		if strings.ContainsAny(param, " \t") || strings.ContainsAny(conv, " \t") {
			return nil, false, fmt.Errorf("URL route %q cannot contain whitespace in angle brackets <...>", route)
		}
		expr, ok := converters[conv]
		if !ok {
			return nil, false, fmt.Errorf("URL route %q uses invalid converter %q", route, conv)
		}
		fmt.Fprintf(&b, "(?P<%s>%s)", param, expr)
		rest = rest[loc[1]:]
	}
	if endpoint {
		b.WriteString(`\z`)
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, false, fmt.Errorf("URL route %q: %w", route, err)
	}
	return re, converted, nil
}

// literalRegex returns the fixed path a re_path() regex matches, if any.
func literalRegex(expr string) (string, bool) {
	s := strings.TrimPrefix(expr, "^")
	s = strings.TrimSuffix(strings.TrimSuffix(s, `\Z`), "$")
	if regexp.QuoteMeta(s) != s {
		return "", false
	}
	return s, true
}

// literal returns the fixed path segment p contributes, if p has no
// converters.
func (p *URLPattern) literal() (string, bool) {
	if p.converted {
		return "", false
	}
	if p.Regex {
		return literalRegex(p.Route)
	}
	return p.Route, true
}

// match matches path against p. For includes it returns the unconsumed
// remainder.
func (p *URLPattern) match(path string) (string, bool) {
	if p.Include == nil && p.Regex && strings.HasSuffix(p.Route, "$") {
		if loc := p.re.FindStringIndex(path); loc != nil && loc[0] == 0 && loc[1] == len(path) {
			return "", true
		}
		return "", false
	}
	loc := p.re.FindStringIndex(path)
	if loc == nil {
		return "", false
	}
	return path[loc[1]:], true
}

// Resolve implements check.Resolver: the leading slash is stripped and
// patterns are tried in order, descending into includes; the first match
// wins.
func (c *URLConf) Resolve(path string) (check.HandlerRef, error) {
	if ref, ok := c.resolve(strings.TrimPrefix(path, "/")); ok {
		return ref, nil
	}
	return check.HandlerRef{}, fmt.Errorf("%w: %s", check.ErrNoRoute, path)
}

func (c *URLConf) resolve(path string) (check.HandlerRef, bool) {
	for _, p := range c.Patterns {
		rest, ok := p.match(path)
		if !ok {
			continue
		}
		if p.Include == nil {
			return p.View, true
		}
		if ref, ok := p.Include.resolve(rest); ok {
			return ref, true
		}
	}
	return check.HandlerRef{}, false
}

// Reverse returns the path of the first converter-free route whose view is
// ref.
func (c *URLConf) Reverse(ref check.HandlerRef) (string, error) {
	if path, ok := c.reverse(ref, ""); ok {
		return "/" + path, nil
	}
	return "", fmt.Errorf("%w: %s is not routed", check.ErrNoRoute, ref)
}

func (c *URLConf) reverse(ref check.HandlerRef, prefix string) (string, bool) {
	for _, p := range c.Patterns {
		lit, ok := p.literal()
		if !ok {
			continue
		}
		if p.Include != nil {
			if path, ok := p.Include.reverse(ref, prefix+lit); ok {
				return path, true
			}
			continue
		}
		if p.View.Same(ref) {
			return prefix + lit, true
		}
	}
	return "", false
}

// ReverseName returns the path of the first converter-free route named
// name, as {% url %} does. A "namespace:" prefix is ignored.
func (c *URLConf) ReverseName(name string) (string, error) {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	if path, ok := c.reverseName(name, ""); ok {
		return "/" + path, nil
	}
	return "", fmt.Errorf("%w: no route named %q", check.ErrNoRoute, name)
}

func (c *URLConf) reverseName(name, prefix string) (string, bool) {
	for _, p := range c.Patterns {
		lit, ok := p.literal()
		if !ok {
			continue
		}
		if p.Include != nil {
			if path, ok := p.Include.reverseName(name, prefix+lit); ok {
				return path, true
			}
			continue
		}
		if p.Name == name {
			return prefix + lit, true
		}
	}
	return "", false
}

// Entry is a flattened route of a URL configuration.
type Entry struct {
	Route  string // full route, prefixes of includes joined
	Name   string
	View   check.HandlerRef
	Module string
	Line   int
}

// Entries returns every endpoint route in resolution order.
func (c *URLConf) Entries() []Entry {
	var out []Entry
	c.entries("", &out)
	return out
}

func (c *URLConf) entries(prefix string, out *[]Entry) {
	for _, p := range c.Patterns {
		route := prefix + p.Route
		if p.Include != nil {
			p.Include.entries(route, out)
			continue
		}
		*out = append(*out, Entry{Route: "/" + route, Name: p.Name, View: p.View, Module: c.Module, Line: p.Line})
	}
}
