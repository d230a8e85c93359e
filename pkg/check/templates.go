package check

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Pattern is a named regular expression matched against a whole document.
type Pattern struct {
	Name string // what the pattern stands for, used in messages
	Re   *regexp.Regexp
}

// unicodeSpace is what \s matches in Python's re for str patterns.
const unicodeSpace = `[\s\v\x{1c}-\x{1f}\x{85}\p{Z}]`

// NewPattern compiles expr into a Pattern. It panics if expr is invalid.
// \s outside a character class matches any Unicode whitespace, not only
// ASCII.
func NewPattern(name, expr string) Pattern {
	return Pattern{Name: name, Re: regexp.MustCompile(widenSpace(expr))}
}

func widenSpace(expr string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '\\' && i+1 < len(expr):
			if expr[i+1] == 's' && !inClass {
				b.WriteString(unicodeSpace)
			} else {
				b.WriteString(expr[i : i+2])
			}
			i++
			continue
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Template text patterns. Whitespace inside tags is matched with \s+ so that
// formatting differences do not matter; matching is case-sensitive.
var (
	StaticLoad        = NewPattern("{% load static %}", `\{%\s+load\s+static\s+%\}`)
	ContentBlock      = NewPattern("{% block content %}{% endblock %}", `\{%\s+block\s+content\s+%\}\{%\s+endblock\s+%\}`)
	ContentBlockStart = NewPattern("{% block content %}", `\{%\s+block\s+content\s+%\}`)
	LegacyColumnMD    = NewPattern(`<div class="col-md-8">`, `<div\s+class="col-md-8"\s*>`)
	LegacyColumnLG    = NewPattern(`<div class="col-lg-8">`, `<div\s+class="col-lg-8"\s*>`)
)

// Rendered page patterns.
var (
	IndexHeading = NewPattern("Page Heading <small>Secondary Text</small>",
		`<h1\s+class\s*=\s*"my-4">\s*Page\s+Heading\s+<small>\s*Secondary\s+Text\s*</small>\s*</h1>`)
	PostHeading = NewPattern("Post Title", `<h1 class="mt-4">Post Title</h1>`)
)

// CheckText matches text against required patterns (each must match) and
// forbidden patterns (none may match). It returns one result per pattern.
// subject names the document in messages.
func CheckText(subject, text string, required, forbidden []Pattern) []Result {
	results := make([]Result, 0, len(required)+len(forbidden))
	for _, p := range required {
		if p.Re.MatchString(text) {
			results = append(results, Pass(subject, subject+" contains "+p.Name))
			continue
		}
		results = append(results, Failf(KindPatternMismatch, subject, "%s must contain %s", subject, p.Name))
	}
	for _, p := range forbidden {
		loc := p.Re.FindStringIndex(text)
		if loc == nil {
			results = append(results, Pass(subject, subject+" does not contain "+p.Name))
			continue
		}
		r := Failf(KindPatternMismatch, subject, "%s must not contain %s", subject, p.Name)
		r.Line = lineAt(text, loc[0])
		results = append(results, r)
	}
	return results
}

// CheckTemplate reads root/rel and applies CheckText to its content. The file
// is read on every call.
func CheckTemplate(root, rel string, required, forbidden []Pattern) []Result {
	subject := filepath.ToSlash(rel)
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel))) //nolint:gosec // G304: path is below the project root
	if err != nil {
		if os.IsNotExist(err) {
			return []Result{Failf(KindMissingPath, subject, "%s does not exist", subject)}
		}
		return []Result{Failf(KindMissingPath, subject, "cannot read %s: %v", subject, err)}
	}
	return CheckText(subject, string(content), required, forbidden)
}

// lineAt returns the 1-based line number of byte offset off in text.
func lineAt(text string, off int) int {
	return strings.Count(text[:off], "\n") + 1
}
