package check

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// HandlerSource supplies invocable handlers for view checks.
type HandlerSource interface {
	// Handler returns a handler for ref and the request path that reaches it.
	Handler(ref HandlerRef) (http.Handler, string, error)
}

// ViewResponse is the captured response of a synthetic request.
type ViewResponse struct {
	Status int
	Body   string
}

// InvokeView calls h synchronously with a synthetic GET request for target
// and returns the decoded response. Invalid UTF-8 in the body is replaced.
func InvokeView(ctx context.Context, h http.Handler, target string) *ViewResponse {
	if target == "" {
		target = "/"
	}
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !utf8.ValidString(body) {
		body = strings.ToValidUTF8(body, "�")
	}
	return &ViewResponse{Status: rec.Code, Body: body}
}

// CheckView invokes h and passes if the body matches p. name identifies the
// handler in messages.
func CheckView(ctx context.Context, name string, h http.Handler, target string, p Pattern) Result {
	resp := InvokeView(ctx, h, target)
	if resp.Status < 200 || resp.Status > 299 {
		msg := fmt.Sprintf("%s responded with status %d", name, resp.Status)
		if line, _, _ := strings.Cut(strings.TrimSpace(resp.Body), "\n"); resp.Status >= 500 && line != "" {
			msg += ": " + truncate(line, 200)
		}
		return Fail(KindHandlerOutputMismatch, name, msg)
	}
	if p.Re.MatchString(resp.Body) {
		return Pass(name, fmt.Sprintf("%s renders %s", name, p.Name))
	}
	msg := fmt.Sprintf("%s does not render %s", name, p.Name)
	if found := firstHeading(resp.Body); found != "" {
		msg += fmt.Sprintf(" (first heading reads %q)", found)
	} else {
		msg += " (no <h1> in response)"
	}
	return Fail(KindHandlerOutputMismatch, name, msg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}

// firstHeading returns the tag-stripped, whitespace-collapsed text of the
// first <h1> element in doc.
func firstHeading(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	depth := 0
	var text strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF && depth > 0 {
				return strings.Join(strings.Fields(text.String()), " ")
			}
			return ""
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "h1" {
				depth++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "h1" && depth > 0 {
				depth--
				if depth == 0 {
					return strings.Join(strings.Fields(text.String()), " ")
				}
			}
		case html.TextToken:
			if depth > 0 {
				text.WriteString(" ")
				text.Write(z.Text())
			}
		}
	}
}
