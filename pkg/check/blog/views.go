package blog

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

func init() {
	check.Register(check.RuleDef{
		ID:          "VW01",
		Name:        "index-view",
		Group:       "views",
		Task:        15,
		Description: "The index view renders blog/index.html",
		Hint:        "Define index(request) in blog/views.py returning render(request, 'blog/index.html')",
		Severity:    check.SeverityError,
		Check:       view(ViewIndex, check.IndexHeading),
	})
	check.Register(check.RuleDef{
		ID:          "VW02",
		Name:        "post-view",
		Group:       "views",
		Task:        18,
		Description: "The post view renders blog/post.html",
		Hint:        "Define post(request) in blog/views.py returning render(request, 'blog/post.html')",
		Severity:    check.SeverityError,
		Check:       view(ViewPost, check.PostHeading),
	})
}

// Logical view names.
const (
	ViewIndex = "index"
	ViewPost  = "post"
)

// ExpectedRef returns the handler reference the view name must resolve to,
// defaulting to "<app>.views.<name>".
func ExpectedRef(c *check.Context, name string) check.HandlerRef {
	if ref, ok := c.Expected[name]; ok && !ref.IsZero() {
		return ref
	}
	return check.NamedRef(appName(c) + ".views." + name)
}

func view(name string, p check.Pattern) check.Check {
	return func(ctx context.Context, c *check.Context) ([]check.Diagnostic, error) {
		if c.Handlers == nil {
			return nil, fmt.Errorf("%w: no handler source configured", check.ErrSkipped)
		}
		ref := ExpectedRef(c, name)
		h, target, err := c.Handlers.Handler(ref)
		switch {
		case errors.Is(err, check.ErrSkipped):
			return nil, err
		case errors.Is(err, check.ErrNoRoute):
			return nil, fmt.Errorf("%w: %v", check.ErrSkipped, err)
		}
		if err != nil {
			return check.Collect("", check.Failf(check.KindHandlerOutputMismatch, ref.String(),
				"view %s cannot be invoked: %v", ref, err)), nil
		}
		return check.Collect("", check.CheckView(ctx, ref.String(), h, target, p)), nil
	}
}
