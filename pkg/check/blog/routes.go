package blog

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

func init() {
	check.Register(check.RuleDef{
		ID:          "RT01",
		Name:        "app-urls",
		Group:       "routes",
		Task:        16,
		Description: "The blog app has a urls module defining urlpatterns",
		Hint:        "Create blog/urls.py with a urlpatterns list and include it from the project urls",
		Severity:    check.SeverityError,
		Check:       checkAppURLs,
	})
	check.Register(check.RuleDef{
		ID:          "RT02",
		Name:        "index-route",
		Group:       "routes",
		Task:        17,
		Description: "The path / is served by the index view",
		Hint:        "Add path('', views.index) to blog/urls.py",
		Severity:    check.SeverityError,
		Check:       route("/", ViewIndex),
	})
	check.Register(check.RuleDef{
		ID:          "RT03",
		Name:        "post-route",
		Group:       "routes",
		Task:        19,
		Description: "The path /post/ is served by the post view",
		Hint:        "Add path('post/', views.post) to blog/urls.py",
		Severity:    check.SeverityError,
		Check:       route("/post/", ViewPost),
	})
}

// URLPatterns matches a module-level urlpatterns assignment.
var URLPatterns = check.NewPattern("urlpatterns", `(?m)^urlpatterns\s*(:[^=]+)?=`)

func checkAppURLs(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
	rel := appName(c) + "/urls.py"
	return check.Collect("", check.CheckTemplate(c.Root, rel, []check.Pattern{URLPatterns}, nil)...), nil
}

func route(path, name string) check.Check {
	return func(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
		if errors.Is(c.ResolverErr, check.ErrSkipped) {
			return nil, c.ResolverErr
		}
		if c.ResolverErr != nil {
			return check.Collect("", check.Failf(check.KindRouteMismatch, path,
				"routes could not be loaded: %v", c.ResolverErr)), nil
		}
		if c.Resolver == nil {
			return nil, fmt.Errorf("%w: no routing table", check.ErrSkipped)
		}
		return check.Collect("", check.CheckRoute(c.Resolver, path, ExpectedRef(c, name))), nil
	}
}
