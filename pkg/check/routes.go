package check

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ErrNoRoute is returned by resolvers when no route matches a path.
var ErrNoRoute = errors.New("no route matches")

// HandlerRef identifies a handler. Two references are the same handler when
// their function identity matches; references without a function compare
// by qualified name.
type HandlerRef struct {
	Name string
	ptr  uintptr
}

// NamedRef references a handler by its qualified name, e.g. "blog.views.index".
func NamedRef(name string) HandlerRef {
	return HandlerRef{Name: name}
}

// FuncRef references the function fn. name is used for display only.
func FuncRef(name string, fn any) HandlerRef {
	v := reflect.ValueOf(fn)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer:
		if !v.IsNil() {
			return HandlerRef{Name: name, ptr: v.Pointer()}
		}
	}
	return HandlerRef{Name: name}
}

// Same reports whether r and o reference the same handler.
func (r HandlerRef) Same(o HandlerRef) bool {
	if r.ptr != 0 || o.ptr != 0 {
		return r.ptr == o.ptr
	}
	return r.Name != "" && r.Name == o.Name
}

// IsZero reports whether r references nothing.
func (r HandlerRef) IsZero() bool {
	return r.Name == "" && r.ptr == 0
}

func (r HandlerRef) String() string {
	if r.Name == "" {
		return "<anonymous>"
	}
	return r.Name
}

// MarshalText encodes the reference by name.
func (r HandlerRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Resolver maps a URL path to the handler serving it.
type Resolver interface {
	Resolve(path string) (HandlerRef, error)
}

// CheckRoute resolves path and passes if it yields a handler identical to want.
func CheckRoute(res Resolver, path string, want HandlerRef) Result {
	if res == nil {
		return Failf(KindRouteMismatch, path, "no routing table to resolve %s", path)
	}
	got, err := res.Resolve(path)
	if err != nil {
		return Failf(KindRouteMismatch, path, "%s does not resolve: %v", path, err)
	}
	if !got.Same(want) {
		return Failf(KindRouteMismatch, path, "%s resolves to %s, want %s", path, got, want)
	}
	return Pass(path, fmt.Sprintf("%s resolves to %s", path, want))
}

// Route is one entry of a routing table.
type Route struct {
	Pattern string
	Handler HandlerRef
}

// RouteTable is a routing table of Go handlers backed by a chi router. It
// implements Resolver and HandlerSource, and serves HTTP itself.
type RouteTable struct {
	mux      *chi.Mux
	routes   []Route
	handlers map[string]http.Handler // pattern -> handler
}

// NewRouteTable creates an empty route table.
func NewRouteTable() *RouteTable {
	return &RouteTable{
		mux:      chi.NewRouter(),
		handlers: make(map[string]http.Handler),
	}
}

// Handle registers h under pattern, identified by ref.
func (t *RouteTable) Handle(pattern string, ref HandlerRef, h http.Handler) {
	t.mux.Handle(pattern, h)
	t.routes = append(t.routes, Route{Pattern: pattern, Handler: ref})
	t.handlers[pattern] = h
}

// HandleFunc registers fn under pattern, identified by function identity.
func (t *RouteTable) HandleFunc(pattern, name string, fn http.HandlerFunc) {
	t.Handle(pattern, FuncRef(name, fn), fn)
}

// Routes returns the registered routes in registration order.
func (t *RouteTable) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Resolve implements Resolver.
func (t *RouteTable) Resolve(path string) (HandlerRef, error) {
	rctx := chi.NewRouteContext()
	if !t.mux.Match(rctx, http.MethodGet, path) || len(rctx.RoutePatterns) == 0 {
		return HandlerRef{}, fmt.Errorf("%w: %s", ErrNoRoute, path)
	}
	pattern := rctx.RoutePatterns[len(rctx.RoutePatterns)-1]
	for _, r := range t.routes {
		if r.Pattern == pattern {
			return r.Handler, nil
		}
	}
	return HandlerRef{}, fmt.Errorf("%w: %s", ErrNoRoute, path)
}

// Handler implements HandlerSource. The request path is the first
// parameter-free pattern registered for ref.
func (t *RouteTable) Handler(ref HandlerRef) (http.Handler, string, error) {
	for _, r := range t.routes {
		if r.Handler.Same(ref) && !strings.ContainsAny(r.Pattern, "{*") {
			return t.handlers[r.Pattern], r.Pattern, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s is not routed", ErrNoRoute, ref)
}

// ServeHTTP dispatches to the registered handlers.
func (t *RouteTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.mux.ServeHTTP(w, r)
}
