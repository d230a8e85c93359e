package django

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

// Reverser maps a handler reference to the request path that reaches it.
type Reverser interface {
	Reverse(ref check.HandlerRef) (string, error)
}

// LiveViews is a check.HandlerSource backed by a running development
// server. Views are located by reversing the URL configuration and reached
// through a reverse proxy.
type LiveViews struct {
	routes  Reverser
	proxy   *httputil.ReverseProxy
	timeout time.Duration
}

var _ check.HandlerSource = (*LiveViews)(nil)

// NewLiveViews creates a handler source proxying to baseURL. timeout bounds
// each proxied request; zero means no limit.
func NewLiveViews(baseURL string, routes Reverser, timeout time.Duration, logger *slog.Logger) (*LiveViews, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base_url %q: scheme must be http or https", baseURL)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(base)
			r.Out.Host = base.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Debug("proxy request failed", "url", r.URL.String(), "error", err)
			http.Error(w, "development server unreachable: "+err.Error(), http.StatusBadGateway)
		},
	}

	return &LiveViews{routes: routes, proxy: proxy, timeout: timeout}, nil
}

// Handler implements check.HandlerSource.
func (v *LiveViews) Handler(ref check.HandlerRef) (http.Handler, string, error) {
	if v.routes == nil {
		return nil, "", fmt.Errorf("%w: no URL configuration to locate %s", check.ErrNoRoute, ref)
	}
	target, err := v.routes.Reverse(ref)
	if err != nil {
		return nil, "", err
	}
	return v, target, nil
}

// ServeHTTP proxies r to the development server.
func (v *LiveViews) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if v.timeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), v.timeout)
		defer cancel()
		r = r.WithContext(ctx)
	}
	v.proxy.ServeHTTP(w, r)
}
