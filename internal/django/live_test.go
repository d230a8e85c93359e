package django

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/blogcheck/internal/testutil"
	"github.com/leapstack-labs/blogcheck/pkg/check"
)

type staticRoutes map[string]string

func (s staticRoutes) Reverse(ref check.HandlerRef) (string, error) {
	if p, ok := s[ref.Name]; ok {
		return p, nil
	}
	return "", check.ErrNoRoute
}

func devServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1 class="my-4">Page Heading
  <small>Secondary Text</small></h1></body></html>`))
	})
	mux.HandleFunc("/post/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<h1 class="mt-4">Wrong Title</h1>`))
	})
	mux.HandleFunc("/slow/", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLiveViews_Handler(t *testing.T) {
	srv := devServer(t)
	routes := staticRoutes{"blog.views.index": "/", "blog.views.post": "/post/"}

	views, err := NewLiveViews(srv.URL, routes, 5*time.Second, testutil.NewTestLogger(t))
	require.NoError(t, err)

	h, target, err := views.Handler(check.NamedRef("blog.views.index"))
	require.NoError(t, err)
	assert.Equal(t, "/", target)

	r := check.CheckView(context.Background(), "blog.views.index", h, target, check.IndexHeading)
	assert.True(t, r.Passed, r.Message)

	h, target, err = views.Handler(check.NamedRef("blog.views.post"))
	require.NoError(t, err)
	r = check.CheckView(context.Background(), "blog.views.post", h, target, check.PostHeading)
	assert.False(t, r.Passed)
	assert.Equal(t, check.KindHandlerOutputMismatch, r.Kind)
	assert.Contains(t, r.Message, `first heading reads "Wrong Title"`)
}

func TestLiveViews_NotRouted(t *testing.T) {
	views, err := NewLiveViews("http://127.0.0.1:8000", staticRoutes{}, time.Second, nil)
	require.NoError(t, err)

	_, _, err = views.Handler(check.NamedRef("blog.views.index"))
	assert.ErrorIs(t, err, check.ErrNoRoute)

	views, err = NewLiveViews("http://127.0.0.1:8000", nil, time.Second, nil)
	require.NoError(t, err)
	_, _, err = views.Handler(check.NamedRef("blog.views.index"))
	assert.ErrorIs(t, err, check.ErrNoRoute)
}

func TestLiveViews_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	views, err := NewLiveViews(url, staticRoutes{"v": "/"}, time.Second, nil)
	require.NoError(t, err)

	h, target, err := views.Handler(check.NamedRef("v"))
	require.NoError(t, err)

	resp := check.InvokeView(context.Background(), h, target)
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Contains(t, resp.Body, "development server unreachable")
}

func TestLiveViews_Timeout(t *testing.T) {
	srv := devServer(t)
	views, err := NewLiveViews(srv.URL, staticRoutes{"slow": "/slow/"}, 50*time.Millisecond, nil)
	require.NoError(t, err)

	h, target, err := views.Handler(check.NamedRef("slow"))
	require.NoError(t, err)

	resp := check.InvokeView(context.Background(), h, target)
	assert.Equal(t, http.StatusBadGateway, resp.Status)
}

func TestNewLiveViews_InvalidURL(t *testing.T) {
	_, err := NewLiveViews("localhost:8000", nil, time.Second, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme must be http or https")
}
