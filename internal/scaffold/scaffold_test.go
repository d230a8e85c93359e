package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)

	for _, want := range []string{
		"website/manage.py",
		"website/.gitignore",
		"website/website/settings.py",
		"website/blog/urls.py",
		"website/templates/layout.html",
		"website/templates/blog/index.html",
		"website/static/blog/assets/favicon.ico",
	} {
		assert.Contains(t, files, want)
	}
	assert.NotContains(t, files, "website/gitignore")
	assert.IsIncreasing(t, files)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	written, err := Write(dir, false)
	require.NoError(t, err)

	files, err := Files()
	require.NoError(t, err)
	assert.ElementsMatch(t, files, written)

	assert.FileExists(t, filepath.Join(dir, "website", "website", "__init__.py"))
	assert.DirExists(t, filepath.Join(dir, "website", "static", "blog", "images"))
}

func TestWrite_KeepsExistingFilesUnlessForced(t *testing.T) {
	dir := t.TempDir()
	views := filepath.Join(dir, "website", "blog", "views.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(views), 0750))
	require.NoError(t, os.WriteFile(views, []byte("# mine\n"), 0600))

	written, err := Write(dir, false)
	require.NoError(t, err)
	assert.NotContains(t, written, "website/blog/views.py")
	got, _ := os.ReadFile(views)
	assert.Equal(t, "# mine\n", string(got))

	written, err = Write(dir, true)
	require.NoError(t, err)
	assert.Contains(t, written, "website/blog/views.py")
	got, _ = os.ReadFile(views)
	assert.Contains(t, string(got), "def index(request):")
}

func TestGroup(t *testing.T) {
	groups := Group([]string{
		"website/manage.py",
		"website/website/settings.py",
		"website/blog/views.py",
		"website/templates/layout.html",
		"website/static/blog/css/styles.css",
	})

	assert.Equal(t, []string{"website/manage.py", "website/website/settings.py"}, groups["project"])
	assert.Equal(t, []string{"website/blog/views.py"}, groups["app"])
	assert.Equal(t, []string{"website/templates/layout.html"}, groups["templates"])
	assert.Equal(t, []string{"website/static/blog/css/styles.css"}, groups["static"])
}
