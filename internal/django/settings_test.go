package django

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

func TestSettingsLoader_Load(t *testing.T) {
	root := writeProject(t, nil)

	snap, err := NewSettingsLoader(root).Load("website.settings")
	require.NoError(t, err)

	assert.Equal(t, root, snap["BASE_DIR"])
	assert.Equal(t, true, snap["DEBUG"])
	assert.Equal(t, "website.urls", snap["ROOT_URLCONF"])
	assert.NotContains(t, snap, "Path", "imported names are not settings")
	assert.NotContains(t, snap, "os")

	dirs, ok := snap.Lookup("TEMPLATES.0.DIRS")
	require.True(t, ok)
	assert.Equal(t, []any{filepath.Join(root, "templates")}, dirs)

	name, ok := snap.String("DATABASES.default.NAME")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "db.sqlite3"), name)

	assert.True(t, snap.Contains("INSTALLED_APPS", "blog", "blog.apps.BlogConfig").Passed)
	assert.True(t, snap.ContainsPath("STATICFILES_DIRS", root, filepath.Join(root, "static")).Passed)
}

func TestSettingsLoader_OSPathStyle(t *testing.T) {
	root := writeProject(t, map[string]string{
		"website/settings.py": `import os
BASE_DIR = os.path.dirname(os.path.dirname(os.path.abspath(__file__)))
INSTALLED_APPS = ['blog']
TEMPLATES = [{'DIRS': [os.path.join(BASE_DIR, 'templates')]}]
STATICFILES_DIRS = (
    os.path.join(BASE_DIR, "static"),
)
SECRET_KEY = os.environ.get('SECRET_KEY', 'fallback')
DEBUG = os.getenv('DEBUG', 'no') == 'yes'
`,
	})

	snap, err := NewSettingsLoader(root).WithEnviron(map[string]string{"DEBUG": "yes"}).Load("website.settings")
	require.NoError(t, err)

	assert.Equal(t, root, snap["BASE_DIR"])
	assert.Equal(t, "fallback", snap["SECRET_KEY"])
	assert.Equal(t, true, snap["DEBUG"])
	assert.True(t, snap.ContainsPath("TEMPLATES.0.DIRS", root, filepath.Join(root, "templates")).Passed)
	assert.True(t, snap.ContainsPath("STATICFILES_DIRS", root, filepath.Join(root, "static")).Passed)
}

func TestSettingsLoader_PackageSettings(t *testing.T) {
	root := writeProject(t, map[string]string{
		"website/settings/__init__.py": "from .base import *\nINSTALLED_APPS = ['blog']\n",
	})
	require.NoError(t, os.Remove(filepath.Join(root, "website", "settings.py")))

	snap, err := NewSettingsLoader(root).Load("website.settings")
	require.NoError(t, err)
	assert.Equal(t, []any{"blog"}, snap["INSTALLED_APPS"])
}

func TestSettingsLoader_Errors(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "syntax error",
			settings: "DEBUG = True\nINSTALLED_APPS = ['blog'\nX = 1\n",
			wantLine: 3,
		},
		{
			name:     "undefined name",
			settings: "DEBUG = True\nTEMPLATES = [BASE_DIR]\n",
			wantLine: 2,
			wantMsg:  "undefined: BASE_DIR",
		},
		{
			name:     "runtime error",
			settings: "X = 1\nY = X + 'a'\n",
			wantLine: 2,
			wantMsg:  "unknown binary op",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, map[string]string{"website/settings.py": tt.settings})

			_, err := NewSettingsLoader(root).Load("website.settings")
			require.Error(t, err)

			var evalErr *EvalError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, "website/settings.py", evalErr.File)
			assert.Equal(t, tt.wantLine, evalErr.Line)
			if tt.wantMsg != "" {
				assert.Contains(t, evalErr.Msg, tt.wantMsg)
			}
		})
	}
}

func TestSettingsLoader_MissingModule(t *testing.T) {
	root := writeProject(t, nil)

	_, err := NewSettingsLoader(root).Load("mysite.settings")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module mysite.settings not found")
}

func TestDecode(t *testing.T) {
	root := writeProject(t, nil)
	snap, err := NewSettingsLoader(root).Load("website.settings")
	require.NoError(t, err)

	s, err := Decode(snap)
	require.NoError(t, err)

	assert.Equal(t, root, s.BaseDir)
	assert.Equal(t, "website.urls", s.RootURLConf)
	assert.Equal(t, "static/", s.StaticURL)
	require.Len(t, s.Templates, 1)
	assert.True(t, s.Templates[0].AppDirs)
	assert.Equal(t, []string{filepath.Join(root, "templates")}, s.Templates[0].Dirs)
	assert.Contains(t, s.InstalledApps, "blog.apps.BlogConfig")
}

func TestDecode_Empty(t *testing.T) {
	s, err := Decode(check.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, s.RootURLConf)
}

func TestDiscoverSettingsModule(t *testing.T) {
	root := writeProject(t, nil)

	mod, ok := DiscoverSettingsModule(root)
	require.True(t, ok)
	assert.Equal(t, "website.settings", mod)

	_, ok = DiscoverSettingsModule(t.TempDir())
	assert.False(t, ok)
}
