package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/blogcheck/internal/cli/config"
	"github.com/leapstack-labs/blogcheck/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func readInitFile(t *testing.T, dir string) initFile {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(dir, configFileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "# blogcheck configuration")

	var f initFile
	require.NoError(t, yaml.Unmarshal(content, &f))
	return f
}

func TestInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   string
		wantName  string
		wantFiles []string
	}{
		{
			name:      "init empty directory",
			wantName:  config.DefaultProjectName,
			wantFiles: []string{configFileName},
		},
		{
			name: "init existing config without force",
			setupDir: func(t *testing.T, dir string) {
				testutil.WriteFile(t, dir, configFileName, "existing")
			},
			wantErr: "already exists",
		},
		{
			name: "init existing config with force",
			setupDir: func(t *testing.T, dir string) {
				testutil.WriteFile(t, dir, configFileName, "existing")
			},
			args:      []string{"--force"},
			wantName:  config.DefaultProjectName,
			wantFiles: []string{configFileName},
		},
		{
			name: "project name from manage.py",
			setupDir: func(t *testing.T, dir string) {
				testutil.WriteFile(t, dir, "manage.py",
					"import os\nos.environ.setdefault('DJANGO_SETTINGS_MODULE', 'mysite.settings')\n")
			},
			wantName:  "mysite",
			wantFiles: []string{configFileName, "manage.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config.ResetConfig()
			t.Cleanup(config.ResetConfig)

			dir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, dir)
			}

			out, _, err := execute(NewInitCommand(), append([]string{dir}, tt.args...)...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, "blogcheck configured!")

			for _, f := range tt.wantFiles {
				assert.FileExists(t, filepath.Join(dir, f))
			}

			f := readInitFile(t, dir)
			assert.Equal(t, tt.wantName, f.ProjectName)
			assert.Equal(t, config.DefaultAppName, f.AppName)
			assert.Equal(t, config.DefaultTimeout.String(), f.Timeout)
			assert.Empty(t, f.ProjectDir)
		})
	}
}

func TestInitCommand_Example(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	dir := filepath.Join(t.TempDir(), "my-blog")

	out, _, err := execute(NewInitCommand(), dir, "--example")
	require.NoError(t, err)

	for _, f := range []string{
		"website/manage.py",
		"website/website/settings.py",
		"website/blog/views.py",
		"website/templates/layout.html",
		"website/static/blog/css/styles.css",
	} {
		assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(f)))
	}
	assert.Contains(t, out, "Blog App")
	assert.Contains(t, out, "Reference blog project written!")
	assert.Contains(t, out, "cd "+dir)

	f := readInitFile(t, dir)
	assert.Equal(t, "website", f.ProjectDir)
	assert.Equal(t, "website", f.ProjectName)

	// A second run keeps the project files.
	_, _, err = execute(NewInitCommand(), dir, "--example")
	require.Error(t, err)

	testutil.WriteFile(t, filepath.Join(dir, "website"), "blog/views.py", "# mine\n")
	out, _, err = execute(NewInitCommand(), dir, "--example", "--force")
	require.NoError(t, err)
	assert.NotContains(t, out, "exists")
	content, err := os.ReadFile(filepath.Join(dir, "website", "blog", "views.py"))
	require.NoError(t, err)
	assert.NotEqual(t, "# mine\n", string(content))
}

func TestDetectProjectName(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	name, ok := detectProjectName(dir)
	assert.True(t, ok)
	assert.Equal(t, "website", name)

	_, ok = detectProjectName(t.TempDir())
	assert.False(t, ok)
}
