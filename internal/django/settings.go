// Package django reads a Django project without running Python. settings.py
// and urls.py modules are evaluated in a Starlark interpreter with enough of
// os, pathlib and django.urls modelled to yield the settings values and the
// URL routing table; view references are exercised against a running
// development server through a reverse proxy.
package django

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"go.starlark.net/starlark"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

// Settings is the typed view of the settings a project check cares about.
type Settings struct {
	BaseDir         string            `mapstructure:"BASE_DIR"`
	Debug           bool              `mapstructure:"DEBUG"`
	InstalledApps   []string          `mapstructure:"INSTALLED_APPS"`
	RootURLConf     string            `mapstructure:"ROOT_URLCONF"`
	Templates       []TemplateBackend `mapstructure:"TEMPLATES"`
	StaticURL       string            `mapstructure:"STATIC_URL"`
	StaticFilesDirs []any             `mapstructure:"STATICFILES_DIRS"`
}

// TemplateBackend is one entry of the TEMPLATES setting.
type TemplateBackend struct {
	Backend string   `mapstructure:"BACKEND"`
	Dirs    []string `mapstructure:"DIRS"`
	AppDirs bool     `mapstructure:"APP_DIRS"`
}

// Decode converts a snapshot into typed Settings. Unknown settings are
// ignored.
func Decode(snap check.Snapshot) (*Settings, error) {
	var s Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(snap)); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &s, nil
}

// SettingsLoader evaluates a settings module.
type SettingsLoader struct {
	root    string
	environ map[string]string
}

// NewSettingsLoader creates a loader for the project at root. The process
// environment backs os.environ and os.getenv.
func NewSettingsLoader(root string) *SettingsLoader {
	return &SettingsLoader{root: root, environ: environMap(os.Environ())}
}

// WithEnviron replaces the environment seen by settings modules.
func (l *SettingsLoader) WithEnviron(env map[string]string) *SettingsLoader {
	l.environ = env
	return l
}

// Load evaluates the dotted settings module (e.g. "website.settings") and
// returns its upper-case globals as a snapshot.
func (l *SettingsLoader) Load(dotted string) (check.Snapshot, error) {
	file, err := moduleFile(l.root, dotted)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	display := displayPath(l.root, file)

	modules := baseModules(l.environ)
	predeclared := starlark.StringDict{
		"__import__": importer(modules),
		"__file__":   starlark.String(file),
		"__name__":   starlark.String(dotted),
	}

	globals, err := execModule(file, display, packageOf(dotted, file), predeclared)
	if err != nil {
		return nil, err
	}

	snap := make(check.Snapshot)
	for _, name := range sortedNames(globals) {
		if !isSettingName(name) {
			continue
		}
		v, err := ToGo(globals[name])
		if err != nil {
			return nil, &EvalError{File: display, Msg: fmt.Sprintf("setting %s: %v", name, err), Err: err}
		}
		snap[name] = v
	}
	return snap, nil
}

// baseModules are the modules every evaluated file can import.
func baseModules(environ map[string]string) map[string]starlark.Value {
	osMod := osModule(environ)
	return map[string]starlark.Value{
		"os":      osMod,
		"os.path": osMod.Members["path"],
		"pathlib": pathlibModule(),
	}
}

var settingsModuleRe = regexp.MustCompile(`DJANGO_SETTINGS_MODULE['"]\s*,\s*['"]([\w.]+)['"]`)

// DiscoverSettingsModule reads the settings module manage.py configures.
func DiscoverSettingsModule(root string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(root, "manage.py")) //nolint:gosec // G304: fixed name below the project root
	if err != nil {
		return "", false
	}
	m := settingsModuleRe.FindSubmatch(content)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// isSettingName reports whether name is an upper-case setting name.
func isSettingName(name string) bool {
	if name == "" || strings.HasPrefix(name, "_") {
		return false
	}
	for _, r := range name {
		if unicode.IsLower(r) {
			return false
		}
	}
	return true
}

func sortedNames(d starlark.StringDict) []string {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func displayPath(root, file string) string {
	if rel, err := filepath.Rel(root, file); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return file
}

func environMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
