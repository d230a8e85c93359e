package blog

import (
	"context"
	"errors"
	"strings"

	"github.com/leapstack-labs/blogcheck/pkg/check"
)

func init() {
	check.Register(check.RuleDef{
		ID:          "ST01",
		Name:        "installed-app",
		Group:       "settings",
		Task:        3,
		Description: "The blog app is listed in INSTALLED_APPS",
		Hint:        "Add 'blog' (or 'blog.apps.BlogConfig') to INSTALLED_APPS in settings.py",
		Severity:    check.SeverityError,
		Check:       checkInstalledApp,
	})
	check.Register(check.RuleDef{
		ID:          "ST02",
		Name:        "template-dirs",
		Group:       "settings",
		Task:        6,
		Description: "TEMPLATES[0]['DIRS'] points at the project templates directory",
		Hint:        "Set 'DIRS': [BASE_DIR / 'templates'] in the first TEMPLATES entry",
		Severity:    check.SeverityError,
		Check:       settingPath("TEMPLATES.0.DIRS", "templates"),
	})
	check.Register(check.RuleDef{
		ID:          "ST03",
		Name:        "staticfiles-dirs",
		Group:       "settings",
		Task:        8,
		Description: "STATICFILES_DIRS contains the project static directory",
		Hint:        "Add STATICFILES_DIRS = [BASE_DIR / 'static'] to settings.py",
		Severity:    check.SeverityError,
		Check:       settingPath("STATICFILES_DIRS", "static"),
	})
}

func checkInstalledApp(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
	if err := settingsErr(c, "INSTALLED_APPS"); err != nil {
		return nil, err
	}
	app := appName(c)
	return check.Collect("", c.Settings.Contains("INSTALLED_APPS", app, AppConfigName(app))), nil
}

func settingPath(key, rel string) check.Check {
	return func(_ context.Context, c *check.Context) ([]check.Diagnostic, error) {
		if err := settingsErr(c, key); err != nil {
			return nil, err
		}
		return check.Collect("", c.Settings.ContainsPath(key, c.Root, c.Path(rel))), nil
	}
}

func settingsErr(c *check.Context, key string) error {
	if errors.Is(c.SettingsErr, check.ErrSkipped) {
		return c.SettingsErr
	}
	if c.SettingsErr != nil {
		return check.Failf(check.KindMissingSetting, key, "settings could not be loaded: %v", c.SettingsErr).Err()
	}
	if c.Settings == nil {
		return check.Fail(check.KindMissingSetting, key, "no settings loaded").Err()
	}
	return nil
}

// AppConfigName returns the dotted path of the AppConfig class startapp
// generates for app, e.g. "blog.apps.BlogConfig".
func AppConfigName(app string) string {
	var b strings.Builder
	for _, part := range strings.Split(app, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return app + ".apps." + b.String() + "Config"
}
