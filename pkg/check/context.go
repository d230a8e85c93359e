package check

import (
	"log/slog"
	"path/filepath"
)

// Context carries everything a rule may look at. It is built once per run
// and never mutated by rules.
type Context struct {
	// Root is the absolute project root all relative paths resolve against.
	Root string

	// Project is the expected name of the project directory.
	Project string

	// App is the expected application package name.
	App string

	// Settings is the loaded configuration snapshot. SettingsErr is set
	// instead when the settings could not be evaluated.
	Settings    Snapshot
	SettingsErr error

	// Resolver maps URL paths to handlers. ResolverErr is set instead when
	// the routing table could not be loaded.
	Resolver    Resolver
	ResolverErr error

	// Handlers supplies invocable handlers for view checks; nil when no
	// handler transport is configured.
	Handlers HandlerSource

	// Expected maps logical view names ("index", "post") to the handler
	// references the routes must resolve to.
	Expected map[string]HandlerRef

	Logger *slog.Logger
}

// Path joins rel onto the project root.
func (c *Context) Path(rel ...string) string {
	return filepath.Join(append([]string{c.Root}, rel...)...)
}

func (c *Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}
