// Package check validates a scaffolded web project against a checklist.
//
// The package provides five stateless checkers and a small rule framework
// on top of them:
//
//   - CheckPath, CheckDir, CheckFile: filesystem existence below a project root
//   - Snapshot.Contains, Snapshot.Equals: configuration values in a settings snapshot
//   - CheckTemplate, CheckText: required and forbidden patterns in template text
//   - CheckView: a handler invoked with a synthetic request, body matched against a pattern
//   - CheckRoute: a URL path resolved to a handler and compared by identity
//
// Rules are registered with Register (usually from init functions, see
// package blog) and executed by a Runner, which produces a Report:
//
//	runner := check.NewRunner(nil)
//	report := runner.Run(ctx, &check.Context{Root: root, Settings: snapshot})
//	if report.HasErrors() {
//		// at least one error-severity rule failed
//	}
//
// Every checker is pure with respect to its inputs: running the same rule
// set twice against an unchanged project yields the same report.
package check
