package check

import (
	"errors"
	"fmt"
)

// Kind classifies a failed check.
type Kind int

// Failure kinds.
const (
	KindNone Kind = iota
	KindMissingPath
	KindMissingSetting
	KindPatternMismatch
	KindHandlerOutputMismatch
	KindRouteMismatch
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMissingPath:
		return "missing-path"
	case KindMissingSetting:
		return "missing-setting"
	case KindPatternMismatch:
		return "pattern-mismatch"
	case KindHandlerOutputMismatch:
		return "handler-output-mismatch"
	case KindRouteMismatch:
		return "route-mismatch"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for c := KindNone; c <= KindRouteMismatch; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", string(text))
}

// Sentinel errors, one per failure kind. A *Error matches the sentinel of
// its kind with errors.Is.
var (
	ErrMissingPath           = errors.New("missing path")
	ErrMissingSetting        = errors.New("missing setting")
	ErrPatternMismatch       = errors.New("pattern mismatch")
	ErrHandlerOutputMismatch = errors.New("handler output mismatch")
	ErrRouteMismatch         = errors.New("route mismatch")
)

// ErrSkipped is returned (possibly wrapped) by a rule whose collaborator is
// unavailable, e.g. view rules without a running server.
var ErrSkipped = errors.New("skipped")

func (k Kind) sentinel() error {
	switch k {
	case KindMissingPath:
		return ErrMissingPath
	case KindMissingSetting:
		return ErrMissingSetting
	case KindPatternMismatch:
		return ErrPatternMismatch
	case KindHandlerOutputMismatch:
		return ErrHandlerOutputMismatch
	case KindRouteMismatch:
		return ErrRouteMismatch
	default:
		return nil
	}
}

// Result is the outcome of a single checker invocation.
type Result struct {
	Passed  bool
	Kind    Kind   // KindNone when Passed
	Subject string // path, setting key, handler or route the check was about
	Message string
	Line    int // 1-based line in Subject, 0 when not applicable
}

// Pass returns a passing result.
func Pass(subject, msg string) Result {
	return Result{Passed: true, Subject: subject, Message: msg}
}

// Fail returns a failing result of the given kind.
func Fail(kind Kind, subject, msg string) Result {
	return Result{Kind: kind, Subject: subject, Message: msg}
}

// Failf is Fail with formatting.
func Failf(kind Kind, subject, format string, args ...any) Result {
	return Fail(kind, subject, fmt.Sprintf(format, args...))
}

// Err returns nil for a passing result and an *Error otherwise.
func (r Result) Err() error {
	if r.Passed {
		return nil
	}
	return &Error{Kind: r.Kind, Subject: r.Subject, Msg: r.Message}
}

// Error is a failed check as a Go error.
type Error struct {
	Kind    Kind
	Subject string
	Msg     string
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s", e.Subject, e.Msg)
	}
	return e.Msg
}

// Is reports whether target is the sentinel error of e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// Diagnostic is a failed result attributed to a rule.
type Diagnostic struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Message  string   `json:"message"`
	FilePath string   `json:"file_path,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// Collect converts the failed results among rs into diagnostics for ruleID.
// Passing results are dropped.
func Collect(ruleID string, rs ...Result) []Diagnostic {
	var diags []Diagnostic
	for _, r := range rs {
		if r.Passed {
			continue
		}
		diags = append(diags, Diagnostic{
			RuleID:   ruleID,
			Kind:     r.Kind,
			Message:  r.Message,
			FilePath: r.Subject,
			Line:     r.Line,
		})
	}
	return diags
}
