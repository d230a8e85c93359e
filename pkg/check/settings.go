package check

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
)

// Snapshot is a read-only view of a project's settings. Keys are setting
// names; nested values are reached with dotted key paths such as
// "TEMPLATES.0.DIRS".
type Snapshot map[string]any

// Lookup resolves a dotted key path. Numeric segments index lists.
func (s Snapshot) Lookup(key string) (any, bool) {
	if s == nil || key == "" {
		return nil, false
	}
	var cur any = map[string]any(s)
	for _, seg := range strings.Split(key, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// String returns the string value at key.
func (s Snapshot) String(key string) (string, bool) {
	v, ok := s.Lookup(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Contains passes if the list at key holds any of the accepted values.
func (s Snapshot) Contains(key string, accepted ...string) Result {
	return s.contains(key, accepted, func(a, b string) bool { return a == b })
}

// ContainsPath is Contains for filesystem paths: members and accepted values
// are compared after cleaning, relative members are resolved against root.
func (s Snapshot) ContainsPath(key, root string, accepted ...string) Result {
	norm := func(p string) string {
		if !filepath.IsAbs(p) && root != "" {
			p = filepath.Join(root, p)
		}
		return filepath.Clean(p)
	}
	return s.contains(key, accepted, func(member, want string) bool {
		return norm(member) == norm(want)
	})
}

func (s Snapshot) contains(key string, accepted []string, eq func(member, want string) bool) Result {
	v, ok := s.Lookup(key)
	if !ok {
		return Failf(KindMissingSetting, key, "setting %s is not defined", key)
	}
	list, ok := v.([]any)
	if !ok {
		return Failf(KindMissingSetting, key, "setting %s is %s, not a list", key, describe(v))
	}
	for _, item := range list {
		member, ok := item.(string)
		if !ok {
			continue
		}
		for _, want := range accepted {
			if eq(member, want) {
				return Pass(key, fmt.Sprintf("%s contains %q", key, member))
			}
		}
	}
	return Failf(KindMissingSetting, key, "%s does not contain %s", key, quoteAll(accepted))
}

// Equals passes if the value at key equals want.
func (s Snapshot) Equals(key string, want any) Result {
	v, ok := s.Lookup(key)
	if !ok {
		return Failf(KindMissingSetting, key, "setting %s is not defined", key)
	}
	if !reflect.DeepEqual(v, want) {
		return Failf(KindMissingSetting, key, "setting %s is %v, want %v", key, v, want)
	}
	return Pass(key, fmt.Sprintf("%s is %v", key, want))
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "None"
	case string:
		return "a string"
	case map[string]any:
		return "a mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = strconv.Quote(s)
	}
	return strings.Join(q, " or ")
}
