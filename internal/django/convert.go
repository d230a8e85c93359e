package django

import (
	"fmt"
	"path/filepath"

	"go.starlark.net/starlark"
)

// ToGo converts a Starlark value to a plain Go value for a settings
// snapshot. Returns: string, int64, float64, bool, []any, map[string]any,
// or nil. Paths become cleaned strings; refs and other opaque values become
// their name.
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case Path:
		return filepath.Clean(val.path), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			// Fallback for very large integers - convert to string
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.List:
		return seqToGo(val, "list")

	case starlark.Tuple:
		return seqToGo(val, "tuple")

	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			var key string
			switch k := item[0].(type) {
			case starlark.String:
				key = string(k)
			default:
				key = k.String()
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[key] = gv
		}
		return result, nil

	case *starlark.Function:
		return val.Name(), nil

	default:
		return val.String(), nil
	}
}

func seqToGo(seq starlark.Indexable, kind string) ([]any, error) {
	result := make([]any, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		gv, err := ToGo(seq.Index(i))
		if err != nil {
			return nil, fmt.Errorf("%s index %d: %w", kind, i, err)
		}
		result[i] = gv
	}
	return result, nil
}
