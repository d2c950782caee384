package validation

import (
	"strconv"
	"strings"
)

type absent struct{}

// Absent is the result of resolving a path that does not exist. It is
// distinct from a present null value and from an empty string.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent marker
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// Tree builds the root value rule field paths are resolved against
func Tree(metadata, jwks map[string]any) map[string]any {
	return map[string]any{
		"metadata": normalize(metadata),
		"jwks":     normalize(jwks),
	}
}

// Resolve walks the dot separated path through tree. Object members are
// selected by name, array elements by their decimal index. Any step that
// cannot be taken yields Absent.
func Resolve(tree any, path string) any {
	if path == "" {
		return Absent
	}
	cur := tree
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return Absent
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return Absent
			}
			cur = node[i]
		default:
			return Absent
		}
	}
	return cur
}

// normalize converts named map and slice types (e.g. from the database
// layer) into the plain JSON shapes Resolve walks
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return nil
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
