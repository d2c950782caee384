package utils

import (
	"strings"

	"github.com/fatih/structs"
)

// MergeMaps merges the passed maps into a new map. Later maps win over
// earlier ones if overwrite is true; otherwise the first value for a key is
// kept. Nested maps are merged recursively.
func MergeMaps(overwrite bool, maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			existing, ok := out[k]
			if !ok {
				out[k] = v
				continue
			}
			em, eok := existing.(map[string]any)
			vm, vok := v.(map[string]any)
			if eok && vok {
				out[k] = MergeMaps(overwrite, em, vm)
				continue
			}
			if overwrite {
				out[k] = v
			}
		}
	}
	return out
}

// FieldTagNames returns the names from the passed tag of the fields, e.g.
// the yaml keys of a struct. Fields without that tag or tagged "-" are
// skipped.
func FieldTagNames(fields []*structs.Field, tag string) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		name, _, _ := strings.Cut(f.Tag(tag), ",")
		if name == "" || name == "-" {
			continue
		}
		names = append(names, name)
	}
	return names
}
