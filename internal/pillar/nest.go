package pillar

import (
	"maps"
	"slices"
	"strings"
)

// Nest expands delimited keys into nested mappings, so that with ":" the key
// "ntp:server" becomes {"ntp": {"server": ...}}. Keys are processed in
// sorted order; where a key is both a value and a prefix of other keys, the
// nested mapping wins.
func Nest(flat map[string]any, delimiter string) map[string]any {
	if delimiter == "" {
		return maps.Clone(flat)
	}

	nested := make(map[string]any, len(flat))
	for _, key := range slices.Sorted(maps.Keys(flat)) {
		setPath(nested, strings.Split(key, delimiter), flat[key])
	}
	return nested
}

func setPath(node map[string]any, path []string, value any) {
	last := len(path) - 1
	for _, segment := range path[:last] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[segment] = child
		}
		node = child
	}

	if _, isMap := node[path[last]].(map[string]any); isMap {
		return
	}
	node[path[last]] = value
}
