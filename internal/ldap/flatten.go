package ldap

import (
	"iter"
	"maps"
	"strings"
)

// KeyValues yields the key=value pairs encoded in values, in order. Each
// value is split on its first '=', so "a=b=c" yields ("a", "b=c"). Values
// without '=' or with an empty key are skipped.
func KeyValues(values []string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, value := range values {
			key, val, ok := strings.Cut(value, "=")
			if !ok || key == "" {
				continue
			}
			if !yield(key, val) {
				return
			}
		}
	}
}

// Flatten turns a multi-valued attribute of key=value strings into a
// mapping. When a key repeats, the last value wins.
func Flatten(values []string) map[string]string {
	result := make(map[string]string, len(values))
	maps.Insert(result, KeyValues(values))
	return result
}

// Malformed returns the values that Flatten skips.
func Malformed(values []string) []string {
	var malformed []string
	for _, value := range values {
		if key, _, ok := strings.Cut(value, "="); !ok || key == "" {
			malformed = append(malformed, value)
		}
	}
	return malformed
}
