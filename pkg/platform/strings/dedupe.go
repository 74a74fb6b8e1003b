// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
//	DedupeAndTrim([]string{"  ACTIVE ", "INACTIVE", "ACTIVE", ""})
//	// []string{"ACTIVE", "INACTIVE"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	return DedupeFunc(values, strings.TrimSpace)
}

// DedupeFunc maps each value through key, drops empty results and keeps the
// first occurrence of each key. The returned slice holds keys, not originals.
func DedupeFunc(values []string, key func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		k := key(v)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, k)
	}
	return result
}
