package table

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// fold normalizes s for case-insensitive comparison. Precomposed and
// decomposed Vietnamese text fold to the same string.
func fold(s string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(s)))
}

func containsFolded(haystack, foldedNeedle string) bool {
	return strings.Contains(fold(haystack), foldedNeedle)
}
