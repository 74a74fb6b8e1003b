package validation

import (
	"fmt"

	dErrors "milkadmin/pkg/domain-errors"
)

// MaxBodySize is the maximum allowed console request body size (64 KB).
const MaxBodySize = 64 * 1024

const (
	// MaxPageSize caps the page size an operator may request from the backend.
	MaxPageSize = 100

	// MaxFacetValues caps the number of values selected on one facet.
	MaxFacetValues = 50

	// MaxSearchLength caps the free-text search value.
	MaxSearchLength = 200
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		msg := fmt.Sprintf("too many %s: max %d allowed", fieldName, max)
		return dErrors.Invalid(msg, map[string][]string{fieldName: {msg}})
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len([]rune(value)) > max {
		msg := fmt.Sprintf("%s exceeds max length of %d", fieldName, max)
		return dErrors.Invalid(msg, map[string][]string{fieldName: {msg}})
	}
	return nil
}
