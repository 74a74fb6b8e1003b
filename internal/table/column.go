package table

import (
	"fmt"
	"strings"
	"time"
)

// Option is one selectable value of a facet control.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Column describes how a view reads, renders, sorts and filters one field of T.
//
// Accessor yields a scalar; Values yields the elements of an array-valued
// field. A column sets at most one of them. Facet columns derive their option
// list from the current rows unless canned Options apply.
type Column[T any] struct {
	Key      string
	Header   string
	Sortable bool
	Facet    bool

	Accessor func(T) any
	Values   func(T) []string
	Cell     func(T) string

	// Filter replaces the default facet predicate. selected is never empty.
	Filter func(row T, selected []string) bool
	// Present reports whether the field exists on row. Defaults to a non-empty value.
	Present func(T) bool

	// Options are canned facet options. OptionsByType overrides them for a
	// view whose Config.DataType matches a key.
	Options       []Option
	OptionsByType map[string][]Option
}

func (c *Column[T]) present(row T) bool {
	if c.Present != nil {
		return c.Present(row)
	}
	if c.Values != nil {
		return len(c.Values(row)) > 0
	}
	if c.Accessor != nil {
		return stringify(c.Accessor(row)) != ""
	}
	return false
}

func (c *Column[T]) cell(row T) string {
	switch {
	case c.Cell != nil:
		return c.Cell(row)
	case c.Values != nil:
		return strings.Join(c.Values(row), ", ")
	case c.Accessor != nil:
		return stringify(c.Accessor(row))
	default:
		return ""
	}
}

// text is what search matches against.
func (c *Column[T]) text(row T) string {
	switch {
	case c.Accessor != nil:
		return stringify(c.Accessor(row))
	case c.Values != nil:
		return strings.Join(c.Values(row), " ")
	case c.Cell != nil:
		return c.Cell(row)
	default:
		return ""
	}
}

func (c *Column[T]) sortValue(row T) any {
	if c.Accessor != nil {
		return c.Accessor(row)
	}
	return c.cell(row)
}

func (c *Column[T]) cannedOptions(dataType string) ([]Option, bool) {
	if opts, ok := c.OptionsByType[dataType]; ok {
		return opts, true
	}
	if c.Options != nil {
		return c.Options, true
	}
	return nil, false
}

func (c *Column[T]) matches(row T, selected []string, folded map[string]struct{}) bool {
	if c.Filter != nil {
		return c.Filter(row, selected)
	}
	if c.Values != nil {
		for _, v := range c.Values(row) {
			if _, ok := folded[fold(v)]; ok {
				return true
			}
		}
		return false
	}
	if c.Accessor == nil {
		return false
	}
	_, ok := folded[fold(stringify(c.Accessor(row)))]
	return ok
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
