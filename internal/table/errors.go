package table

import "errors"

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrNotSortable     = errors.New("column is not sortable")
	ErrNotFilterable   = errors.New("column is not a facet")
	ErrNoSearchColumn  = errors.New("view has no search column")
	ErrPageOutOfRange  = errors.New("page index out of range")
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrInvalidConfig   = errors.New("invalid view configuration")
)

// ErrUnknownFacet is returned for facet operations on columns that do not exist.
var ErrUnknownFacet = ErrUnknownColumn
