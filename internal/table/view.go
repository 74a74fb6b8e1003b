// Package table is the list engine behind every console view: one fetched
// page of rows, free-text search on one column, faceted multi-select filters,
// a three-state sort, selection by stable row key and server-driven
// pagination.
//
// Search, facets and sort apply to the rows of the current page only. Page
// changes are requests the caller fulfils by fetching and calling SetRows.
package table

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	pstrings "milkadmin/pkg/platform/strings"
	"milkadmin/pkg/validation"
)

// DefaultPageSize is used when Config.PageSize is zero.
const DefaultPageSize = 10

// Direction of an active sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortState is the active sort, if any.
type SortState struct {
	Key       string    `json:"key"`
	Direction Direction `json:"direction"`
}

// Config holds the per-view settings.
type Config[T any] struct {
	// SearchKey names the column free-text search applies to. Empty disables search.
	SearchKey string
	// DataType selects Column.OptionsByType entries.
	DataType string
	// RowKey returns the stable identity selection is keyed by.
	RowKey   func(T) string
	PageSize int
}

// Page is one fetched page handed to SetRows.
type Page[T any] struct {
	Rows          []T
	TotalPages    int
	TotalElements int
}

// PageRequest asks the caller to fetch page Index of size Size. Generation
// orders requests so a late response to an older request can be discarded.
type PageRequest struct {
	Index      int    `json:"pageIndex"`
	Size       int    `json:"pageSize"`
	Generation uint64 `json:"generation"`
}

// View is the state of one table. It is safe for concurrent use.
type View[T any] struct {
	mu sync.Mutex

	columns []Column[T]
	index   map[string]int
	cfg     Config[T]

	rows          []T
	totalPages    int
	totalElements int
	pageIndex     int
	pageSize      int
	loaded        bool

	search    string
	facets    map[string][]string
	sort      *SortState
	selection map[string]struct{}

	generation uint64
}

// NewView validates the column set and returns an empty view on page 0.
func NewView[T any](columns []Column[T], cfg Config[T]) (*View[T], error) {
	if cfg.RowKey == nil {
		return nil, fmt.Errorf("%w: RowKey is required", ErrInvalidConfig)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PageSize < 0 || cfg.PageSize > validation.MaxPageSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, cfg.PageSize)
	}

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if c.Key == "" {
			return nil, fmt.Errorf("%w: column %d has no key", ErrInvalidConfig, i)
		}
		if _, dup := index[c.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidConfig, c.Key)
		}
		if c.Accessor != nil && c.Values != nil {
			return nil, fmt.Errorf("%w: column %q sets both Accessor and Values", ErrInvalidConfig, c.Key)
		}
		index[c.Key] = i
	}
	if cfg.SearchKey != "" {
		if _, ok := index[cfg.SearchKey]; !ok {
			return nil, fmt.Errorf("%w: search column %q", ErrUnknownColumn, cfg.SearchKey)
		}
	}

	return &View[T]{
		columns:   slices.Clone(columns),
		index:     index,
		cfg:       cfg,
		pageSize:  cfg.PageSize,
		facets:    make(map[string][]string),
		selection: make(map[string]struct{}),
	}, nil
}

// Loaded reports whether SetRows has accepted at least one page.
func (v *View[T]) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// SetRows replaces the current page. It returns false, leaving the view
// untouched, when req is older than the latest request issued.
// Search, facets, sort and selection are kept. The page index is always
// req.Index, even when the new totals put it past the last page; see PastEnd.
func (v *View[T]) SetRows(req PageRequest, page Page[T]) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if req.Generation < v.generation {
		return false
	}
	rows := page.Rows
	if req.Size > 0 && len(rows) > req.Size {
		rows = rows[:req.Size]
	}
	v.rows = slices.Clone(rows)
	v.totalPages = max(page.TotalPages, 0)
	v.totalElements = max(page.TotalElements, 0)
	if req.Size > 0 {
		v.pageSize = req.Size
	}
	v.pageIndex = max(req.Index, 0)
	v.loaded = true
	return true
}

// PastEnd reports whether the current page no longer exists, as when the last
// row of the last page was deleted. It then issues a request for the new last
// page, or the first page when nothing is left.
func (v *View[T]) PastEnd() (PageRequest, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	last := max(v.totalPages-1, 0)
	if v.pageIndex <= last {
		return PageRequest{}, false
	}
	return v.request(last, v.pageSize), true
}

// Search sets the free-text filter. An empty value shows all rows.
func (v *View[T]) Search(value string) error {
	if err := validation.CheckStringLength("value", value, validation.MaxSearchLength); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cfg.SearchKey == "" && value != "" {
		return ErrNoSearchColumn
	}
	v.search = value
	return nil
}

// SetFacet replaces the selected values of a facet column. An empty list
// clears the facet.
func (v *View[T]) SetFacet(key string, values []string) error {
	if err := validation.CheckSliceCount("values", len(values), validation.MaxFacetValues); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := v.facetColumn(key); err != nil {
		return err
	}
	values = pstrings.DedupeAndTrim(values)
	if len(values) == 0 {
		delete(v.facets, key)
		return nil
	}
	v.facets[key] = values
	return nil
}

func (v *View[T]) ClearFacet(key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := v.facetColumn(key); err != nil {
		return err
	}
	delete(v.facets, key)
	return nil
}

// ResetFilters clears search and every facet. Sort and selection stay.
func (v *View[T]) ResetFilters() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.search = ""
	clear(v.facets)
}

// ToggleSort cycles the column through none, asc and desc. Sorting another
// column starts it at asc.
func (v *View[T]) ToggleSort(key string) (*SortState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i, ok := v.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, key)
	}
	if !v.columns[i].Sortable {
		return nil, fmt.Errorf("%w: %q", ErrNotSortable, key)
	}

	switch {
	case v.sort == nil || v.sort.Key != key:
		v.sort = &SortState{Key: key, Direction: Asc}
	case v.sort.Direction == Asc:
		v.sort = &SortState{Key: key, Direction: Desc}
	default:
		v.sort = nil
	}
	if v.sort == nil {
		return nil, nil
	}
	s := *v.sort
	return &s, nil
}

func (v *View[T]) Select(key string, selected bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if selected {
		v.selection[key] = struct{}{}
		return
	}
	delete(v.selection, key)
}

// SelectAllVisible selects or deselects every row that passes the current
// search and facets.
func (v *View[T]) SelectAllVisible(selected bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, row := range v.filtered() {
		key := v.cfg.RowKey(row)
		if selected {
			v.selection[key] = struct{}{}
		} else {
			delete(v.selection, key)
		}
	}
}

// ClearSelection deselects every row, including rows on other pages.
func (v *View[T]) ClearSelection() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.selection)
}

// Selected returns the selected row keys in sorted order.
func (v *View[T]) Selected() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectedKeys()
}

func (v *View[T]) selectedKeys() []string {
	keys := make([]string, 0, len(v.selection))
	for k := range v.selection {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GoToPage requests page i at the current page size.
func (v *View[T]) GoToPage(i int) (PageRequest, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i < 0 || (v.totalPages > 0 && i >= v.totalPages) || (v.totalPages == 0 && i > 0) {
		return PageRequest{}, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, i, v.totalPages)
	}
	return v.request(i, v.pageSize), nil
}

// SetPageSize requests page 0 at size n.
func (v *View[T]) SetPageSize(n int) (PageRequest, error) {
	if n <= 0 || n > validation.MaxPageSize {
		return PageRequest{}, fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.request(0, n), nil
}

// Refresh requests the current page again.
func (v *View[T]) Refresh() PageRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.request(v.pageIndex, v.pageSize)
}

func (v *View[T]) request(index, size int) PageRequest {
	v.generation++
	return PageRequest{Index: index, Size: size, Generation: v.generation}
}

func (v *View[T]) facetColumn(key string) (*Column[T], error) {
	i, ok := v.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFacet, key)
	}
	if !v.columns[i].Facet {
		return nil, fmt.Errorf("%w: %q", ErrNotFilterable, key)
	}
	return &v.columns[i], nil
}

// filtered applies search and facets to the current rows, keeping page order.
func (v *View[T]) filtered() []T {
	var searchCol *Column[T]
	needle := fold(v.search)
	if needle != "" {
		searchCol = &v.columns[v.index[v.cfg.SearchKey]]
	}

	type activeFacet struct {
		col      *Column[T]
		selected []string
		folded   map[string]struct{}
	}
	active := make([]activeFacet, 0, len(v.facets))
	for _, c := range v.columns {
		selected, ok := v.facets[c.Key]
		if !ok {
			continue
		}
		folded := make(map[string]struct{}, len(selected))
		for _, s := range selected {
			folded[fold(s)] = struct{}{}
		}
		col := &v.columns[v.index[c.Key]]
		active = append(active, activeFacet{col: col, selected: selected, folded: folded})
	}

	out := make([]T, 0, len(v.rows))
	for _, row := range v.rows {
		if searchCol != nil && !containsFolded(searchCol.text(row), needle) {
			continue
		}
		keep := true
		for _, f := range active {
			if !f.col.matches(row, f.selected, f.folded) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

// visible is filtered plus the active sort. Equal rows keep page order.
func (v *View[T]) visible() []T {
	rows := v.filtered()
	if v.sort == nil {
		return rows
	}
	col := &v.columns[v.index[v.sort.Key]]
	desc := v.sort.Direction == Desc
	slices.SortStableFunc(rows, func(a, b T) int {
		c := compareValues(col.sortValue(a), col.sortValue(b))
		if desc {
			return -c
		}
		return c
	})
	return rows
}

// Visible returns the rows a render would show, in display order.
func (v *View[T]) Visible() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible()
}
