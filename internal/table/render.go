package table

// ColumnInfo describes a column to the client.
type ColumnInfo struct {
	Key      string `json:"key"`
	Header   string `json:"header"`
	Sortable bool   `json:"sortable"`
	Facet    bool   `json:"facet"`
}

// Row is one rendered row.
type Row struct {
	Key      string            `json:"key"`
	Selected bool              `json:"selected"`
	Cells    map[string]string `json:"cells"`
	Record   any               `json:"record"`
}

// FacetControl is the filter control of one facet column.
type FacetControl struct {
	Key      string   `json:"key"`
	Header   string   `json:"header"`
	Options  []Option `json:"options"`
	Selected []string `json:"selected"`
}

// PageLink is one entry of the page-number window. Ellipsis entries carry no index.
type PageLink struct {
	Index    int  `json:"index"`
	Current  bool `json:"current,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

type Pagination struct {
	PageIndex     int        `json:"pageIndex"`
	PageSize      int        `json:"pageSize"`
	TotalPages    int        `json:"totalPages"`
	TotalElements int        `json:"totalElements"`
	HasPrevious   bool       `json:"hasPrevious"`
	HasNext       bool       `json:"hasNext"`
	Window        []PageLink `json:"window"`
}

// Snapshot is everything a client needs to draw the table.
type Snapshot struct {
	Columns    []ColumnInfo   `json:"columns"`
	Rows       []Row          `json:"rows"`
	SearchKey  string         `json:"searchKey,omitempty"`
	Search     string         `json:"search"`
	Facets     []FacetControl `json:"facets"`
	Sort       *SortState     `json:"sort"`
	Selection  []string       `json:"selection"`
	Pagination Pagination     `json:"pagination"`
	Loaded     bool           `json:"loaded"`
}

// Render snapshots the view. Facet controls are listed only for facet
// columns present on at least one current row.
func (v *View[T]) Render() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := Snapshot{
		Columns:   make([]ColumnInfo, 0, len(v.columns)),
		SearchKey: v.cfg.SearchKey,
		Search:    v.search,
		Facets:    []FacetControl{},
		Selection: v.selectedKeys(),
		Loaded:    v.loaded,
	}
	for _, c := range v.columns {
		snap.Columns = append(snap.Columns, ColumnInfo{Key: c.Key, Header: c.Header, Sortable: c.Sortable, Facet: c.Facet})
	}

	visible := v.visible()
	snap.Rows = make([]Row, 0, len(visible))
	for _, row := range visible {
		key := v.cfg.RowKey(row)
		_, selected := v.selection[key]
		cells := make(map[string]string, len(v.columns))
		for i := range v.columns {
			cells[v.columns[i].Key] = v.columns[i].cell(row)
		}
		snap.Rows = append(snap.Rows, Row{Key: key, Selected: selected, Cells: cells, Record: row})
	}

	for i := range v.columns {
		c := &v.columns[i]
		if !c.Facet {
			continue
		}
		opts, ok := v.facetOptions(c)
		if !ok {
			continue
		}
		selected := v.facets[c.Key]
		if selected == nil {
			selected = []string{}
		}
		snap.Facets = append(snap.Facets, FacetControl{Key: c.Key, Header: c.Header, Options: opts, Selected: selected})
	}

	if v.sort != nil {
		s := *v.sort
		snap.Sort = &s
	}
	snap.Pagination = Pagination{
		PageIndex:     v.pageIndex,
		PageSize:      v.pageSize,
		TotalPages:    v.totalPages,
		TotalElements: v.totalElements,
		HasPrevious:   v.pageIndex > 0,
		HasNext:       v.pageIndex+1 < v.totalPages,
		Window:        PageWindow(v.pageIndex, v.totalPages),
	}
	return snap
}

// FacetOptions returns the option list of a facet column, or false when the
// column has no value on any current row.
func (v *View[T]) FacetOptions(key string) ([]Option, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, err := v.facetColumn(key)
	if err != nil {
		return nil, false, err
	}
	opts, ok := v.facetOptions(c)
	return opts, ok, nil
}

func (v *View[T]) facetOptions(c *Column[T]) ([]Option, bool) {
	present := false
	for _, row := range v.rows {
		if c.present(row) {
			present = true
			break
		}
	}
	if !present {
		return nil, false
	}
	if canned, ok := c.cannedOptions(v.cfg.DataType); ok {
		return append([]Option(nil), canned...), true
	}

	seen := make(map[string]struct{})
	opts := []Option{}
	add := func(val string) {
		if val == "" {
			return
		}
		if _, dup := seen[val]; dup {
			return
		}
		seen[val] = struct{}{}
		opts = append(opts, Option{Label: val, Value: val})
	}
	for _, row := range v.rows {
		switch {
		case c.Values != nil:
			for _, val := range c.Values(row) {
				add(val)
			}
		case c.Accessor != nil:
			add(stringify(c.Accessor(row)))
		}
	}
	return opts, true
}

// PageWindow lists up to three page numbers ending at most three pages after
// current, plus the first and last pages with ellipses where pages are skipped.
func PageWindow(current, totalPages int) []PageLink {
	if totalPages <= 0 {
		return []PageLink{}
	}
	maxPage := min(current+3, totalPages)
	start := max(0, maxPage-3)

	links := []PageLink{}
	if start > 0 {
		links = append(links, PageLink{Index: 0, Current: current == 0})
		if start > 1 {
			links = append(links, PageLink{Index: -1, Ellipsis: true})
		}
	}
	for i := start; i < maxPage; i++ {
		links = append(links, PageLink{Index: i, Current: i == current})
	}
	if maxPage < totalPages {
		if maxPage < totalPages-1 {
			links = append(links, PageLink{Index: -1, Ellipsis: true})
		}
		links = append(links, PageLink{Index: totalPages - 1, Current: current == totalPages-1})
	}
	return links
}
