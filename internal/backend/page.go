package backend

import (
	"context"
	"net/url"
	"strconv"
)

// Page is the envelope list endpoints answer with.
type Page[T any] struct {
	Content       []T  `json:"content"`
	PageNo        int  `json:"pageNo"`
	PageSize      int  `json:"pageSize"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	Last          bool `json:"last"`
}

// PageQuery selects one page of a list endpoint.
type PageQuery struct {
	PageNo   int
	PageSize int
	SortBy   string
	SortDir  string
	Extra    url.Values
}

// Values renders the query in the order the backend documents.
func (q PageQuery) Values() url.Values {
	v := url.Values{}
	v.Set("pageNo", strconv.Itoa(q.PageNo))
	v.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	sortDir := q.SortDir
	if sortDir == "" {
		sortDir = "asc"
	}
	v.Set("sortDir", sortDir)
	for k, vs := range q.Extra {
		for _, val := range vs {
			v.Add(k, val)
		}
	}
	return v
}

// ListPage fetches one page of endpoint and decodes it into Page[T].
func ListPage[T any](ctx context.Context, c *Client, endpoint string, q PageQuery, opts ...CallOption) (*Page[T], error) {
	var page Page[T]
	opts = append([]CallOption{WithQuery(q.Values())}, opts...)
	if err := c.Get(ctx, endpoint, &page, opts...); err != nil {
		return nil, err
	}
	if page.Content == nil {
		page.Content = []T{}
	}
	return &page, nil
}
