package console

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milkadmin/internal/backend"
	"milkadmin/internal/catalog"
	"milkadmin/internal/platform/metrics"
	"milkadmin/internal/platform/tracer"
	"milkadmin/internal/table"
	dErrors "milkadmin/pkg/domain-errors"
)

func testDeps(m *metrics.Metrics) viewDeps {
	return viewDeps{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: m,
		tracer:  tracer.NewNoop(),
	}
}

func brandPage(q backend.PageQuery, total int) *backend.Page[catalog.Brand] {
	rows := make([]catalog.Brand, 0, q.PageSize)
	for i := range q.PageSize {
		id := int64(q.PageNo*q.PageSize + i + 1)
		if int(id) > total {
			break
		}
		rows = append(rows, catalog.Brand{BrandID: id, BrandName: "Brand"})
	}
	pages := (total + q.PageSize - 1) / q.PageSize
	return &backend.Page[catalog.Brand]{Content: rows, TotalPages: pages, TotalElements: total}
}

func TestEntityViewDiscardsStalePages(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Brand], error) {
		if q.PageNo == 1 {
			close(started)
			<-release
		}
		return brandPage(q, 30), nil
	}
	v, err := newEntityView(ViewBrands, catalog.BrandTable(10), fetch, testDeps(m))
	require.NoError(t, err)

	_, err = v.Render(t.Context())
	require.NoError(t, err)

	slow := make(chan error, 1)
	go func() { slow <- v.GoToPage(t.Context(), 1) }()
	<-started

	require.NoError(t, v.GoToPage(t.Context(), 2))
	close(release)
	require.NoError(t, <-slow)

	snap, err := v.Render(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Pagination.PageIndex, "the older answer for page 1 is dropped")
	assert.Equal(t, "21", snap.Rows[0].Key)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StaleViewResponses.WithLabelValues(ViewBrands)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ViewFetches.WithLabelValues(ViewBrands, "ok")))
}

func TestEntityViewKeepsRowsOnFailure(t *testing.T) {
	fail := false
	fetch := func(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Brand], error) {
		if fail {
			return nil, &backend.APIError{Kind: backend.KindServer, Status: 500}
		}
		return brandPage(q, 15), nil
	}
	v, err := newEntityView(ViewBrands, catalog.BrandTable(10), fetch, testDeps(nil))
	require.NoError(t, err)

	_, err = v.Render(t.Context())
	require.NoError(t, err)

	fail = true
	err = v.GoToPage(t.Context(), 1)
	assert.True(t, backend.IsKind(err, backend.KindServer))

	snap, err := v.Render(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Pagination.PageIndex)
	assert.Len(t, snap.Rows, 10)
}

func TestEntityViewReloadsLastPageWhenPagesShrink(t *testing.T) {
	total := 21
	var requested []int
	fetch := func(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Brand], error) {
		requested = append(requested, q.PageNo)
		return brandPage(q, total), nil
	}
	v, err := newEntityView(ViewBrands, catalog.BrandTable(10), fetch, testDeps(nil))
	require.NoError(t, err)
	require.NoError(t, v.GoToPage(t.Context(), 0))
	require.NoError(t, v.GoToPage(t.Context(), 2))

	// The only row on page 2 was deleted.
	total = 20
	require.NoError(t, v.Refresh(t.Context()))

	snap, err := v.Render(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Pagination.PageIndex)
	assert.Equal(t, 2, snap.Pagination.TotalPages)
	require.Len(t, snap.Rows, 10)
	assert.Equal(t, "11", snap.Rows[0].Key)
	assert.Equal(t, []int{0, 2, 2, 1}, requested)
}

func TestEntityViewRenderRetriesFirstLoad(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Brand], error) {
		calls++
		if calls == 1 {
			return nil, &backend.APIError{Kind: backend.KindUnavailable}
		}
		return brandPage(q, 3), nil
	}
	v, err := newEntityView(ViewBrands, catalog.BrandTable(10), fetch, testDeps(nil))
	require.NoError(t, err)

	_, err = v.Render(t.Context())
	require.Error(t, err)

	snap, err := v.Render(t.Context())
	require.NoError(t, err)
	assert.True(t, snap.Loaded)
	assert.Len(t, snap.Rows, 3)

	_, err = v.Render(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "a loaded view renders without fetching")
}

func TestTableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code dErrors.Code
	}{
		{"unknown column", table.ErrUnknownColumn, dErrors.CodeNotFound},
		{"not sortable", table.ErrNotSortable, dErrors.CodeBadRequest},
		{"not a facet", table.ErrNotFilterable, dErrors.CodeBadRequest},
		{"page out of range", table.ErrPageOutOfRange, dErrors.CodeBadRequest},
		{"page size", table.ErrInvalidPageSize, dErrors.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tableError(tt.err)
			assert.True(t, dErrors.HasCode(err, tt.code))
			assert.True(t, errors.Is(err, tt.err))
		})
	}

	assert.NoError(t, tableError(nil))
	validation := dErrors.Invalid("too long", nil)
	assert.Same(t, validation, tableError(validation))
}
