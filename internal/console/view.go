package console

import (
	"context"
	"errors"
	"log/slog"

	"milkadmin/internal/backend"
	"milkadmin/internal/catalog"
	"milkadmin/internal/platform/metrics"
	"milkadmin/internal/platform/tracer"
	"milkadmin/internal/table"
	dErrors "milkadmin/pkg/domain-errors"
	"milkadmin/pkg/requestcontext"
)

// View is one entity table as the console handlers drive it. Operations that
// move between pages fetch from the backend; the rest act on the loaded page.
type View interface {
	Name() string
	// Render returns the current state, loading page 0 on first use.
	Render(ctx context.Context) (table.Snapshot, error)
	GoToPage(ctx context.Context, index int) error
	SetPageSize(ctx context.Context, size int) error
	Refresh(ctx context.Context) error
	Search(value string) error
	SetFacet(key string, values []string) error
	ClearFacets()
	ToggleSort(key string) (*table.SortState, error)
	Select(keys []string, selected bool)
	SelectAllVisible(selected bool)
}

// fetchFunc loads one backend page for a view.
type fetchFunc[T any] func(ctx context.Context, q backend.PageQuery) (*backend.Page[T], error)

// entityView binds a table view to the catalog fetch for its entity.
// Fetches run outside the table's lock; stale answers are dropped by the
// table's generation check.
type entityView[T any] struct {
	name    string
	table   *table.View[T]
	fetch   fetchFunc[T]
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

func newEntityView[T any](name string, def catalog.TableDef[T], fetch fetchFunc[T], deps viewDeps) (*entityView[T], error) {
	tv, err := table.NewView(def.Columns, def.Config)
	if err != nil {
		return nil, err
	}
	return &entityView[T]{
		name:    name,
		table:   tv,
		fetch:   fetch,
		logger:  deps.logger,
		metrics: deps.metrics,
		tracer:  deps.tracer,
	}, nil
}

func (v *entityView[T]) Name() string {
	return v.name
}

func (v *entityView[T]) Render(ctx context.Context) (table.Snapshot, error) {
	if !v.table.Loaded() {
		req, err := v.table.GoToPage(0)
		if err != nil {
			return table.Snapshot{}, tableError(err)
		}
		if err := v.load(ctx, req); err != nil {
			return table.Snapshot{}, err
		}
	}
	return v.table.Render(), nil
}

func (v *entityView[T]) GoToPage(ctx context.Context, index int) error {
	req, err := v.table.GoToPage(index)
	if err != nil {
		return tableError(err)
	}
	return v.load(ctx, req)
}

func (v *entityView[T]) SetPageSize(ctx context.Context, size int) error {
	req, err := v.table.SetPageSize(size)
	if err != nil {
		return tableError(err)
	}
	return v.load(ctx, req)
}

func (v *entityView[T]) Refresh(ctx context.Context) error {
	return v.load(ctx, v.table.Refresh())
}

func (v *entityView[T]) Search(value string) error {
	return tableError(v.table.Search(value))
}

func (v *entityView[T]) SetFacet(key string, values []string) error {
	return tableError(v.table.SetFacet(key, values))
}

func (v *entityView[T]) ClearFacets() {
	v.table.ResetFilters()
}

func (v *entityView[T]) ToggleSort(key string) (*table.SortState, error) {
	state, err := v.table.ToggleSort(key)
	return state, tableError(err)
}

func (v *entityView[T]) Select(keys []string, selected bool) {
	for _, k := range keys {
		v.table.Select(k, selected)
	}
}

func (v *entityView[T]) SelectAllVisible(selected bool) {
	v.table.SelectAllVisible(selected)
}

// load fetches req and hands the page to the table. A failed fetch leaves the
// previous rows in place.
func (v *entityView[T]) load(ctx context.Context, req table.PageRequest) (err error) {
	ctx, span := v.tracer.Start(ctx, tracer.SpanViewFetch,
		tracer.String(tracer.AttrEntity, v.name),
		tracer.Int(tracer.AttrPageIndex, req.Index),
		tracer.Int(tracer.AttrPageSize, req.Size),
		tracer.Int(tracer.AttrGeneration, int(req.Generation)),
	)
	defer func() { span.End(err) }()

	page, err := v.fetch(ctx, backend.PageQuery{PageNo: req.Index, PageSize: req.Size})
	if err != nil {
		v.metrics.IncViewFetch(v.name, "error")
		v.logger.WarnContext(ctx, "view fetch failed",
			"entity", v.name,
			"page_index", req.Index,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return err
	}

	accepted := v.table.SetRows(req, table.Page[T]{
		Rows:          page.Content,
		TotalPages:    page.TotalPages,
		TotalElements: page.TotalElements,
	})
	if !accepted {
		v.metrics.IncViewFetch(v.name, "stale")
		v.metrics.IncStaleResponse(v.name)
		span.AddEvent(tracer.EventStaleDiscarded)
		v.logger.DebugContext(ctx, "stale page discarded",
			"entity", v.name,
			"generation", req.Generation,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil
	}
	v.metrics.IncViewFetch(v.name, "ok")

	// Each reload targets a lower index, so this ends at page 0 at the latest.
	if last, gone := v.table.PastEnd(); gone {
		v.logger.DebugContext(ctx, "page no longer exists; loading last page",
			"entity", v.name,
			"page_index", req.Index,
			"last_index", last.Index,
			"request_id", requestcontext.RequestID(ctx),
		)
		return v.load(ctx, last)
	}
	return nil
}

// tableError maps engine errors onto console error codes.
func tableError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, table.ErrUnknownColumn):
		return dErrors.Wrap(err, dErrors.CodeNotFound, err.Error())
	case errors.Is(err, table.ErrNotSortable),
		errors.Is(err, table.ErrNotFilterable),
		errors.Is(err, table.ErrNoSearchColumn),
		errors.Is(err, table.ErrPageOutOfRange),
		errors.Is(err, table.ErrInvalidPageSize):
		return dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error())
	default:
		return err
	}
}
