package console

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"milkadmin/internal/backend"
	"milkadmin/internal/catalog"
	"milkadmin/internal/platform/metrics"
	"milkadmin/internal/platform/tracer"
	dErrors "milkadmin/pkg/domain-errors"
)

// View names, also the {entity} route segment.
const (
	ViewProducts          = "products"
	ViewBrands            = "brands"
	ViewCategories        = "categories"
	ViewBlogs             = "blogs"
	ViewVouchers          = "vouchers"
	ViewManagedVouchers   = "managed_vouchers"
	ViewOrders            = "orders"
	ViewUsers             = "users"
	ViewReports           = "reports"
	ViewSuppliers         = "suppliers"
	ViewStockTransactions = "stock_transactions"
)

// Catalog is the part of the catalog client the views read from.
type Catalog interface {
	ListProducts(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Product], error)
	ListBrands(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Brand], error)
	ListCategories(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Category], error)
	ListBlogs(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Blog], error)
	ListVouchers(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Voucher], error)
	ManageVouchers(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Voucher], error)
	ListOrders(ctx context.Context, q backend.PageQuery, criteria catalog.OrderCriteria) (*backend.Page[catalog.Order], error)
	ListUsers(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.User], error)
	ListReports(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Report], error)
	ListSuppliers(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Supplier], error)
	ListStockTransactions(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.StockTransaction], error)
}

type viewDeps struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// Registry holds one view per entity for the lifetime of the console.
type Registry struct {
	views  map[string]View
	orders *OrderView
}

type Option func(*viewDeps)

func WithLogger(logger *slog.Logger) Option {
	return func(d *viewDeps) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *viewDeps) {
		d.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(d *viewDeps) {
		d.tracer = t
	}
}

// NewRegistry builds every entity view with pageSize rows per page.
func NewRegistry(cat Catalog, pageSize int, opts ...Option) (*Registry, error) {
	deps := viewDeps{logger: slog.Default(), tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(&deps)
	}

	reg := &Registry{views: make(map[string]View)}
	add := func(v View, err error) error {
		if err != nil {
			return err
		}
		reg.views[v.Name()] = v
		return nil
	}

	orders, err := newOrderView(cat, pageSize, deps)
	if err != nil {
		return nil, fmt.Errorf("orders view: %w", err)
	}
	reg.orders = orders

	for _, err := range []error{
		add(newEntityView(ViewProducts, catalog.ProductTable(pageSize), cat.ListProducts, deps)),
		add(newEntityView(ViewBrands, catalog.BrandTable(pageSize), cat.ListBrands, deps)),
		add(newEntityView(ViewCategories, catalog.CategoryTable(pageSize), cat.ListCategories, deps)),
		add(newEntityView(ViewBlogs, catalog.BlogTable(pageSize), cat.ListBlogs, deps)),
		add(newEntityView(ViewVouchers, catalog.VoucherTable(pageSize), cat.ListVouchers, deps)),
		add(newEntityView(ViewManagedVouchers, catalog.VoucherTable(pageSize), cat.ManageVouchers, deps)),
		add(orders, nil),
		add(newEntityView(ViewUsers, catalog.UserTable(pageSize), cat.ListUsers, deps)),
		add(newEntityView(ViewReports, catalog.ReportTable(pageSize), cat.ListReports, deps)),
		add(newEntityView(ViewSuppliers, catalog.SupplierTable(pageSize), cat.ListSuppliers, deps)),
		add(newEntityView(ViewStockTransactions, catalog.StockTransactionTable(pageSize), cat.ListStockTransactions, deps)),
	} {
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// View returns the named view or a not_found error.
func (r *Registry) View(name string) (View, error) {
	v, ok := r.views[name]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown view %q", name))
	}
	return v, nil
}

func (r *Registry) Orders() *OrderView {
	return r.orders
}

// Names lists the registered views in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.views))
	for name := range r.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OrderView adds the server-side status and date criteria to the orders table.
type OrderView struct {
	*entityView[catalog.Order]

	mu       sync.RWMutex
	criteria catalog.OrderCriteria
}

func newOrderView(cat Catalog, pageSize int, deps viewDeps) (*OrderView, error) {
	ov := &OrderView{}
	fetch := func(ctx context.Context, q backend.PageQuery) (*backend.Page[catalog.Order], error) {
		return cat.ListOrders(ctx, q, ov.Criteria())
	}
	ev, err := newEntityView(ViewOrders, catalog.OrderTable(pageSize), fetch, deps)
	if err != nil {
		return nil, err
	}
	ov.entityView = ev
	return ov, nil
}

func (v *OrderView) Criteria() catalog.OrderCriteria {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.criteria
}

// SetCriteria validates and stores the criteria, then loads page 0 under them.
func (v *OrderView) SetCriteria(ctx context.Context, criteria catalog.OrderCriteria) error {
	criteria.Normalize()
	if err := criteria.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	v.criteria = criteria
	v.mu.Unlock()
	return v.GoToPage(ctx, 0)
}
