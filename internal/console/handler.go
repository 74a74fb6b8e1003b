// Package console is the operator-facing HTTP surface: entity tables driven
// through the view registry, catalog writes and the dashboard overview.
package console

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"milkadmin/internal/backend"
	"milkadmin/internal/catalog"
	"milkadmin/internal/platform/metrics"
	"milkadmin/internal/platform/tracer"
	"milkadmin/internal/table"
	dErrors "milkadmin/pkg/domain-errors"
	"milkadmin/pkg/platform/httputil"
	"milkadmin/pkg/requestcontext"
	"milkadmin/pkg/validation"
)

// Writer is the part of the catalog client the write routes call.
type Writer interface {
	CreateProduct(ctx context.Context, in *catalog.ProductInput) error
	UpdateProduct(ctx context.Context, in *catalog.ProductInput) error
	DeleteProduct(ctx context.Context, id int64) error
	CreateBrand(ctx context.Context, in *catalog.BrandInput) error
	UpdateBrand(ctx context.Context, in *catalog.BrandInput) error
	DeleteBrand(ctx context.Context, id int64) error
	CreateCategory(ctx context.Context, in *catalog.CategoryInput) error
	UpdateCategory(ctx context.Context, in *catalog.CategoryInput) error
	DeleteCategory(ctx context.Context, id int64) error
	CreateBlog(ctx context.Context, in *catalog.BlogInput) error
	UpdateBlog(ctx context.Context, in *catalog.BlogInput) error
	DeleteBlog(ctx context.Context, id int64) error
	CreateVoucher(ctx context.Context, in *catalog.VoucherInput) error
	UpdateVoucher(ctx context.Context, in *catalog.VoucherInput) error
	DeleteVoucher(ctx context.Context, id int64) error
	MemberVouchers(ctx context.Context, userID int64) ([]catalog.Voucher, error)
	AssignVoucher(ctx context.Context, userID, voucherID int64) error
	GetOrder(ctx context.Context, id int64) (*catalog.Order, error)
	AdvanceOrder(ctx context.Context, id int64) error
	ImportStock(ctx context.Context, in *catalog.StockImportInput) error
}

// CatalogAPI is everything the console needs from the catalog client.
type CatalogAPI interface {
	Catalog
	Writer
}

// Notifications exposes recent backend failures.
type Notifications interface {
	Recent(n int) []backend.Notification
}

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

type Handler struct {
	registry      *Registry
	catalog       CatalogAPI
	notifications Notifications
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        tracer.Tracer
}

type HandlerOption func(*Handler)

func WithHandlerMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

func WithHandlerTracer(t tracer.Tracer) HandlerOption {
	return func(h *Handler) {
		h.tracer = t
	}
}

func NewHandler(registry *Registry, cat CatalogAPI, notifications Notifications, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry:      registry,
		catalog:       cat,
		notifications: notifications,
		logger:        logger,
		tracer:        tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Register mounts the console routes. They are expected to sit behind
// RequireSession.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/overview", h.HandleOverview)
	r.Get("/admin/notifications", h.HandleNotifications)

	r.Get("/admin/views", h.HandleListViews)
	r.Post("/admin/views/orders/criteria", h.HandleOrderCriteria)
	r.Route("/admin/views/{entity}", func(r chi.Router) {
		r.Get("/", h.HandleRender)
		r.Post("/page", h.HandlePage)
		r.Post("/search", h.HandleSearch)
		r.Put("/facets/{column}", h.HandleSetFacet)
		r.Delete("/facets", h.HandleClearFacets)
		r.Post("/sort/{column}", h.HandleSort)
		r.Post("/selection", h.HandleSelect)
		r.Post("/selection/all", h.HandleSelectAll)
		r.Post("/refresh", h.HandleRefresh)
	})

	r.Post("/admin/products", write(h, ViewProducts, opCreate, h.catalog.CreateProduct))
	r.Put("/admin/products", write(h, ViewProducts, opUpdate, h.catalog.UpdateProduct))
	r.Delete("/admin/products/{id}", remove(h, ViewProducts, h.catalog.DeleteProduct))

	r.Post("/admin/brands", write(h, ViewBrands, opCreate, h.catalog.CreateBrand))
	r.Put("/admin/brands", write(h, ViewBrands, opUpdate, h.catalog.UpdateBrand))
	r.Delete("/admin/brands/{id}", remove(h, ViewBrands, h.catalog.DeleteBrand))

	r.Post("/admin/categories", write(h, ViewCategories, opCreate, h.catalog.CreateCategory))
	r.Put("/admin/categories", write(h, ViewCategories, opUpdate, h.catalog.UpdateCategory))
	r.Delete("/admin/categories/{id}", remove(h, ViewCategories, h.catalog.DeleteCategory))

	r.Post("/admin/blogs", write(h, ViewBlogs, opCreate, withAuthor(h.catalog.CreateBlog)))
	r.Put("/admin/blogs", write(h, ViewBlogs, opUpdate, withAuthor(h.catalog.UpdateBlog)))
	r.Delete("/admin/blogs/{id}", remove(h, ViewBlogs, h.catalog.DeleteBlog))

	r.Post("/admin/vouchers", write(h, ViewVouchers, opCreate, h.catalog.CreateVoucher))
	r.Put("/admin/vouchers", write(h, ViewVouchers, opUpdate, h.catalog.UpdateVoucher))
	r.Delete("/admin/vouchers/{id}", remove(h, ViewVouchers, h.catalog.DeleteVoucher))
	r.Get("/admin/vouchers/member/{userId}", h.HandleMemberVouchers)
	r.Post("/admin/vouchers/member", h.HandleAssignVoucher)

	r.Post("/admin/stock_transactions", write(h, ViewStockTransactions, opCreate, h.catalog.ImportStock))

	r.Get("/admin/orders/{id}", h.HandleOrderDetail)
	r.Put("/admin/orders/{id}/advance", h.HandleAdvanceOrder)
}

// writeResponse answers a successful write. View is the re-fetched page of
// the entity's view, omitted when that fetch failed.
type writeResponse struct {
	Entity string          `json:"entity"`
	Op     string          `json:"op"`
	View   *table.Snapshot `json:"view,omitempty"`
}

// write decodes a T payload, performs call and re-fetches the entity's view.
func write[T any](h *Handler, entity, op string, call func(context.Context, *T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		in, ok := httputil.DecodeJSON[T](w, r, h.logger)
		if !ok {
			return
		}
		if err := call(ctx, in); err != nil {
			h.metrics.IncMutation(entity, op, "error")
			h.logger.WarnContext(ctx, "catalog write failed",
				"entity", entity,
				"op", op,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			writeError(w, err)
			return
		}
		h.metrics.IncMutation(entity, op, "ok")
		status := http.StatusOK
		if op == opCreate {
			status = http.StatusCreated
		}
		httputil.WriteJSON(w, status, writeResponse{Entity: entity, Op: op, View: h.refetch(ctx, entity)})
	}
}

func remove(h *Handler, entity string, call func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := call(ctx, id); err != nil {
			h.metrics.IncMutation(entity, opDelete, "error")
			h.logger.WarnContext(ctx, "catalog delete failed",
				"entity", entity,
				"id", id,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			writeError(w, err)
			return
		}
		h.metrics.IncMutation(entity, opDelete, "ok")
		h.logger.InfoContext(ctx, "catalog row deleted",
			"entity", entity,
			"id", id,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteJSON(w, http.StatusOK, writeResponse{Entity: entity, Op: opDelete, View: h.refetch(ctx, entity)})
	}
}

// withAuthor fills a blog's author with the logged-in operator when omitted.
func withAuthor(call func(context.Context, *catalog.BlogInput) error) func(context.Context, *catalog.BlogInput) error {
	return func(ctx context.Context, in *catalog.BlogInput) error {
		if in.UserID == 0 {
			if id, ok := requestcontext.OperatorID(ctx); ok {
				in.UserID = id
			}
		}
		return call(ctx, in)
	}
}

// refetch reloads the current page of the named view after a write. Other
// views are left alone.
func (h *Handler) refetch(ctx context.Context, entity string) *table.Snapshot {
	v, err := h.registry.View(entity)
	if err != nil {
		return nil
	}
	if err := v.Refresh(ctx); err != nil {
		return nil
	}
	snap, err := v.Render(ctx)
	if err != nil {
		return nil
	}
	return &snap
}

func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ov, err := LoadOverview(ctx, h.catalog, h.tracer)
	if err != nil {
		h.logger.WarnContext(ctx, "overview failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ov)
}

func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	items := h.notifications.Recent(limit)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"total":         len(items),
	})
}

func (h *Handler) HandleListViews(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"views": h.registry.Names()})
}

func (h *Handler) HandleMemberVouchers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}
	vouchers, err := h.catalog.MemberVouchers(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"userId": userID, "vouchers": vouchers})
}

type assignVoucherRequest struct {
	UserID    int64 `json:"userId" validate:"gt=0"`
	VoucherID int64 `json:"voucherId" validate:"gt=0"`
}

func (r *assignVoucherRequest) Validate() error {
	return validation.Validate(r)
}

func (h *Handler) HandleAssignVoucher(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[assignVoucherRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.catalog.AssignVoucher(ctx, req.UserID, req.VoucherID); err != nil {
		h.metrics.IncMutation("member_vouchers", opCreate, "error")
		writeError(w, err)
		return
	}
	h.metrics.IncMutation("member_vouchers", opCreate, "ok")
	h.logger.InfoContext(ctx, "voucher assigned",
		"user_id", req.UserID,
		"voucher_id", req.VoucherID,
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := h.catalog.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

// HandleAdvanceOrder moves an order to its next status and answers with the
// order as the backend now reports it.
func (h *Handler) HandleAdvanceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.catalog.AdvanceOrder(ctx, id); err != nil {
		h.metrics.IncMutation(ViewOrders, opUpdate, "error")
		h.logger.WarnContext(ctx, "order advance failed",
			"order_id", id,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		writeError(w, err)
		return
	}
	h.metrics.IncMutation(ViewOrders, opUpdate, "ok")
	h.refetch(ctx, ViewOrders)

	order, err := h.catalog.GetOrder(ctx, id)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		msg := name + " must be a positive integer"
		return 0, dErrors.Invalid(msg, map[string][]string{name: {msg}})
	}
	return id, nil
}

// writeError answers with the console error body, converting backend
// failures first.
func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, backend.ToDomain(err))
}
