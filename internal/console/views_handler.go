package console

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"milkadmin/internal/catalog"
	"milkadmin/pkg/platform/httputil"
	"milkadmin/pkg/requestcontext"
	"milkadmin/pkg/validation"
)

type pageRequest struct {
	PageIndex *int `json:"pageIndex"`
	PageSize  *int `json:"pageSize"`
}

type searchRequest struct {
	Value string `json:"value"`
}

func (r *searchRequest) Validate() error {
	return validation.CheckStringLength("value", r.Value, validation.MaxSearchLength)
}

type facetRequest struct {
	Values []string `json:"values"`
}

func (r *facetRequest) Validate() error {
	return validation.CheckSliceCount("values", len(r.Values), validation.MaxFacetValues)
}

type selectionRequest struct {
	Keys     []string `json:"keys"`
	Selected bool     `json:"selected"`
}

type selectAllRequest struct {
	Selected bool `json:"selected"`
}

// view resolves {entity}; on failure the error response is already written.
func (h *Handler) view(w http.ResponseWriter, r *http.Request) (View, bool) {
	v, err := h.registry.View(chi.URLParam(r, "entity"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return v, true
}

// render answers with the view's current snapshot.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, v View) {
	ctx := r.Context()
	snap, err := v.Render(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) HandleRender(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	h.render(w, r, v)
}

// HandlePage changes page size (back to page 0) or moves to pageIndex.
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[pageRequest](w, r, h.logger)
	if !ok {
		return
	}
	ctx := r.Context()
	var err error
	switch {
	case req.PageSize != nil:
		err = v.SetPageSize(ctx, *req.PageSize)
	case req.PageIndex != nil:
		err = v.GoToPage(ctx, *req.PageIndex)
	default:
		err = v.Refresh(ctx)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "page change failed",
			"entity", v.Name(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		writeError(w, err)
		return
	}
	h.render(w, r, v)
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[searchRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := v.Search(req.Value); err != nil {
		writeError(w, err)
		return
	}
	h.render(w, r, v)
}

func (h *Handler) HandleSetFacet(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[facetRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := v.SetFacet(chi.URLParam(r, "column"), req.Values); err != nil {
		writeError(w, err)
		return
	}
	h.render(w, r, v)
}

func (h *Handler) HandleClearFacets(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	v.ClearFacets()
	h.render(w, r, v)
}

func (h *Handler) HandleSort(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	if _, err := v.ToggleSort(chi.URLParam(r, "column")); err != nil {
		writeError(w, err)
		return
	}
	h.render(w, r, v)
}

func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[selectionRequest](w, r, h.logger)
	if !ok {
		return
	}
	v.Select(req.Keys, req.Selected)
	h.render(w, r, v)
}

func (h *Handler) HandleSelectAll(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[selectAllRequest](w, r, h.logger)
	if !ok {
		return
	}
	v.SelectAllVisible(req.Selected)
	h.render(w, r, v)
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	if err := v.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.render(w, r, v)
}

// HandleOrderCriteria applies server-side status and date filters to the
// orders view and loads its first page.
func (h *Handler) HandleOrderCriteria(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[catalog.OrderCriteria](w, r, h.logger)
	if !ok {
		return
	}
	orders := h.registry.Orders()
	if err := orders.SetCriteria(ctx, *req); err != nil {
		h.logger.WarnContext(ctx, "order criteria rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		writeError(w, err)
		return
	}
	snap, err := orders.Render(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"criteria": orders.Criteria(),
		"view":     snap,
	})
}
