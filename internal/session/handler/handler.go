// Package handler exposes the session gate over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"milkadmin/internal/backend"
	"milkadmin/internal/platform/metrics"
	"milkadmin/internal/session"
	"milkadmin/internal/session/models"
	dErrors "milkadmin/pkg/domain-errors"
	"milkadmin/pkg/platform/httputil"
	"milkadmin/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the session gate as the handlers use it.
type Service interface {
	Login(ctx context.Context, identifier, password string) (models.Snapshot, error)
	Logout(ctx context.Context)
	Snapshot() models.Snapshot
	Profile(ctx context.Context) (*models.Profile, error)
	ChangePassword(ctx context.Context, req *models.ChangePasswordRequest) error
	RegisterStaff(ctx context.Context, req *models.StaffRegistration) error
}

type Handler struct {
	session Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter *loginLimiter
}

type Option func(*Handler)

// WithLoginRate throttles POST /auth/login per client IP. perMinute <= 0 disables it.
func WithLoginRate(perMinute, burst int) Option {
	return func(h *Handler) {
		h.limiter = newLoginLimiter(perMinute, burst, time.Now)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{session: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Register mounts the public auth routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/me", h.HandleMe)
	r.Post("/auth/change-password", h.HandleChangePassword)
}

// RegisterAdmin mounts routes that sit behind RequireSession.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/staff", h.HandleRegisterStaff)
}

// meResponse is the body of /auth/me and of a successful login.
type meResponse struct {
	models.Snapshot
	Profile *models.Profile `json:"profile,omitempty"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if !h.limiter.Allow(requestcontext.ClientIP(ctx)) {
		h.metrics.IncLoginThrottled()
		h.logger.WarnContext(ctx, "login throttled",
			"request_id", requestID,
			"client_ip", requestcontext.ClientIP(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "Too many login attempts. Try again in a minute."))
		return
	}

	req, ok := httputil.DecodeJSON[models.LoginRequest](w, r, h.logger)
	if !ok {
		return
	}
	snap, err := h.session.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login rejected",
			"error", err,
			"request_id", requestID,
		)
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, meResponse{Snapshot: snap})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := h.session.Snapshot()
	resp := meResponse{Snapshot: snap}
	if snap.Authenticated() {
		profile, err := h.session.Profile(ctx)
		if err != nil {
			h.logger.WarnContext(ctx, "profile lookup failed",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		resp.Profile = profile
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[models.ChangePasswordRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.session.ChangePassword(ctx, req); err != nil {
		h.logger.WarnContext(ctx, "change password failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRegisterStaff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeJSON[models.StaffRegistration](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.session.RegisterStaff(ctx, req); err != nil {
		h.logger.WarnContext(ctx, "staff registration failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// writeError maps gate and backend failures to the console's error body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var authErr *session.AuthenticationError
	if errors.As(err, &authErr) {
		if backend.IsKind(authErr.Err, backend.KindUnavailable) {
			httputil.WriteError(w, backend.ToDomain(authErr.Err))
			return
		}
		httputil.WriteError(w, &dErrors.Error{Code: dErrors.CodeUnauthorized, Message: authErr.Reason, Err: err})
		return
	}
	httputil.WriteError(w, backend.ToDomain(err))
}
