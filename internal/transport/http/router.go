package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"milkadmin/internal/platform/health"
	"milkadmin/pkg/platform/middleware/admin"
	"milkadmin/pkg/platform/middleware/auth"
	"milkadmin/pkg/platform/middleware/metadata"
	"milkadmin/pkg/platform/middleware/request"
)

// defaultBodyLimit caps JSON bodies; the largest console payload is a blog post.
const defaultBodyLimit = 1 << 20

// RouteRegistrar mounts a group of routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// AdminRegistrar mounts routes that require an authenticated operator.
type AdminRegistrar interface {
	RegisterAdmin(r chi.Router)
}

// Deps collects everything the console router mounts.
type Deps struct {
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	RequestMetrics *request.Metrics
	Metadata       *metadata.Middleware
	Health         *health.Handler

	// Session serves /auth/* and the staff registration route.
	Session interface {
		RouteRegistrar
		AdminRegistrar
	}
	// Gate decides whether protected routes may run.
	Gate auth.SessionChecker
	// Console serves the entity views and writes under /admin.
	Console RouteRegistrar

	RequestTimeout time.Duration
	MetricsToken   string
	MaxBodyBytes   int64
}

// NewRouter wires the console endpoints behind the shared middleware stack.
// Health probes and auth routes are public; everything under /admin requires
// an authenticated session.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	bodyLimit := d.MaxBodyBytes
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	if d.Metadata != nil {
		r.Use(d.Metadata.Handler)
	}
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(d.RequestMetrics))
	r.Use(request.Timeout(timeout))
	r.Use(request.BodyLimit(bodyLimit))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.With(admin.RequireToken(admin.MetricsTokenHeader, d.MetricsToken, logger)).
			Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		if d.Session != nil {
			d.Session.Register(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(d.Gate, logger))
			if d.Session != nil {
				d.Session.RegisterAdmin(r)
			}
			if d.Console != nil {
				d.Console.Register(r)
			}
		})
	})

	return r
}
