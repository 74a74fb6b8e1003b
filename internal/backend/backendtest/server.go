// Package backendtest is an in-process stand-in for the shop REST backend.
// It issues HS256 access tokens, rotates nothing, serves paged collections
// and answers errors in the backend's {status,title,errors} shape.
package backendtest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// BasePath prefixes every backend route.
const BasePath = "/api/v1"

// Seeded operator credentials.
const (
	Username = "alice"
	Email    = "alice@milkshop.vn"
	Password = "Secret123"
	UserID   = int64(7)
)

const defaultSigningKey = "backendtest-signing-key"

type account struct {
	profile      map[string]any
	username     string
	email        string
	phone        string
	passwordHash string
}

type failure struct {
	status int
	body   any
}

// Backend holds the fake shop state. All methods are safe for concurrent use.
type Backend struct {
	mu          sync.Mutex
	key         []byte
	accessTTL   time.Duration
	now         func() time.Time
	latency     time.Duration
	logger      *slog.Logger
	accounts    map[int64]*account
	nextUserID  int64
	refresh     map[string]int64
	collections map[string]*collection
	members     map[int64][]int64
	failures    map[string]failure
	calls       map[string]int

	router chi.Router
	// URL is the base URL including BasePath once Start has run.
	URL string
}

type Option func(*Backend)

// WithAccessTTL sets the lifetime of issued access tokens. Default 15m.
func WithAccessTTL(d time.Duration) Option {
	return func(b *Backend) {
		b.accessTTL = d
	}
}

// WithSigningKey sets the HS256 key.
func WithSigningKey(key string) Option {
	return func(b *Backend) {
		if key != "" {
			b.key = []byte(key)
		}
	}
}

// WithClock sets the clock used to stamp and verify tokens.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) {
		b.latency = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// New builds a seeded backend. Serve it with Handler or Start.
func New(opts ...Option) *Backend {
	b := &Backend{
		key:       []byte(defaultSigningKey),
		accessTTL: 15 * time.Minute,
		now:       time.Now,
		logger:    slog.Default(),
		refresh:   make(map[string]int64),
		failures:  make(map[string]failure),
		calls:     make(map[string]int),
		members:   make(map[int64][]int64),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.seed()
	b.router = b.routes()
	return b
}

// Start serves a new backend on an httptest server closed at test cleanup.
func Start(tb testing.TB, opts ...Option) *Backend {
	tb.Helper()
	b := New(opts...)
	srv := httptest.NewServer(b.Handler())
	tb.Cleanup(srv.Close)
	b.URL = srv.URL + BasePath
	return b
}

func (b *Backend) Handler() http.Handler {
	return b.router
}

// Fail makes every request to method+path answer status with body until
// ClearFailures. path is relative to BasePath, without query.
func (b *Backend) Fail(method, path string, status int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[routeKey(method, path)] = failure{status: status, body: body}
}

func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]failure)
}

// Calls returns how many requests reached method+path.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[routeKey(method, path)]
}

// RevokeRefreshTokens makes every outstanding refresh token unusable.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = make(map[string]int64)
}

// Len reports how many rows a collection holds.
func (b *Backend) Len(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.collections[name]; ok {
		return len(c.rows)
	}
	return 0
}

// Row returns a copy of the row with the given id, or nil.
func (b *Backend) Row(name string, id int64) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		return nil
	}
	if i := c.index(id); i >= 0 {
		return clone(c.rows[i])
	}
	return nil
}

// IssueAccessToken mints a token for userID with the configured TTL.
func (b *Backend) IssueAccessToken(userID int64) (string, error) {
	now := b.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(b.accessTTL)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.key)
}

func routeKey(method, path string) string {
	return method + " " + strings.Trim(path, "/")
}

func (b *Backend) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(b.instrument)
	r.Route(BasePath, func(r chi.Router) {
		r.Post("/auth/user/login", b.handleLogin)
		r.Post("/auth/refresh_token", b.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(b.requireBearer)
			r.Get("/auth/user/info", b.handleUserInfo)
			r.Post("/auth/change-password", b.handleChangePassword)
			r.Post("/auth/register/staff", b.handleRegisterStaff)

			b.crud(r, "product", "/product", "/product/update", "/product/delete/{id}")
			b.crud(r, "brand", "/brand", "/brand/update", "/brand/delete/{id}")
			b.crud(r, "categories", "/categories", "/categories", "/categories/{id}")
			b.crud(r, "blogs", "/blogs", "/blogs", "/blogs/{id}")
			b.crud(r, "vouchers", "/vouchers", "/vouchers", "/vouchers/{id}")
			r.Get("/vouchers/manage", b.handleList("vouchers"))
			r.Get("/vouchers/member", b.handleMemberVouchers)
			r.Post("/vouchers/member", b.handleAssignVoucher)

			r.Get("/orders", b.handleList("orders"))
			r.Get("/orders/search", b.handleOrderSearch)
			r.Get("/orders/order/{id}", b.handleOrderDetail)
			r.Put("/orders", b.handleAdvanceOrder)

			r.Get("/users", b.handleList("users"))
			r.Get("/reports", b.handleList("reports"))
			r.Get("/suppliers", b.handleList("suppliers"))
			r.Get("/stock_transactions", b.handleList("stock_transactions"))
			r.Post("/stock_transactions", b.handleImportStock)
		})
	})
	return r
}

func (b *Backend) crud(r chi.Router, name, list, update, del string) {
	r.Get(list, b.handleList(name))
	r.Post(list, b.handleCreate(name))
	r.Put(update, b.handleUpdate(name))
	r.Delete(del, b.handleDelete(name))
}

func (b *Backend) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, BasePath)
		key := routeKey(r.Method, path)

		b.mu.Lock()
		b.calls[key]++
		f, failing := b.failures[key]
		latency := b.latency
		b.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeJSON(w, f.status, f.body)
			return
		}
		b.logger.Debug("backend request", "method", r.Method, "path", path)
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return b.key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now))
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), id)))
	})
}

// Problem is the backend's error body.
type Problem struct {
	Status int               `json:"status"`
	Title  string            `json:"title,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title string, fields map[string]string) {
	writeJSON(w, status, Problem{Status: status, Title: title, Errors: fields})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
