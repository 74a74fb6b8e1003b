// Package session is the operator's session gate: it owns the token pair,
// refreshes the access token when it lapses and decides whether console
// routes are reachable.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"milkadmin/internal/backend"
	"milkadmin/internal/platform/metrics"
	"milkadmin/internal/platform/tracer"
	"milkadmin/internal/session/models"
	"milkadmin/internal/session/store"
	dErrors "milkadmin/pkg/domain-errors"
	"milkadmin/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks TokenStore,AuthAPI

// TokenStore persists the token pair across restarts.
// Error Contract: Load returns store.ErrNotFound when nothing is persisted.
type TokenStore interface {
	Load(ctx context.Context) (*store.Record, error)
	Save(ctx context.Context, rec *store.Record) error
	Clear(ctx context.Context) error
}

// AuthAPI is the backend's auth surface.
type AuthAPI interface {
	Login(ctx context.Context, identifier, password string) (*models.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Tokens, error)
	UserInfo(ctx context.Context, accessToken string) (*models.Profile, error)
	ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error
	RegisterStaff(ctx context.Context, accessToken string, req models.StaffRegistration) error
}

// ErrNotAuthenticated is returned to callers needing a token when the gate
// has none or could not refresh it.
var ErrNotAuthenticated = dErrors.New(dErrors.CodeUnauthorized, "Your session has expired. Please log in again.")

const loginFailedReason = "Login failed. Please check your credentials."

// AuthenticationError is returned by Login. Reason is safe to show the operator.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	return e.Reason
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Service is the session gate. It is safe for concurrent use.
type Service struct {
	auth    AuthAPI
	store   TokenStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	now     func() time.Time
	refresh singleflight.Group

	mu           sync.RWMutex
	state        models.State
	accessToken  string
	refreshToken string
	recovered    string // access token obtained after a backend 401
	userID       *int64
	loggedInAt   *time.Time
	device       string
}

var (
	_ backend.TokenSource         = (*Service)(nil)
	_ backend.UnauthorizedHandler = (*Service)(nil)
)

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithClock sets the clock used to judge token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(auth AuthAPI, tokens TokenStore, opts ...Option) *Service {
	s := &Service{
		auth:   auth,
		store:  tokens,
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
		now:    time.Now,
		state:  models.StateUnknown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize restores a persisted session, refreshing the access token when
// it has lapsed. Not being logged in is an outcome, not an error; the error
// return only reports a token store that could not be read.
func (s *Service) Initialize(ctx context.Context) error {
	rec, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.becomeUnauthenticated(ctx, false)
		return nil
	case errors.Is(err, store.ErrCorrupt):
		s.logger.WarnContext(ctx, "discarding unreadable persisted session", "error", err)
		s.becomeUnauthenticated(ctx, true)
		return nil
	case err != nil:
		s.becomeUnauthenticated(ctx, false)
		return dErrors.Wrap(err, dErrors.CodeInternal, "load persisted session")
	}
	if !rec.LoggedIn {
		s.becomeUnauthenticated(ctx, true)
		return nil
	}

	access := rec.AccessToken
	refresh := rec.RefreshToken
	if tokenExpired(access, s.now()) {
		// doRefresh rejects an empty refresh token.
		tokens, err := s.doRefresh(ctx, refresh)
		if err != nil {
			s.logger.InfoContext(ctx, "persisted session could not be refreshed", "error", err)
			s.becomeUnauthenticated(ctx, true)
			return nil
		}
		access = tokens.AccessToken
		if tokens.RefreshToken != "" {
			refresh = tokens.RefreshToken
		}
	}

	userID := rec.UserID
	profile, err := s.auth.UserInfo(ctx, access)
	switch {
	case err == nil:
		userID = &profile.UserID
	case backend.IsKind(err, backend.KindAuth):
		s.logger.InfoContext(ctx, "persisted session rejected by backend", "error", err)
		s.becomeUnauthenticated(ctx, true)
		return nil
	default:
		s.logger.WarnContext(ctx, "profile unavailable during initialize", "error", err)
	}

	s.mu.Lock()
	s.state = models.StateAuthenticated
	s.accessToken = access
	s.refreshToken = refresh
	s.userID = userID
	s.loggedInAt = rec.LoggedInAt
	s.device = rec.Device
	persisted := s.recordLocked()
	s.mu.Unlock()

	s.persist(ctx, persisted)
	s.metrics.SetAuthenticated(true)
	s.logger.InfoContext(ctx, "session restored", "user_id", derefID(userID))
	return nil
}

// Login exchanges credentials for tokens. On failure nothing is persisted and
// the gate is UNAUTHENTICATED.
func (s *Service) Login(ctx context.Context, identifier, password string) (models.Snapshot, error) {
	req := models.LoginRequest{Identifier: identifier, Password: password}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return models.Snapshot{}, err
	}

	tokens, err := s.auth.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		s.metrics.IncLogin("failure")
		s.becomeUnauthenticated(ctx, false)
		s.logger.InfoContext(ctx, "login failed",
			"request_id", requestcontext.RequestID(ctx),
			"kind", backend.KindOf(err),
		)
		return models.Snapshot{}, &AuthenticationError{Reason: loginFailedReason, Err: err}
	}

	var userID *int64
	if profile, err := s.auth.UserInfo(ctx, tokens.AccessToken); err == nil {
		userID = &profile.UserID
	} else {
		s.logger.WarnContext(ctx, "profile unavailable after login", "error", err)
	}

	now := s.now()
	s.mu.Lock()
	s.state = models.StateAuthenticated
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.userID = userID
	s.loggedInAt = &now
	s.device = deviceLabel(requestcontext.UserAgent(ctx))
	persisted := s.recordLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, persisted)
	s.metrics.IncLogin("success")
	s.metrics.SetAuthenticated(true)
	s.logger.InfoContext(ctx, "operator logged in",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", derefID(userID),
		"device", snapshot.Device,
	)
	return snapshot, nil
}

// Logout always succeeds; store failures are only logged.
func (s *Service) Logout(ctx context.Context) {
	s.becomeUnauthenticated(ctx, true)
	s.logger.InfoContext(ctx, "operator logged out", "request_id", requestcontext.RequestID(ctx))
}

// Profile returns nil, nil when there is no live token or the backend cannot
// be reached. Other backend failures are returned.
func (s *Service) Profile(ctx context.Context) (*models.Profile, error) {
	s.mu.RLock()
	token := s.accessToken
	s.mu.RUnlock()
	if tokenExpired(token, s.now()) {
		return nil, nil
	}
	profile, err := s.auth.UserInfo(ctx, token)
	if err != nil {
		if backend.IsKind(err, backend.KindAuth) || backend.IsKind(err, backend.KindUnavailable) {
			s.logger.WarnContext(ctx, "profile unavailable", "request_id", requestcontext.RequestID(ctx), "error", err)
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

// ChangePassword changes the operator's password. Success ends the session so
// the operator logs in again with the new password.
func (s *Service) ChangePassword(ctx context.Context, req *models.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	token, err := s.AccessToken(ctx)
	if err != nil {
		return err
	}
	if err := s.auth.ChangePassword(ctx, token, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	s.becomeUnauthenticated(ctx, true)
	s.logger.InfoContext(ctx, "password changed; session ended", "request_id", requestcontext.RequestID(ctx))
	return nil
}

// RegisterStaff creates a staff account on the backend.
func (s *Service) RegisterStaff(ctx context.Context, req *models.StaffRegistration) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}
	token, err := s.AccessToken(ctx)
	if err != nil {
		return err
	}
	return s.auth.RegisterStaff(ctx, token, *req)
}

// AccessToken returns a live access token, refreshing it first when it has
// lapsed. Concurrent callers share one refresh. A failed refresh ends the
// session.
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	state, token := s.state, s.accessToken
	s.mu.RUnlock()
	if state != models.StateAuthenticated {
		return "", ErrNotAuthenticated
	}
	if !tokenExpired(token, s.now()) {
		return token, nil
	}
	return s.refreshShared(ctx, func(current string) bool {
		return tokenExpired(current, s.now())
	})
}

// Unauthorized handles a 401 from the backend for token. The first rejection
// of a token triggers one shared refresh; a rejection of the token that refresh
// produced, or a failed refresh, ends the session. Rejections of a token that
// has already been replaced are ignored.
func (s *Service) Unauthorized(ctx context.Context, token string) {
	s.mu.Lock()
	if s.state != models.StateAuthenticated || token != s.accessToken {
		s.mu.Unlock()
		return
	}
	repeated := token == s.recovered
	s.mu.Unlock()

	if repeated {
		s.logger.InfoContext(ctx, "refreshed access token rejected by backend; session ended")
		s.becomeUnauthenticated(ctx, true)
		return
	}
	fresh, err := s.refreshShared(ctx, func(current string) bool {
		return current == token
	})
	if err != nil {
		return
	}
	s.mu.Lock()
	if s.accessToken == fresh {
		s.recovered = fresh
	}
	s.mu.Unlock()
}

// refreshShared runs at most one refresh at a time. stale reports whether the
// access token current at flight start still needs replacing; another flight
// may have finished between the caller's check and Do.
func (s *Service) refreshShared(ctx context.Context, stale func(current string) bool) (string, error) {
	v, err, shared := s.refresh.Do("refresh", func() (any, error) {
		s.mu.RLock()
		state, current, refresh := s.state, s.accessToken, s.refreshToken
		s.mu.RUnlock()
		if state != models.StateAuthenticated {
			return "", ErrNotAuthenticated
		}
		if !stale(current) {
			return current, nil
		}
		// Detached so one caller's cancellation does not fail every waiter.
		tokens, err := s.doRefresh(context.WithoutCancel(ctx), refresh)
		if err != nil {
			s.logger.InfoContext(ctx, "access token refresh failed; session ended", "error", err)
			s.becomeUnauthenticated(ctx, true)
			return "", ErrNotAuthenticated
		}

		s.mu.Lock()
		if s.state != models.StateAuthenticated {
			s.mu.Unlock()
			return "", ErrNotAuthenticated
		}
		s.accessToken = tokens.AccessToken
		if tokens.RefreshToken != "" {
			s.refreshToken = tokens.RefreshToken
		}
		persisted := s.recordLocked()
		s.mu.Unlock()
		s.persist(ctx, persisted)
		return tokens.AccessToken, nil
	})
	if shared {
		_, span := s.tracer.Start(ctx, tracer.SpanTokenRefresh)
		span.AddEvent(tracer.EventRefreshShared)
		span.End(err)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Snapshot reports the gate's current state.
func (s *Service) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Service) doRefresh(ctx context.Context, refreshToken string) (*models.Tokens, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanTokenRefresh)
	if refreshToken == "" {
		s.metrics.IncRefresh("failure")
		span.End(ErrNotAuthenticated)
		return nil, ErrNotAuthenticated
	}
	tokens, err := s.auth.Refresh(ctx, refreshToken)
	if err == nil && tokens.AccessToken == "" {
		err = errors.New("refresh returned no access token")
	}
	span.End(err)
	if err != nil {
		s.metrics.IncRefresh("failure")
		return nil, err
	}
	s.metrics.IncRefresh("success")
	return tokens, nil
}

// becomeUnauthenticated drops in-memory credentials and, when clear is set,
// the persisted record too.
func (s *Service) becomeUnauthenticated(ctx context.Context, clear bool) {
	s.mu.Lock()
	s.state = models.StateUnauthenticated
	s.accessToken = ""
	s.refreshToken = ""
	s.recovered = ""
	s.userID = nil
	s.loggedInAt = nil
	s.device = ""
	s.mu.Unlock()

	s.metrics.SetAuthenticated(false)
	if !clear {
		return
	}
	if err := s.store.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear persisted session", "error", err)
	}
}

func (s *Service) persist(ctx context.Context, rec *store.Record) {
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist session", "error", err)
	}
}

func (s *Service) recordLocked() *store.Record {
	return &store.Record{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		LoggedIn:     s.state == models.StateAuthenticated,
		UserID:       s.userID,
		LoggedInAt:   s.loggedInAt,
		Device:       s.device,
	}
}

func (s *Service) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{State: s.state, Device: s.device}
	if s.userID != nil {
		id := *s.userID
		snap.UserID = &id
	}
	if s.loggedInAt != nil {
		at := *s.loggedInAt
		snap.LoggedInAt = &at
	}
	return snap
}

func derefID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
