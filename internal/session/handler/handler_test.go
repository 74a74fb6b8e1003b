package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"milkadmin/internal/backend"
	"milkadmin/internal/platform/metrics"
	"milkadmin/internal/session"
	"milkadmin/internal/session/handler"
	"milkadmin/internal/session/handler/mocks"
	"milkadmin/internal/session/models"
	dErrors "milkadmin/pkg/domain-errors"
	"milkadmin/pkg/platform/httputil"
	"milkadmin/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	svc     *mocks.MockService
	metrics *metrics.Metrics
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.svc = mocks.NewMockService(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.mount()
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) mount(opts ...handler.Option) {
	opts = append([]handler.Option{handler.WithMetrics(s.metrics)}, opts...)
	h := handler.New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *HandlerSuite) do(method, path, body, clientIP string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, "test-agent"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) errorBody(w *httptest.ResponseRecorder) httputil.ErrorResponse {
	var body httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *HandlerSuite) TestLogin() {
	s.Run("success returns the snapshot", func() {
		userID := int64(7)
		s.svc.EXPECT().Login(gomock.Any(), "alice", "Secret123").
			Return(models.Snapshot{State: models.StateAuthenticated, UserID: &userID, Device: "Chrome on Linux"}, nil)

		w := s.do(http.MethodPost, "/auth/login", `{"userNameOrEmailOrPhone":"alice","password":"Secret123"}`, "10.0.0.1")

		s.Equal(http.StatusOK, w.Code)
		var body map[string]any
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
		s.Equal("AUTHENTICATED", body["state"])
		s.EqualValues(7, body["userId"])
		s.NotContains(body, "profile")
	})

	s.Run("bad credentials are 401 with the operator message", func() {
		apiErr := &backend.APIError{Kind: backend.KindAuth, Status: http.StatusUnauthorized, Title: "Bad credentials"}
		s.svc.EXPECT().Login(gomock.Any(), "alice", "wrong").
			Return(models.Snapshot{}, &session.AuthenticationError{Reason: "Login failed. Please check your credentials.", Err: apiErr})

		w := s.do(http.MethodPost, "/auth/login", `{"userNameOrEmailOrPhone":"alice","password":"wrong"}`, "10.0.0.1")

		s.Equal(http.StatusUnauthorized, w.Code)
		s.Equal("Login failed. Please check your credentials.", s.errorBody(w).Description)
	})

	s.Run("unreachable backend is 503", func() {
		apiErr := &backend.APIError{Kind: backend.KindUnavailable, Err: errors.New("connection refused")}
		s.svc.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(models.Snapshot{}, &session.AuthenticationError{Reason: "Login failed.", Err: apiErr})

		w := s.do(http.MethodPost, "/auth/login", `{"userNameOrEmailOrPhone":"alice","password":"x"}`, "10.0.0.1")

		s.Equal(http.StatusServiceUnavailable, w.Code)
	})

	s.Run("validation errors are 400", func() {
		s.svc.EXPECT().Login(gomock.Any(), "", "").
			Return(models.Snapshot{}, dErrors.Invalid("userNameOrEmailOrPhone is required", map[string][]string{
				"userNameOrEmailOrPhone": {"userNameOrEmailOrPhone is required"},
			}))

		w := s.do(http.MethodPost, "/auth/login", `{}`, "10.0.0.1")

		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(s.errorBody(w).Fields, "userNameOrEmailOrPhone")
	})

	s.Run("malformed body never reaches the gate", func() {
		w := s.do(http.MethodPost, "/auth/login", `{bad`, "10.0.0.1")
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *HandlerSuite) TestLoginThrottled() {
	s.mount(handler.WithLoginRate(1, 1))
	s.svc.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.Snapshot{State: models.StateAuthenticated}, nil).Times(2)

	body := `{"userNameOrEmailOrPhone":"alice","password":"Secret123"}`
	s.Equal(http.StatusOK, s.do(http.MethodPost, "/auth/login", body, "10.0.0.1").Code)

	w := s.do(http.MethodPost, "/auth/login", body, "10.0.0.1")
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.Equal("rate_limited", s.errorBody(w).Error)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.LoginsThrottled))

	s.Equal(http.StatusOK, s.do(http.MethodPost, "/auth/login", body, "10.0.0.2").Code, "other clients keep their own bucket")
}

func (s *HandlerSuite) TestLogout() {
	s.svc.EXPECT().Logout(gomock.Any())

	w := s.do(http.MethodPost, "/auth/logout", "", "10.0.0.1")

	s.Equal(http.StatusNoContent, w.Code)
}

func (s *HandlerSuite) TestMe() {
	s.Run("authenticated includes the profile", func() {
		userID := int64(7)
		s.svc.EXPECT().Snapshot().Return(models.Snapshot{State: models.StateAuthenticated, UserID: &userID})
		s.svc.EXPECT().Profile(gomock.Any()).Return(&models.Profile{UserID: 7, FullName: "Alice Nguyen", RoleName: "ADMIN"}, nil)

		w := s.do(http.MethodGet, "/auth/me", "", "10.0.0.1")

		s.Equal(http.StatusOK, w.Code)
		var body struct {
			State   string          `json:"state"`
			Profile *models.Profile `json:"profile"`
		}
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
		s.Equal("AUTHENTICATED", body.State)
		s.Require().NotNil(body.Profile)
		s.Equal("Alice Nguyen", body.Profile.FullName)
	})

	s.Run("profile failures still answer with the snapshot", func() {
		s.svc.EXPECT().Snapshot().Return(models.Snapshot{State: models.StateAuthenticated})
		s.svc.EXPECT().Profile(gomock.Any()).Return(nil, errors.New("boom"))

		w := s.do(http.MethodGet, "/auth/me", "", "10.0.0.1")

		s.Equal(http.StatusOK, w.Code)
		s.NotContains(w.Body.String(), "profile")
	})

	s.Run("unauthenticated skips the profile", func() {
		s.svc.EXPECT().Snapshot().Return(models.Snapshot{State: models.StateUnauthenticated})

		w := s.do(http.MethodGet, "/auth/me", "", "10.0.0.1")

		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), `"state":"UNAUTHENTICATED"`)
	})
}

func (s *HandlerSuite) TestChangePassword() {
	s.Run("success is 204", func() {
		s.svc.EXPECT().ChangePassword(gomock.Any(), &models.ChangePasswordRequest{
			OldPassword: "Secret123", NewPassword: "Secret456", ConfirmPassword: "Secret456",
		}).Return(nil)

		w := s.do(http.MethodPost, "/auth/change-password",
			`{"oldPassword":"Secret123","newPassword":"Secret456","confirmPassword":"Secret456"}`, "10.0.0.1")

		s.Equal(http.StatusNoContent, w.Code)
	})

	s.Run("backend field errors are forwarded", func() {
		s.svc.EXPECT().ChangePassword(gomock.Any(), gomock.Any()).Return(&backend.APIError{
			Kind:        backend.KindValidation,
			Status:      http.StatusBadRequest,
			Title:       "Validation failed",
			FieldErrors: map[string][]string{"oldPassword": {"Old password is incorrect"}},
		})

		w := s.do(http.MethodPost, "/auth/change-password",
			`{"oldPassword":"nope","newPassword":"Secret456","confirmPassword":"Secret456"}`, "10.0.0.1")

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal([]string{"Old password is incorrect"}, s.errorBody(w).Fields["oldPassword"])
	})

	s.Run("expired session is 401", func() {
		s.svc.EXPECT().ChangePassword(gomock.Any(), gomock.Any()).Return(session.ErrNotAuthenticated)

		w := s.do(http.MethodPost, "/auth/change-password",
			`{"oldPassword":"a","newPassword":"Secret456","confirmPassword":"Secret456"}`, "10.0.0.1")

		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *HandlerSuite) TestRegisterStaff() {
	s.svc.EXPECT().RegisterStaff(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, req *models.StaffRegistration) error {
			s.Equal("binh", req.Username)
			return nil
		})

	w := s.do(http.MethodPost, "/admin/staff",
		`{"fullName":"Binh Tran","username":"binh","email":"binh@milkshop.vn","phone":"0901234567","password":"Secret123","gender":"MALE"}`, "10.0.0.1")

	s.Equal(http.StatusCreated, w.Code)
}
