package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"milkadmin/internal/session/models"
	"milkadmin/pkg/requestcontext"
)

// MockSessionChecker is a testify mock for SessionChecker
type MockSessionChecker struct {
	mock.Mock
}

func (m *MockSessionChecker) Snapshot() models.Snapshot {
	args := m.Called()
	return args.Get(0).(models.Snapshot)
}

// mockHandler is a test handler that captures if it was called and the context
type mockHandler struct {
	called  bool
	context context.Context
}

func (m *mockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.called = true
	m.context = r.Context()
	w.WriteHeader(http.StatusOK)
}

type RequireSessionSuite struct {
	suite.Suite
	checker     *MockSessionChecker
	nextHandler *mockHandler
	handler     http.Handler
}

func TestRequireSessionSuite(t *testing.T) {
	suite.Run(t, new(RequireSessionSuite))
}

func (s *RequireSessionSuite) SetupTest() {
	s.checker = new(MockSessionChecker)
	s.nextHandler = &mockHandler{}
	s.handler = RequireSession(s.checker, slog.Default())(s.nextHandler)
}

func (s *RequireSessionSuite) TearDownTest() {
	s.checker.AssertExpectations(s.T())
}

func (s *RequireSessionSuite) serve() *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *RequireSessionSuite) TestAuthenticatedPasses() {
	userID := int64(7)
	s.checker.On("Snapshot").Return(models.Snapshot{State: models.StateAuthenticated, UserID: &userID})

	w := s.serve()

	s.Equal(http.StatusOK, w.Code)
	s.True(s.nextHandler.called)
	got, ok := requestcontext.OperatorID(s.nextHandler.context)
	s.True(ok)
	s.Equal(int64(7), got)
}

func (s *RequireSessionSuite) TestAuthenticatedWithoutUserID() {
	s.checker.On("Snapshot").Return(models.Snapshot{State: models.StateAuthenticated})

	w := s.serve()

	s.Equal(http.StatusOK, w.Code)
	_, ok := requestcontext.OperatorID(s.nextHandler.context)
	s.False(ok)
}

func (s *RequireSessionSuite) TestRejectsOtherStates() {
	for _, state := range []models.State{models.StateUnknown, models.StateUnauthenticated} {
		s.Run(string(state), func() {
			s.nextHandler.called = false
			s.checker.On("Snapshot").Return(models.Snapshot{State: state}).Once()

			w := s.serve()

			s.Equal(http.StatusUnauthorized, w.Code)
			s.False(s.nextHandler.called)
			var body map[string]string
			s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
			s.Equal("unauthorized", body["error"])
			s.Equal("Login required", body["error_description"])
		})
	}
}
