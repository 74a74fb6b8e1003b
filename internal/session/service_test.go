package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"milkadmin/internal/backend"
	"milkadmin/internal/session"
	"milkadmin/internal/session/mocks"
	"milkadmin/internal/session/models"
	"milkadmin/internal/session/store"
	dErrors "milkadmin/pkg/domain-errors"
	"milkadmin/pkg/requestcontext"
)

const chromeUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	auth    *mocks.MockAuthAPI
	store   *mocks.MockTokenStore
	now     time.Time
	service *session.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.auth = mocks.NewMockAuthAPI(s.ctrl)
	s.store = mocks.NewMockTokenStore(s.ctrl)
	s.now = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	s.service = session.NewService(s.auth, s.store,
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) token(exp time.Time) string {
	claims := jwt.RegisteredClaims{Subject: "7", ExpiresAt: jwt.NewNumericDate(exp)}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any"))
	s.Require().NoError(err)
	return signed
}

func (s *ServiceSuite) login(access string) {
	s.auth.EXPECT().Login(gomock.Any(), "alice", "Secret123").
		Return(&models.Tokens{AccessToken: access, RefreshToken: "refresh-1"}, nil)
	s.auth.EXPECT().UserInfo(gomock.Any(), access).Return(&models.Profile{UserID: 7}, nil)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	_, err := s.service.Login(context.Background(), "alice", "Secret123")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestInitialState() {
	s.Equal(models.StateUnknown, s.service.Snapshot().State)
}

func (s *ServiceSuite) TestInitialize() {
	s.Run("nothing persisted", func() {
		s.store.EXPECT().Load(gomock.Any()).Return(nil, store.ErrNotFound)

		s.NoError(s.service.Initialize(context.Background()))
		s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
	})

	s.Run("valid token is kept", func() {
		access := s.token(s.now.Add(time.Hour))
		s.store.EXPECT().Load(gomock.Any()).Return(&store.Record{AccessToken: access, RefreshToken: "r", LoggedIn: true}, nil)
		s.auth.EXPECT().UserInfo(gomock.Any(), access).Return(&models.Profile{UserID: 7}, nil)
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

		s.NoError(s.service.Initialize(context.Background()))
		snap := s.service.Snapshot()
		s.Equal(models.StateAuthenticated, snap.State)
		s.Require().NotNil(snap.UserID)
		s.Equal(int64(7), *snap.UserID)
	})

	s.Run("expired token is refreshed and persisted", func() {
		expired := s.token(s.now.Add(-time.Minute))
		fresh := s.token(s.now.Add(time.Hour))
		s.store.EXPECT().Load(gomock.Any()).Return(&store.Record{AccessToken: expired, RefreshToken: "r", LoggedIn: true}, nil)
		s.auth.EXPECT().Refresh(gomock.Any(), "r").Return(&models.Tokens{AccessToken: fresh}, nil)
		s.auth.EXPECT().UserInfo(gomock.Any(), fresh).Return(&models.Profile{UserID: 7}, nil)
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec *store.Record) error {
			s.Equal(fresh, rec.AccessToken)
			s.Equal("r", rec.RefreshToken)
			s.True(rec.LoggedIn)
			return nil
		})

		s.NoError(s.service.Initialize(context.Background()))
		s.Equal(models.StateAuthenticated, s.service.Snapshot().State)
	})

	s.Run("undecodable token counts as expired", func() {
		s.store.EXPECT().Load(gomock.Any()).Return(&store.Record{AccessToken: "garbage", RefreshToken: "r", LoggedIn: true}, nil)
		s.auth.EXPECT().Refresh(gomock.Any(), "r").Return(nil, &backend.APIError{Kind: backend.KindAuth, Status: 401})
		s.store.EXPECT().Clear(gomock.Any()).Return(nil)

		s.NoError(s.service.Initialize(context.Background()))
		s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
	})

	s.Run("valid token is kept without a refresh token", func() {
		access := s.token(s.now.Add(time.Hour))
		s.store.EXPECT().Load(gomock.Any()).Return(&store.Record{AccessToken: access, LoggedIn: true}, nil)
		s.auth.EXPECT().UserInfo(gomock.Any(), access).Return(&models.Profile{UserID: 7}, nil)
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

		s.NoError(s.service.Initialize(context.Background()))
		s.Equal(models.StateAuthenticated, s.service.Snapshot().State)
	})

	s.Run("expired token without a refresh token logs out", func() {
		s.store.EXPECT().Load(gomock.Any()).Return(&store.Record{AccessToken: s.token(s.now.Add(-time.Minute)), LoggedIn: true}, nil)
		s.store.EXPECT().Clear(gomock.Any()).Return(nil)

		s.NoError(s.service.Initialize(context.Background()))
		s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
	})

	s.Run("logged out flag wins", func() {
		s.store.EXPECT().Load(gomock.Any()).Return(&store.Record{AccessToken: s.token(s.now.Add(time.Hour)), RefreshToken: "r"}, nil)
		s.store.EXPECT().Clear(gomock.Any()).Return(nil)

		s.NoError(s.service.Initialize(context.Background()))
		s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
	})

	s.Run("store failure is reported", func() {
		s.store.EXPECT().Load(gomock.Any()).Return(nil, errors.New("disk on fire"))

		err := s.service.Initialize(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
	})

	s.Run("profile outage keeps the persisted user", func() {
		id := int64(7)
		access := s.token(s.now.Add(time.Hour))
		s.store.EXPECT().Load(gomock.Any()).Return(&store.Record{AccessToken: access, RefreshToken: "r", LoggedIn: true, UserID: &id}, nil)
		s.auth.EXPECT().UserInfo(gomock.Any(), access).Return(nil, &backend.APIError{Kind: backend.KindUnavailable})
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

		s.NoError(s.service.Initialize(context.Background()))
		snap := s.service.Snapshot()
		s.Equal(models.StateAuthenticated, snap.State)
		s.Equal(int64(7), *snap.UserID)
	})
}

func (s *ServiceSuite) TestLogin() {
	s.Run("validation happens before the backend", func() {
		_, err := s.service.Login(context.Background(), "  ", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("failure persists nothing", func() {
		cause := &backend.APIError{Kind: backend.KindAuth, Status: 401, Title: "Bad credentials"}
		s.auth.EXPECT().Login(gomock.Any(), "alice", "wrong").Return(nil, cause)

		_, err := s.service.Login(context.Background(), "alice", "wrong")

		var authErr *session.AuthenticationError
		s.Require().ErrorAs(err, &authErr)
		s.Equal("Login failed. Please check your credentials.", authErr.Error())
		s.ErrorIs(err, cause)
		s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
	})

	s.Run("success persists tokens and user", func() {
		access := s.token(s.now.Add(time.Hour))
		ctx := requestcontext.WithClientMetadata(context.Background(), "10.0.0.1", chromeUA)
		s.auth.EXPECT().Login(gomock.Any(), "alice", "Secret123").
			Return(&models.Tokens{AccessToken: access, RefreshToken: "refresh-1"}, nil)
		s.auth.EXPECT().UserInfo(gomock.Any(), access).Return(&models.Profile{UserID: 7}, nil)
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec *store.Record) error {
			s.Equal(access, rec.AccessToken)
			s.Equal("refresh-1", rec.RefreshToken)
			s.True(rec.LoggedIn)
			s.Equal(int64(7), *rec.UserID)
			return nil
		})

		snap, err := s.service.Login(ctx, " alice ", "Secret123")

		s.Require().NoError(err)
		s.True(snap.Authenticated())
		s.Contains(snap.Device, "Chrome on")
		s.Equal(s.now, *snap.LoggedInAt)
	})
}

func (s *ServiceSuite) TestLogout() {
	s.login(s.token(s.now.Add(time.Hour)))
	s.store.EXPECT().Clear(gomock.Any()).Return(errors.New("redis down"))

	s.service.Logout(context.Background())

	snap := s.service.Snapshot()
	s.Equal(models.StateUnauthenticated, snap.State)
	s.Nil(snap.UserID)
	_, err := s.service.AccessToken(context.Background())
	s.ErrorIs(err, session.ErrNotAuthenticated)
}

func (s *ServiceSuite) TestLogoutThenInitialize() {
	tokens := store.NewInMemoryStore()
	first := session.NewService(s.auth, tokens, session.WithClock(func() time.Time { return s.now }))
	access := s.token(s.now.Add(time.Hour))
	s.auth.EXPECT().Login(gomock.Any(), "alice", "Secret123").
		Return(&models.Tokens{AccessToken: access, RefreshToken: "refresh-1"}, nil)
	s.auth.EXPECT().UserInfo(gomock.Any(), access).Return(&models.Profile{UserID: 7}, nil)
	_, err := first.Login(context.Background(), "alice", "Secret123")
	s.Require().NoError(err)

	first.Logout(context.Background())

	restarted := session.NewService(s.auth, tokens, session.WithClock(func() time.Time { return s.now }))
	s.NoError(restarted.Initialize(context.Background()))
	s.Equal(models.StateUnauthenticated, restarted.Snapshot().State)
}

func (s *ServiceSuite) TestProfile() {
	s.Run("no token yields nil", func() {
		profile, err := s.service.Profile(context.Background())
		s.NoError(err)
		s.Nil(profile)
	})

	access := s.token(s.now.Add(time.Hour))
	s.login(access)

	s.Run("returns the profile", func() {
		s.auth.EXPECT().UserInfo(gomock.Any(), access).Return(&models.Profile{UserID: 7, FullName: "Alice"}, nil)
		profile, err := s.service.Profile(context.Background())
		s.Require().NoError(err)
		s.Equal("Alice", profile.FullName)
	})

	s.Run("transport failure yields nil", func() {
		s.auth.EXPECT().UserInfo(gomock.Any(), access).Return(nil, &backend.APIError{Kind: backend.KindUnavailable})
		profile, err := s.service.Profile(context.Background())
		s.NoError(err)
		s.Nil(profile)
	})

	s.Run("server failure is returned", func() {
		s.auth.EXPECT().UserInfo(gomock.Any(), access).Return(nil, &backend.APIError{Kind: backend.KindServer, Status: 500})
		_, err := s.service.Profile(context.Background())
		s.True(backend.IsKind(err, backend.KindServer))
	})

	s.Run("expired token yields nil without a call", func() {
		s.now = s.now.Add(2 * time.Hour)
		profile, err := s.service.Profile(context.Background())
		s.NoError(err)
		s.Nil(profile)
	})
}

func (s *ServiceSuite) TestAccessTokenRefreshesOnce() {
	s.login(s.token(s.now.Add(time.Minute)))
	s.now = s.now.Add(5 * time.Minute)
	fresh := s.token(s.now.Add(time.Hour))

	var refreshes atomic.Int32
	release := make(chan struct{})
	s.auth.EXPECT().Refresh(gomock.Any(), "refresh-1").DoAndReturn(func(context.Context, string) (*models.Tokens, error) {
		refreshes.Add(1)
		<-release
		return &models.Tokens{AccessToken: fresh}, nil
	}).Times(1)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = s.service.AccessToken(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(int32(1), refreshes.Load())
	for i := range callers {
		s.NoError(errs[i])
		s.Equal(fresh, tokens[i])
	}

	s.Run("later calls use the new token", func() {
		token, err := s.service.AccessToken(context.Background())
		s.NoError(err)
		s.Equal(fresh, token)
	})
}

func (s *ServiceSuite) TestAccessTokenRefreshFailureEndsSession() {
	s.login(s.token(s.now.Add(time.Minute)))
	s.now = s.now.Add(5 * time.Minute)
	s.auth.EXPECT().Refresh(gomock.Any(), "refresh-1").Return(nil, &backend.APIError{Kind: backend.KindAuth, Status: 401})
	s.store.EXPECT().Clear(gomock.Any()).Return(nil)

	_, err := s.service.AccessToken(context.Background())

	s.ErrorIs(err, session.ErrNotAuthenticated)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
}

func (s *ServiceSuite) TestChangePassword() {
	access := s.token(s.now.Add(time.Hour))
	s.login(access)

	s.Run("validation", func() {
		err := s.service.ChangePassword(context.Background(), &models.ChangePasswordRequest{
			OldPassword: "Secret123", NewPassword: "short", ConfirmPassword: "short",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("backend rejection keeps the session", func() {
		cause := &backend.APIError{Kind: backend.KindValidation, Status: 400, FieldErrors: map[string][]string{"oldPassword": {"Old password is incorrect"}}}
		s.auth.EXPECT().ChangePassword(gomock.Any(), access, "nope", "NewSecret1").Return(cause)

		err := s.service.ChangePassword(context.Background(), &models.ChangePasswordRequest{
			OldPassword: "nope", NewPassword: "NewSecret1", ConfirmPassword: "NewSecret1",
		})
		s.ErrorIs(err, cause)
		s.Equal(models.StateAuthenticated, s.service.Snapshot().State)
	})

	s.Run("success ends the session", func() {
		s.auth.EXPECT().ChangePassword(gomock.Any(), access, "Secret123", "NewSecret1").Return(nil)
		s.store.EXPECT().Clear(gomock.Any()).Return(nil)

		err := s.service.ChangePassword(context.Background(), &models.ChangePasswordRequest{
			OldPassword: "Secret123", NewPassword: "NewSecret1", ConfirmPassword: "NewSecret1",
		})
		s.NoError(err)
		s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
	})
}

func (s *ServiceSuite) TestRegisterStaff() {
	req := &models.StaffRegistration{
		FullName: "Bình Trần", Username: "binh", Email: "Binh@MilkShop.vn",
		Phone: "0901234567", Password: "Staff1234", Gender: "FEMALE",
	}

	s.Run("requires a session", func() {
		err := s.service.RegisterStaff(context.Background(), req)
		s.ErrorIs(err, session.ErrNotAuthenticated)
	})

	access := s.token(s.now.Add(time.Hour))
	s.login(access)

	s.Run("normalizes and posts", func() {
		s.auth.EXPECT().RegisterStaff(gomock.Any(), access, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, got models.StaffRegistration) error {
				s.Equal("binh@milkshop.vn", got.Email)
				return nil
			})
		s.NoError(s.service.RegisterStaff(context.Background(), req))
	})

	s.Run("invalid phone", func() {
		bad := *req
		bad.Phone = "123"
		err := s.service.RegisterStaff(context.Background(), &bad)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestUnauthorized() {
	s.Run("rejected token is refreshed once", func() {
		s.SetupTest()
		rejected := s.token(s.now.Add(time.Hour))
		s.login(rejected)
		fresh := s.token(s.now.Add(2 * time.Hour))
		s.auth.EXPECT().Refresh(gomock.Any(), "refresh-1").Return(&models.Tokens{AccessToken: fresh, RefreshToken: "refresh-2"}, nil)
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, rec *store.Record) error {
			s.Equal(fresh, rec.AccessToken)
			s.Equal("refresh-2", rec.RefreshToken)
			return nil
		})

		s.service.Unauthorized(context.Background(), rejected)
		// A late rejection of the replaced token changes nothing.
		s.service.Unauthorized(context.Background(), rejected)

		s.Equal(models.StateAuthenticated, s.service.Snapshot().State)
		token, err := s.service.AccessToken(context.Background())
		s.NoError(err)
		s.Equal(fresh, token)
	})

	s.Run("rejection of the refreshed token ends the session", func() {
		s.SetupTest()
		rejected := s.token(s.now.Add(time.Hour))
		s.login(rejected)
		fresh := s.token(s.now.Add(2 * time.Hour))
		s.auth.EXPECT().Refresh(gomock.Any(), "refresh-1").Return(&models.Tokens{AccessToken: fresh}, nil).Times(1)
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
		s.store.EXPECT().Clear(gomock.Any()).Return(nil)

		s.service.Unauthorized(context.Background(), rejected)
		s.service.Unauthorized(context.Background(), fresh)

		s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
		_, err := s.service.AccessToken(context.Background())
		s.ErrorIs(err, session.ErrNotAuthenticated)
	})

	s.Run("failed refresh ends the session", func() {
		s.SetupTest()
		rejected := s.token(s.now.Add(time.Hour))
		s.login(rejected)
		s.auth.EXPECT().Refresh(gomock.Any(), "refresh-1").Return(nil, &backend.APIError{Kind: backend.KindAuth, Status: 401})
		s.store.EXPECT().Clear(gomock.Any()).Return(nil)

		s.service.Unauthorized(context.Background(), rejected)

		s.Equal(models.StateUnauthenticated, s.service.Snapshot().State)
	})

	s.Run("concurrent rejections share one refresh", func() {
		s.SetupTest()
		rejected := s.token(s.now.Add(time.Hour))
		s.login(rejected)
		fresh := s.token(s.now.Add(2 * time.Hour))
		release := make(chan struct{})
		s.auth.EXPECT().Refresh(gomock.Any(), "refresh-1").DoAndReturn(func(context.Context, string) (*models.Tokens, error) {
			<-release
			return &models.Tokens{AccessToken: fresh}, nil
		}).Times(1)
		s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.service.Unauthorized(context.Background(), rejected)
			}()
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		s.Equal(models.StateAuthenticated, s.service.Snapshot().State)
	})

	s.Run("ignored when not authenticated", func() {
		s.SetupTest()
		s.service.Unauthorized(context.Background(), "anything")
		s.Equal(models.StateUnknown, s.service.Snapshot().State)
	})
}
