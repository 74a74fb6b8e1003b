package backend

import (
	"context"

	"milkadmin/internal/session/models"
)

// Auth endpoints relative to the backend base URL.
const (
	PathLogin          = "auth/user/login"
	PathRefresh        = "auth/refresh_token"
	PathUserInfo       = "auth/user/info"
	PathChangePassword = "auth/change-password"
	PathRegisterStaff  = "auth/register/staff"
)

// AuthClient calls the backend's auth endpoints on behalf of the session gate.
type AuthClient struct {
	client *Client
}

func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{client: c}
}

type loginPayload struct {
	Identifier string `json:"userNameOrEmailOrPhone"`
	Password   string `json:"password"`
}

type refreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type changePasswordPayload struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Login exchanges credentials for a token pair.
func (a *AuthClient) Login(ctx context.Context, identifier, password string) (*models.Tokens, error) {
	var tokens models.Tokens
	err := a.client.Post(ctx, PathLogin, loginPayload{Identifier: identifier, Password: password}, &tokens, WithBearer(""))
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Refresh obtains a new access token. The returned refresh token is empty
// unless the backend rotated it.
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*models.Tokens, error) {
	var resp refreshResponse
	if err := a.client.Post(ctx, PathRefresh, refreshPayload{RefreshToken: refreshToken}, &resp, WithBearer("")); err != nil {
		return nil, err
	}
	return &models.Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

func (a *AuthClient) UserInfo(ctx context.Context, accessToken string) (*models.Profile, error) {
	var profile models.Profile
	if err := a.client.Get(ctx, PathUserInfo, &profile, WithBearer(accessToken)); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (a *AuthClient) ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error {
	payload := changePasswordPayload{OldPassword: oldPassword, NewPassword: newPassword}
	return a.client.Post(ctx, PathChangePassword, payload, nil, WithBearer(accessToken))
}

func (a *AuthClient) RegisterStaff(ctx context.Context, accessToken string, req models.StaffRegistration) error {
	return a.client.Post(ctx, PathRegisterStaff, req, nil, WithBearer(accessToken))
}
