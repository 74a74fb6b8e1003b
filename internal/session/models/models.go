package models

import (
	"strings"
	"time"

	"milkadmin/pkg/validation"
)

// State is the operator session's authentication state.
type State string

const (
	StateUnknown         State = "UNKNOWN"
	StateAuthenticated   State = "AUTHENTICATED"
	StateUnauthenticated State = "UNAUTHENTICATED"
)

// Tokens is the token pair issued by auth/user/login.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Profile is the body of auth/user/info.
type Profile struct {
	UserID     int64  `json:"userId"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Point      int64  `json:"point"`
	Image      string `json:"image"`
	RoleName   string `json:"roleName"`
	FirstLogin bool   `json:"firstLogin"`
}

// Snapshot is a point-in-time view of the gate used for route guarding and /auth/me.
type Snapshot struct {
	State      State      `json:"state"`
	UserID     *int64     `json:"userId"`
	LoggedInAt *time.Time `json:"loggedInAt,omitempty"`
	Device     string     `json:"device,omitempty"`
}

// Authenticated reports whether the snapshot allows gated routes.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated
}

type LoginRequest struct {
	Identifier string `json:"userNameOrEmailOrPhone" validate:"required,notblank"`
	Password   string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Identifier = strings.TrimSpace(r.Identifier)
}

func (r *LoginRequest) Validate() error {
	return validation.Validate(r)
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=7"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

func (r *ChangePasswordRequest) Validate() error {
	return validation.Validate(r)
}

// StaffRegistration is the payload of auth/register/staff.
type StaffRegistration struct {
	FullName string `json:"fullName" validate:"required,notblank"`
	Username string `json:"username" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=10"`
	Password string `json:"password" validate:"required,min=7"`
	Gender   string `json:"gender" validate:"required,notblank"`
}

func (r *StaffRegistration) Normalize() {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *StaffRegistration) Validate() error {
	return validation.Validate(r)
}
