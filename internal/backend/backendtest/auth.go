package backendtest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	dErrors "milkadmin/pkg/domain-errors"
	"milkadmin/pkg/secrets"
)

type userKey struct{}

func withUser(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userKey{}, id)
}

func userFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(userKey{}).(int64)
	return id
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"userNameOrEmailOrPhone"`
		Password   string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}

	b.mu.Lock()
	var found *account
	var foundID int64
	ident := strings.ToLower(strings.TrimSpace(req.Identifier))
	for id, acc := range b.accounts {
		if ident == acc.username || ident == acc.email || ident == acc.phone {
			found, foundID = acc, id
			break
		}
	}
	var hash string
	if found != nil {
		hash = found.passwordHash
	}
	b.mu.Unlock()
	if found == nil || secrets.Verify(req.Password, hash) != nil {
		writeProblem(w, http.StatusUnauthorized, "Bad credentials", nil)
		return
	}

	refresh, err := secrets.Generate()
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", nil)
		return
	}
	b.mu.Lock()
	b.refresh[refresh] = foundID
	b.mu.Unlock()

	access, err := b.IssueAccessToken(foundID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access, "refresh_token": refresh})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decode(r, &req); err != nil || req.RefreshToken == "" {
		writeProblem(w, http.StatusBadRequest, "Bad Request", map[string]string{"refresh_token": "Refresh token is required"})
		return
	}
	b.mu.Lock()
	id, ok := b.refresh[req.RefreshToken]
	b.mu.Unlock()
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Refresh token is invalid", nil)
		return
	}
	access, err := b.IssueAccessToken(id)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

func (b *Backend) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	acc, ok := b.accounts[userFrom(r.Context())]
	var profile map[string]any
	if ok {
		profile = clone(acc.profile)
	}
	b.mu.Unlock()
	if !ok {
		writeProblem(w, http.StatusNotFound, "User not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (b *Backend) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[userFrom(r.Context())]
	if !ok {
		writeProblem(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if secrets.Verify(req.OldPassword, acc.passwordHash) != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", map[string]string{"oldPassword": "Old password is incorrect"})
		return
	}
	if len(req.NewPassword) < 7 {
		writeProblem(w, http.StatusBadRequest, "Bad Request", map[string]string{"newPassword": "Password must be at least 7 characters"})
		return
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", map[string]string{"newPassword": err.Error()})
		return
	}
	acc.passwordHash = hash
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

func (b *Backend) handleRegisterStaff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"fullName"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
		Gender   string `json:"gender"`
	}
	if err := decode(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", nil)
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", map[string]string{"password": err.Error()})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	username := strings.ToLower(req.Username)
	for _, acc := range b.accounts {
		if acc.username == username {
			writeProblem(w, http.StatusBadRequest, "Bad Request", map[string]string{"username": "Username already exists"})
			return
		}
		if acc.email == strings.ToLower(req.Email) {
			writeProblem(w, http.StatusBadRequest, "Bad Request", map[string]string{"email": "Email already exists"})
			return
		}
	}
	b.addAccount(req.FullName, username, req.Email, req.Phone, hash, "STAFF")
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Staff registered"})
}

// hashPassword hashes at bcrypt's minimum cost; the fake only needs the shape
// of a real credential check, not its strength.
func hashPassword(password string) (string, error) {
	hash, err := secrets.HashCost(password, bcrypt.MinCost)
	if err != nil {
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return "", errors.New(domainErr.Message)
		}
		return "", err
	}
	return hash, nil
}

// addAccount registers an account and mirrors it into the users collection.
// Callers hold b.mu.
func (b *Backend) addAccount(fullName, username, email, phone, passwordHash, role string) int64 {
	b.nextUserID++
	id := b.nextUserID
	profile := map[string]any{
		"userId":     id,
		"fullName":   fullName,
		"email":      strings.ToLower(email),
		"phone":      phone,
		"point":      int64(0),
		"image":      "",
		"roleName":   role,
		"firstLogin": false,
	}
	b.accounts[id] = &account{
		profile:      profile,
		username:     username,
		email:        strings.ToLower(email),
		phone:        phone,
		passwordHash: passwordHash,
	}
	if users, ok := b.collections["users"]; ok {
		users.rows = append(users.rows, clone(profile))
	}
	return id
}
