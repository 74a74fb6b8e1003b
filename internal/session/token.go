package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry reads exp from an access token without verifying it; the
// console never holds the backend's signing key. ok is false when the token
// cannot be decoded.
func tokenExpiry(raw string) (exp time.Time, hasExp, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, true
	}
	return claims.ExpiresAt.Time, true, true
}

// tokenExpired treats an empty or undecodable token as expired. A token
// without exp never expires locally.
func tokenExpired(raw string, now time.Time) bool {
	if raw == "" {
		return true
	}
	exp, hasExp, ok := tokenExpiry(raw)
	if !ok {
		return true
	}
	return hasExp && !exp.After(now)
}
