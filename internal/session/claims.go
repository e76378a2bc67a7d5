package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what can be read out of a bearer token without verifying it.
type Claims struct {
	Subject string
	Expires time.Time // zero if the token carries no exp
}

// ParseClaims decodes a JWT credential without checking its signature. The
// result is for display only; entitlement always comes from the server.
// ok is false for credentials that are not JWTs.
func ParseClaims(token string) (Claims, bool) {
	if token == "" {
		return Claims{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, false
	}
	var c Claims
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		c.Expires = exp.Time
	}
	return c, true
}

// Expired reports whether the claims carry an expiry before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && c.Expires.Before(now)
}
