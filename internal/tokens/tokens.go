package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Payload-only access token inspection. The client decodes the exp claim to
// decide when a proactive refresh is due; signature verification stays the
// backend's responsibility and is deliberately not performed here.

var ErrNoExpiry = errors.New("token has no exp claim")

var parser = jwt.NewParser()

// ExpiresAt decodes the exp claim of a JWT-shaped token without verifying
// its signature.
func ExpiresAt(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// Expired reports whether the token should be treated as expired. Malformed
// or claimless tokens count as expired so callers fall through to a refresh
// instead of sending a credential the backend will reject.
func Expired(raw string, leeway time.Duration) bool {
	if raw == "" {
		return true
	}
	exp, err := ExpiresAt(raw)
	if err != nil {
		return true
	}
	return time.Now().Add(leeway).After(exp)
}
