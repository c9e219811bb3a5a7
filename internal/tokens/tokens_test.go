package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := jt.SignedString([]byte("test-secret-32-bytes-xxxxxxxxxxxx"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestExpiresAt_ReadsClaim(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	tok := mint(t, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})
	got, err := ExpiresAt(tok)
	if err != nil {
		t.Fatalf("ExpiresAt error: %v", err)
	}
	if !got.Equal(exp) {
		t.Fatalf("ExpiresAt = %v, want %v", got, exp)
	}
}

func TestExpiresAt_NoClaim(t *testing.T) {
	tok := mint(t, jwt.MapClaims{"sub": "u1"})
	if _, err := ExpiresAt(tok); err == nil {
		t.Fatalf("expected error for token without exp")
	}
}

func TestExpired_FutureAndPast(t *testing.T) {
	fresh := mint(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	if Expired(fresh, 0) {
		t.Fatalf("fresh token reported expired")
	}
	stale := mint(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	if !Expired(stale, 0) {
		t.Fatalf("stale token reported valid")
	}
}

func TestExpired_LeewayExpiresEarly(t *testing.T) {
	tok := mint(t, jwt.MapClaims{"exp": time.Now().Add(30 * time.Second).Unix()})
	if Expired(tok, 0) {
		t.Fatalf("token should still be valid with no leeway")
	}
	if !Expired(tok, time.Minute) {
		t.Fatalf("token inside the leeway window should count as expired")
	}
}

// Unparseable tokens must be treated as expired, not as an error surface.
func TestExpired_Malformed(t *testing.T) {
	for _, raw := range []string{"", "not-a-jwt", "a.b", "a.%%%.c"} {
		if !Expired(raw, 0) {
			t.Fatalf("malformed token %q reported valid", raw)
		}
	}
}
