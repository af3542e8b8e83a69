package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func TestIdentity_UsesPrincipalWhenTokenValid(t *testing.T) {
	r := NewResolver("test-secret")

	req := httptest.NewRequest("POST", "/ask", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", "user-42"))

	if got := r.Identity(req); got != "user:user-42" {
		t.Fatalf("Identity() = %q, want user:user-42", got)
	}
}

func TestIdentity_FallsBackToAddress(t *testing.T) {
	r := NewResolver("test-secret")

	tests := []struct {
		name string
		auth string
	}{
		{name: "no token"},
		{name: "wrong secret", auth: "Bearer " + signToken(t, "other-secret", "user-42")},
		{name: "not bearer", auth: "Basic abc"},
		{name: "garbage token", auth: "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/ask", nil)
			req.RemoteAddr = "10.1.2.3:5555"
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if got := r.Identity(req); got != "ip:10.1.2.3" {
				t.Errorf("Identity() = %q, want ip:10.1.2.3", got)
			}
		})
	}
}

func TestIdentity_NoSecretConfigured(t *testing.T) {
	r := NewResolver("")

	req := httptest.NewRequest("POST", "/ask", nil)
	req.RemoteAddr = "192.168.0.9:1234"
	req.Header.Set("Authorization", "Bearer "+signToken(t, "any", "user-1"))

	if got := r.Identity(req); got != "ip:192.168.0.9" {
		t.Fatalf("Identity() = %q, want ip:192.168.0.9", got)
	}
}

func TestIdentity_SamePortDifferentConnections(t *testing.T) {
	r := NewResolver("")

	a := httptest.NewRequest("POST", "/ask", nil)
	a.RemoteAddr = "10.0.0.1:40000"
	b := httptest.NewRequest("POST", "/ask", nil)
	b.RemoteAddr = "10.0.0.1:40001"

	if r.Identity(a) != r.Identity(b) {
		t.Fatalf("identities differ across ports: %q vs %q", r.Identity(a), r.Identity(b))
	}
}
