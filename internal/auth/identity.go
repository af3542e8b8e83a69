// Package auth derives the client identity used for rate limiting.
// Authentication itself is an upstream concern: when the upstream issues
// JWTs, a valid token's subject becomes the identity so one shared address
// does not penalize every user behind it. Requests without a usable token
// fall back to the remote address rather than being rejected.
package auth

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Resolver maps requests to rate-limit identities.
type Resolver struct {
	secret []byte
}

// NewResolver creates a resolver. With an empty secret every request is
// keyed by its remote address.
func NewResolver(jwtSecret string) *Resolver {
	var secret []byte
	if jwtSecret != "" {
		secret = []byte(jwtSecret)
	}
	return &Resolver{secret: secret}
}

// Identity returns the principal from a valid bearer token, or the
// normalized remote address.
func (r *Resolver) Identity(req *http.Request) string {
	if principal, ok := r.principal(req); ok {
		return "user:" + principal
	}
	return "ip:" + remoteAddr(req)
}

func (r *Resolver) principal(req *http.Request) (string, bool) {
	if len(r.secret) == 0 {
		return "", false
	}

	header := req.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", false
	}
	return subject, true
}

// remoteAddr strips the port so one client is one identity regardless of
// ephemeral source ports.
func remoteAddr(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
