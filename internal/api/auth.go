package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into and required of every admin token.
const Issuer = "npcsim"

// ErrAdminDisabled is returned when no admin key is configured.
var ErrAdminDisabled = errors.New("api: admin key not configured")

// IssueToken signs an HS256 admin token for subject valid for ttl.
func IssueToken(key, subject string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", ErrAdminDisabled
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// VerifyToken checks signature, algorithm, issuer and expiry.
func VerifyToken(key, token string) (*jwt.RegisteredClaims, error) {
	if key == "" {
		return nil, ErrAdminDisabled
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return []byte(key), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return claims, nil
}

// adminOnly requires a valid bearer token. Without an admin key the admin
// plane is closed entirely.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			writeError(w, http.StatusForbidden, "admin endpoints disabled")
			return
		}
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := VerifyToken(s.AdminKey, raw)
		if err != nil {
			s.log.Warn("admin token rejected", "remote", clientIP(r), "error", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		s.log.Info("admin request", "subject", claims.Subject, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
