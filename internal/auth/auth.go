// Package auth implements bearer-token authentication for the cache API.
// Tokens are HS256 JWTs; the caller identity claim is trusted as given, the
// engine does not maintain its own user store.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cache-engine/internal/common/errors"
	"cache-engine/internal/common/logging"
)

type Auth struct {
	secret []byte
}

func New(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// IssueToken creates a signed bearer token for a caller. Used by operational
// tooling and tests; production callers get tokens from the platform's
// identity service, signed with the same secret.
func (a *Auth) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and verifies a bearer token, returning the caller
// identity from the subject claim.
func (a *Auth) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Auth("unexpected token signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.Auth("invalid bearer token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", errors.Auth("bearer token missing subject")
	}
	return subject, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller identity in the request context for downstream handlers and logs.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			a.unauthorized(w, r, "missing bearer token")
			return
		}

		subject, err := a.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			a.unauthorized(w, r, "invalid bearer token")
			return
		}

		ctx := context.WithValue(r.Context(), logging.CallerIDKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	authErr := errors.Auth(msg)
	if requestID, ok := r.Context().Value(logging.RequestIDKey).(string); ok {
		authErr = authErr.WithRequestID(requestID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": authErr})
}
