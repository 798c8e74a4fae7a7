package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type contextKey string

const identityKey contextKey = "identity"

// Auth returns a wrapper enforcing a valid Bearer token on a handler. The
// token's subject becomes the caller identity, available via Identity.
// Tokens are issued by the external identity service; only validation
// happens here.
func Auth(secret string, log *logrus.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "Missing Authorization Header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, "Invalid Authorization Header")
				return
			}
			rawToken := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				log.WithFields(logrus.Fields{
					"path":  r.URL.Path,
					"error": fmt.Sprintf("%v", err),
				}).Warn("Token verification failed")
				writeAuthError(w, "Invalid token")
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				writeAuthError(w, "Invalid token")
				return
			}

			next(w, r.WithContext(WithIdentity(r.Context(), subject)))
		}
	}
}

// WithIdentity stores the caller identity on the context.
func WithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey, userID)
}

// Identity returns the authenticated caller identity, "" if none.
func Identity(ctx context.Context) string {
	if id, ok := ctx.Value(identityKey).(string); ok {
		return id
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
