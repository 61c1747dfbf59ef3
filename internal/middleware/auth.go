package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mmynk/saferound/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// UserIDKey is the context key for storing the authenticated user ID.
const UserIDKey contextKey = "user_id"

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// RequireAuth returns a middleware that validates bearer tokens.
// It extracts the token from the Authorization header, validates it, and adds
// the user ID to the request context. A nil manager disables the check.
func RequireAuth(jwtManager *auth.JWTManager, onError func(w http.ResponseWriter, status int, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if jwtManager == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				onError(w, http.StatusUnauthorized, auth.ErrMissingToken)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				onError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
				return
			}

			claims, err := jwtManager.Validate(parts[1])
			if err != nil {
				onError(w, http.StatusUnauthorized, err)
				return
			}

			if rec, ok := w.(*statusRecorder); ok {
				rec.userID = claims.UserID
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}
