package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	UserKey   contextKey = "user"
	APIKeyKey contextKey = "api_key"
)

// public paths skip auth and rate limiting
var publicPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/live":    true,
	"/metrics": true,
}

// IsPublic reports whether path is an unauthenticated probe endpoint.
func IsPublic(path string) bool { return publicPaths[path] }

// APIKeyAuth validates the API key from the Authorization header and stores
// the owning user in the context. An empty key map disables auth.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			// check every key so timing does not leak which user matched
			var user string
			for u, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 && user == "" {
					user = u
				}
			}
			if user == "" {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the authenticated user from context
func UserFromContext(ctx context.Context) string {
	if user, ok := ctx.Value(UserKey).(string); ok {
		return user
	}
	return ""
}

// RequireUser checks the {user} URL parameter: it must be well formed and,
// when a key authenticated the request, belong to that key's user.
// Mount it inside the /v1/{user} route so the parameter is resolved.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlUser := chi.URLParam(r, "user")
		if err := ValidateUserID(urlUser); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if authUser := UserFromContext(r.Context()); authUser != "" && authUser != urlUser {
			writeError(w, http.StatusForbidden, "api key does not belong to this user")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
