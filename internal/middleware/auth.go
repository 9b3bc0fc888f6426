package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"tnepic-backend/internal/services"
	"tnepic-backend/internal/state"
)

type contextKey string

const storeKey contextKey = "store"

// AuthMiddleware resolves the session token to the session's store
func AuthMiddleware(sessions *services.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				respondError(w, err.Error(), http.StatusUnauthorized)
				return
			}

			store, err := sessions.Resolve(token)
			if err != nil {
				respondError(w, "Invalid session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), storeKey, store)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("Authorization header required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", fmt.Errorf("Invalid authorization header format")
	}
	return parts[1], nil
}

// GetStore extracts the session store from context
func GetStore(ctx context.Context) *state.Store {
	store, ok := ctx.Value(storeKey).(*state.Store)
	if !ok {
		return nil
	}
	return store
}

// GetSessionID extracts the session ID from context
func GetSessionID(ctx context.Context) string {
	if store := GetStore(ctx); store != nil {
		return store.ID()
	}
	return ""
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
