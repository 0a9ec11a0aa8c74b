package middleware

import (
	"context"
	"net/http"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/api/models"
)

// userIDKey is the context key for the authenticated user ID.
type userIDKey struct{}

// UserIDHeader carries the caller identity established by the upstream
// API gateway.
const UserIDHeader = "X-User-Id"

// Identity requires the gateway-supplied user id header on every
// request and places it in the context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			writeUnauthorized(w, r, "missing user identity")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetUserID retrieves the authenticated user ID from the context.
// Returns an empty string if not authenticated.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}
