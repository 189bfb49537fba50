package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"cache-engine/internal/common/logging"
)

// RequestIDMiddleware attaches a correlation id to every request, reusing a
// caller-supplied X-Request-ID when present. The id is echoed in the
// response and carried in the request context for error payloads and logs.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), logging.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
