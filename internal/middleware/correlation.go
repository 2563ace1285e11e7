package middleware

import (
	"net/http"
	"time"

	"github.com/airelay/qwen-bridge/internal/logger"
	"github.com/airelay/qwen-bridge/internal/utils"
)

// RequestCorrelationMiddleware assigns every request a correlation ID,
// preferring a client-provided X-Request-ID over a generated one, and
// places it in the request context and response headers.
func RequestCorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(utils.HeaderRequestID)
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		w.Header().Set(utils.HeaderRequestID, requestID)

		ctx := logger.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		// Health checks stay quiet to reduce log noise.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		logger.Debug(ctx, "Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"user_agent", r.Header.Get(utils.HeaderUserAgent))

		next.ServeHTTP(w, r)

		logger.Debug(ctx, "Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
