package middleware

import (
	"net/http"
	"strings"

	apierrors "github.com/airelay/qwen-bridge/internal/errors"
	"github.com/airelay/qwen-bridge/internal/utils"
)

// openPaths are reachable without a gateway API key
var openPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// AuthMiddleware enforces the gateway API key on API routes. An empty
// configured key disables the check entirely.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" || openPaths[r.URL.Path] || strings.HasPrefix(r.URL.Path, "/swagger/") {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(utils.HeaderAuthorization)
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token != apiKey {
			apierrors.HandleError(w,
				apierrors.NewValidationError("missing or invalid API key"),
				http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
