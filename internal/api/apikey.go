package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"
)

const apiKeyIdentifier = "apikey"

// NewAPIKeyMiddleware authenticates requests with a fixed key supplied in the
// "apikey" header or query parameter. The comparison is constant-time so the
// key cannot be probed byte by byte. Authentication runs before any business
// logic: a bad key never reaches the store or dispatcher.
func NewAPIKeyMiddleware(apiKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	keyBytes := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyIdentifier)
			if key == "" {
				key = r.URL.Query().Get(apiKeyIdentifier)
			}

			if key == "" {
				response.WriteJSONError(w, http.StatusUnauthorized, "no api key provided")
				return
			}

			if subtle.ConstantTimeCompare([]byte(key), keyBytes) != 1 {
				logger.Warn("Rejected request with invalid api key", "path", r.URL.Path)
				response.WriteJSONError(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
