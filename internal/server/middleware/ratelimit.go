package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per client IP
// and endpoint to the specified number per minute. Uses a sliding window
// algorithm. Rejected requests get a 429 in the standard error envelope.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAuthError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
		}),
	)
}
