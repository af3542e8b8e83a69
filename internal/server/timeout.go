package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds a request's total lifetime, which for the
// proxied routes includes the downstream RAG call: the deadline rides the
// request context, so the proxy client's own per-call budget is clipped by
// it. Cancellation is cooperative — the handler is not forcibly
// terminated.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
