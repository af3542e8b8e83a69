package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/neel92654/PDF-QA-Bot/internal/ratelimit"
)

// IdentityFunc derives the rate-limit identity for a request: the
// authenticated principal when one is available, otherwise the normalized
// remote address.
type IdentityFunc func(r *http.Request) string

// RateLimitMiddleware gates a route behind its fixed-window budget. Each
// route carries its own Limiter, so exhausting the upload budget does not
// block questions. Denials get a 429 with Retry-After and the standard
// X-RateLimit-* headers.
func RateLimitMiddleware(route string, limiter *ratelimit.Limiter, identity IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := route + ":" + identity(r)
			decision := limiter.Admit(key)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))

			if !decision.Allowed {
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate limit exceeded for %s, retry in %s"}`, route, (time.Duration(retryAfter) * time.Second).String())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
