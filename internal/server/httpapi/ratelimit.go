package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/diagrams/internal/server/ratelimit"
)

// limitRequests rejects requests over the per-IP limit with 429.
func limitRequests(l *ratelimit.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(l.RetryAfter()))
			writeDetail(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP uses the connection's remote address. Forwarding headers are
// ignored since they are client-controlled.
func clientIP(r *http.Request) string {
	return ratelimit.HostKey(r.RemoteAddr)
}
