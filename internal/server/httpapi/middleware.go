package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/common"
	"github.com/dmitrijs2005/diagrams/internal/server/auth"
	"github.com/dmitrijs2005/diagrams/internal/server/metrics"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/gorilla/mux"
)

type ctxKey string

const identityKey ctxKey = "identity"

// IdentityFromContext returns the identity stored by requireAuth.
func IdentityFromContext(ctx context.Context) (*models.SessionIdentity, bool) {
	id, ok := ctx.Value(identityKey).(*models.SessionIdentity)
	return id, ok
}

// requireAuth resolves the bearer token and stores the identity on the
// request context.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get(common.AuthorizationHeaderName))
		if err != nil {
			metrics.RecordVerify("missing")
			h.writeError(w, r, err)
			return
		}

		identity, err := h.users.Authenticate(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// logRequests logs and times every routed request.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		metrics.RecordRequest(route, r.Method, rec.status, elapsed.Seconds())
		h.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"remote", clientIP(r),
		)
	})
}

// recoverPanics turns a handler panic into a 500.
func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				h.logger.Error(r.Context(), "panic in handler", "path", r.URL.Path, "panic", p)
				writeDetail(w, http.StatusInternalServerError, msgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
