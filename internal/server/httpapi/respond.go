package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/diagrams/internal/common"
)

const (
	msgNotAuthenticated   = "Not authenticated"
	msgCouldNotValidate   = "Could not validate credentials"
	msgInvalidCredentials = "Invalid credentials"
	msgUsernameTaken      = "Username already registered"
	msgEmailTaken         = "Email already registered"
	msgNotFound           = "Not found"
	msgBadRequest         = "Malformed request body"
	msgTooManyRequests    = "Too many requests"
	msgInternal           = "Internal server error"
)

type errorBody struct {
	Detail string            `json:"detail"`
	Errors map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", common.BearerScheme)
	writeDetail(w, http.StatusUnauthorized, detail)
}

// writeError maps a service error to a response. Authentication failures
// share generic messages; the specific cause is for logs only.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: verr.Error(), Errors: verr.Errors})
	case errors.Is(err, common.ErrNotAuthenticated):
		writeUnauthorized(w, msgNotAuthenticated)
	case errors.Is(err, common.ErrInvalidCredentials):
		writeUnauthorized(w, msgInvalidCredentials)
	case common.IsAuthError(err):
		writeUnauthorized(w, msgCouldNotValidate)
	case errors.Is(err, common.ErrUsernameTaken):
		writeDetail(w, http.StatusBadRequest, msgUsernameTaken)
	case errors.Is(err, common.ErrEmailTaken):
		writeDetail(w, http.StatusBadRequest, msgEmailTaken)
	case errors.Is(err, common.ErrValidation):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeDetail(w, http.StatusNotFound, msgNotFound)
	default:
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, msgInternal)
	}
}

// decodeJSON reads a size-limited JSON body into dst.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug(r.Context(), "bad json request", "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusBadRequest, msgBadRequest)
		return false
	}
	return true
}
