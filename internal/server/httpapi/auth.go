package httpapi

import (
	"mime"
	"net/http"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/server/models"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// registeredResponse is returned once, on account creation.
type registeredResponse struct {
	userResponse
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registeredResponse{
		userResponse: userResponse{ID: user.ID, Username: user.UserName, Email: user.Email},
		CreatedAt:    user.CreatedAt,
	})
}

// login accepts either a JSON body or an urlencoded form with the same
// field names.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeDetail(w, http.StatusBadRequest, msgBadRequest)
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	} else if !h.decodeJSON(w, r, &req) {
		return
	}

	token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	expiresIn := int64(time.Until(token.ExpiresAt).Round(time.Second).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token.Token,
		TokenType:   token.TokenType,
		ExpiresIn:   expiresIn,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	if err := h.users.Logout(r.Context(), identity); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	writeJSON(w, http.StatusOK, userResponse{
		ID:       identity.UserID,
		Username: identity.UserName,
		Email:    identity.Email,
	})
}

func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	if err := h.users.DeleteAccount(r.Context(), identity); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mustIdentity is only called behind requireAuth.
func mustIdentity(r *http.Request) *models.SessionIdentity {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		panic("httpapi: handler registered without requireAuth")
	}
	return identity
}
