// Package httpapi is the JSON-over-HTTP surface of the diagrams server.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/diagrams/internal/logging"
	"github.com/dmitrijs2005/diagrams/internal/server/models"
	"github.com/dmitrijs2005/diagrams/internal/server/ratelimit"
	"github.com/dmitrijs2005/diagrams/internal/server/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UserService is what the handlers need from services.UserService.
type UserService interface {
	Register(ctx context.Context, userName, email, password string) (*models.User, error)
	Login(ctx context.Context, userName, password string) (*models.AccessToken, error)
	Authenticate(ctx context.Context, token string) (*models.SessionIdentity, error)
	Logout(ctx context.Context, identity *models.SessionIdentity) error
	DeleteAccount(ctx context.Context, identity *models.SessionIdentity) error
}

// DiagramService is what the handlers need from services.DiagramService.
type DiagramService interface {
	Create(ctx context.Context, userID int64, title string, content json.RawMessage) (*models.Diagram, error)
	List(ctx context.Context, userID int64) ([]*models.Diagram, error)
	Get(ctx context.Context, userID, id int64) (*models.Diagram, error)
	Update(ctx context.Context, userID, id int64, patch services.DiagramPatch) (*models.Diagram, error)
	Delete(ctx context.Context, userID, id int64) error
	Share(ctx context.Context, userID, id int64) (*models.Diagram, error)
	GetShared(ctx context.Context, shareUUID string) (*models.Diagram, error)
}

// Exporter uploads a diagram snapshot and returns where to fetch it.
type Exporter interface {
	Export(ctx context.Context, userID, id int64) (*services.ExportResult, error)
}

// Options tunes request handling.
type Options struct {
	MaxBodyBytes       int64
	LoginRatePerSecond float64
	LoginRateBurst     int
	// Limiter, when set, replaces the one built from the two fields above.
	// Share it with other login endpoints to give a client one budget.
	Limiter *ratelimit.Limiter
	// Ping reports database health for /healthz. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// Handler holds the dependencies of all HTTP endpoints.
type Handler struct {
	users        UserService
	diagrams     DiagramService
	exporter     Exporter
	logger       logging.Logger
	validator    *Validator
	limiter      *ratelimit.Limiter
	ping         func(ctx context.Context) error
	maxBodyBytes int64
}

func NewHandler(us UserService, ds DiagramService, ex Exporter, logger logging.Logger, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.FromConfig(opts.LoginRatePerSecond, opts.LoginRateBurst)
	}

	return &Handler{
		users:        us,
		diagrams:     ds,
		exporter:     ex,
		logger:       logger,
		validator:    NewValidator(),
		limiter:      opts.Limiter,
		ping:         opts.Ping,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.recoverPanics, h.logRequests)

	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	r.Handle("/auth/login", limitRequests(h.limiter, http.HandlerFunc(h.login))).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.requireAuth(h.logout)).Methods(http.MethodPost)

	r.HandleFunc("/users/me", h.requireAuth(h.me)).Methods(http.MethodGet)
	r.HandleFunc("/users/me", h.requireAuth(h.deleteMe)).Methods(http.MethodDelete)

	r.HandleFunc("/users/me/diagrams", h.requireAuth(h.createDiagram)).Methods(http.MethodPost)
	r.HandleFunc("/users/me/diagrams", h.requireAuth(h.listDiagrams)).Methods(http.MethodGet)
	r.HandleFunc("/diagrams/{id:[0-9]+}", h.requireAuth(h.getDiagram)).Methods(http.MethodGet)
	r.HandleFunc("/diagrams/{id:[0-9]+}", h.requireAuth(h.updateDiagram)).Methods(http.MethodPut)
	r.HandleFunc("/diagrams/{id:[0-9]+}", h.requireAuth(h.deleteDiagram)).Methods(http.MethodDelete)
	r.HandleFunc("/diagrams/{id:[0-9]+}/share", h.requireAuth(h.shareDiagram)).Methods(http.MethodPost)
	r.HandleFunc("/diagrams/{id:[0-9]+}/export", h.requireAuth(h.exportDiagram)).Methods(http.MethodPost)
	r.HandleFunc("/shared/{uuid}", h.getShared).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the online diagram API"})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
