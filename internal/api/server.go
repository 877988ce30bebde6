package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/userhub/internal/service"
)

// Greeting is returned by GET /api/hello.
const Greeting = "Hello! Welcome to the userhub learning project."

// Server holds all dependencies for the REST API handlers.
type Server struct {
	userSvc         service.UserService
	notificationSvc service.NotificationService
	logger          *slog.Logger
}

// New creates a new API Server backed by the provided services.
// notificationSvc may be nil, in which case the notification routes are not mounted.
func New(userSvc service.UserService, notificationSvc service.NotificationService, logger *slog.Logger) *Server {
	return &Server{
		userSvc:         userSvc,
		notificationSvc: notificationSvc,
		logger:          logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/hello", s.handleHello)

	// Users CRUD. The static segments are registered before {id} so they
	// are never parsed as ids.
	r.Get("/users", s.handleListUsers)
	r.Post("/users", s.handleCreateUser)
	r.Get("/users/search", s.handleSearchUsers)
	r.Get("/users/stats", s.handleUserStats)
	r.Get("/users/{id}", s.handleGetUser)
	r.Put("/users/{id}", s.handleUpdateUser)
	r.Delete("/users/{id}", s.handleDeleteUser)

	// Notification status and delivery log
	if s.notificationSvc != nil {
		r.Get("/notifications/status", s.handleNotificationStatus)
		r.Post("/notifications/test", s.handleTestNotification)
		r.Get("/notifications/log", s.handleListNotificationLog)
	}
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
