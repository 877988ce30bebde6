package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/userhub/internal/service"
	"github.com/shaharia-lab/userhub/internal/storage"
)

type userRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type statsResponse struct {
	TotalUsers int64  `json:"totalUsers"`
	Timestamp  string `json:"timestamp"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userSvc.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []*storage.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.userSvc.Create(r.Context(), &storage.User{Name: req.Name, Email: req.Email})
	if err != nil {
		s.writeServiceError(w, err, "create user failed", "failed to create user")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}
	user, err := s.userSvc.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("get user failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := s.userSvc.Update(r.Context(), id, &storage.User{Name: req.Name, Email: req.Email})
	if err != nil {
		s.writeServiceError(w, err, "update user failed", "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}
	if err := s.userSvc.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err, "delete user failed", "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "user deleted successfully"})
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("name") {
		writeError(w, http.StatusBadRequest, "query parameter \"name\" is required")
		return
	}
	users, err := s.userSvc.Search(r.Context(), q.Get("name"))
	if err != nil {
		s.logger.Error("search users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search users")
		return
	}
	if users == nil {
		users = []*storage.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	n, err := s.userSvc.Count(r.Context())
	if err != nil {
		s.logger.Error("count users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count users")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalUsers: n,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// writeServiceError maps typed service errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, logMsg, publicMsg string) {
	var ve *service.ValidationError
	var ce *service.ConflictError
	var nfe *service.NotFoundError
	switch {
	case errors.As(err, &nfe):
		writeError(w, http.StatusNotFound, nfe.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.As(err, &ce):
		writeError(w, http.StatusConflict, ce.Error())
	default:
		s.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, publicMsg)
	}
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id "+strconv.Quote(raw))
		return 0, false
	}
	return id, true
}
