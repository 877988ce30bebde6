package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shaharia-lab/userhub/internal/service"
)

type testNotificationRequest struct {
	To string `json:"to"`
}

// handleNotificationStatus reports whether email delivery is configured.
func (s *Server) handleNotificationStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.notificationSvc.Status())
}

// handleTestNotification sends a test email to the address in the body.
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	var req testNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.notificationSvc.SendTest(r.Context(), req.To); err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		// Transport errors can carry host and auth details; keep them in the log.
		s.logger.Warn("test notification failed", "to", req.To, "error", err)
		writeError(w, http.StatusBadGateway, "failed to deliver test notification")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListNotificationLog returns recent notification delivery log entries.
// Accepts an optional ?limit=N query parameter (default 50).
func (s *Server) handleListNotificationLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.notificationSvc.ListLog(r.Context(), limit)
	if err != nil {
		s.logger.Error("list notification log failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notification log")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
