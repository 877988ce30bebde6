package api

import (
	"net/http"
	"time"
)

type helloResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, helloResponse{
		Message:   Greeting,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
