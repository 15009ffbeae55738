package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/evihealth/healthnav/internal/models"
)

// retryReply is shown when the flow propagates a hard completion failure;
// the failure itself is logged, never surfaced raw.
const retryReply = "Something went wrong on my side. Please try again in a moment."

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("api.handleChat: invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	entry, sessionID := s.sessions.GetOrCreate(req.SessionID)
	entry.Lock()
	defer entry.Unlock()

	reply, err := s.conversation.ProcessTurn(r.Context(), entry.Session, req.Message)
	if err != nil {
		slog.Error("api.handleChat: turn processing failed", "session", sessionID, "error", err)
		reply = retryReply
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		SessionID:   sessionID,
		Reply:       reply,
		UserProfile: entry.Session.Profile,
		Suggestions: entry.Session.Suggestions,
	})
}
