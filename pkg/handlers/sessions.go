package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// maxQuestionBytes bounds the ask request body.
const maxQuestionBytes = 64 << 10

// CreateSessionResponse is returned by POST /api/sessions.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// AskRequest is the body of POST /api/sessions/{sid}/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// HistoryResponse lists a session's turns, oldest first.
type HistoryResponse struct {
	SessionID string                    `json:"session_id"`
	Capacity  int                       `json:"capacity"`
	Turns     []models.ConversationTurn `json:"turns"`
}

// SessionsHandler serves conversation sessions and the ask endpoint.
type SessionsHandler struct {
	askService services.AskService
	sessions   *services.SessionStore
	logger     *zap.Logger
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(askService services.AskService, sessions *services.SessionStore, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{
		askService: askService,
		sessions:   sessions,
		logger:     logger,
	}
}

// RegisterRoutes registers the session routes on the given mux.
func (h *SessionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.Create)
	mux.HandleFunc("POST /api/sessions/{sid}/ask", h.Ask)
	mux.HandleFunc("GET /api/sessions/{sid}/history", h.History)
	mux.HandleFunc("DELETE /api/sessions/{sid}", h.Delete)
}

// Create handles POST /api/sessions
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := h.sessions.Create()
	response := ApiResponse{Success: true, Data: CreateSessionResponse{SessionID: id}}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Ask handles POST /api/sessions/{sid}/ask
// Pipeline outcomes (rejected, generation_error, execution_error) are
// answered with 200; the status field tells them apart.
func (h *SessionsHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	conv, err := h.sessions.Get(sessionID)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	ctx := audit.WithSessionID(r.Context(), sessionID)
	resp, err := h.askService.Ask(ctx, conv, req.Question)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmptyQuestion) {
			h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		h.logger.Error("Ask failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "schema_unavailable", "The database schema could not be read")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: resp.Status == models.TurnStatusSuccess, Data: resp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/sessions/{sid}/history
func (h *SessionsHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	conv, err := h.sessions.Get(sessionID)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	data := HistoryResponse{
		SessionID: sessionID,
		Capacity:  conv.Capacity(),
		Turns:     conv.Recent(0),
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/sessions/{sid}
// The conversation is discarded; later requests with the same ID get 404.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := ParseSessionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.sessions.Delete(sessionID); err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		h.writeError(w, http.StatusNotFound, "session_not_found", "Session not found or expired")
		return
	}
	h.logger.Error("Session lookup failed", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "internal_error", "Session lookup failed")
}

func (h *SessionsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
