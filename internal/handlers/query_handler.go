package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaestor/internal/interfaces"
	"github.com/ternarybob/quaestor/internal/models"
)

// QueryHandler serves the generation endpoint and the per-session retrieval
// trace.
type QueryHandler struct {
	queryService interfaces.QueryService
	sessions     interfaces.SessionStore
	validate     *validator.Validate
	logger       arbor.ILogger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(queryService interfaces.QueryService, sessions interfaces.SessionStore, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		sessions:     sessions,
		validate:     validator.New(),
		logger:       logger,
	}
}

// QueryHandler handles POST /api/query: runs the retrieval pipeline and
// returns the structured answer. Pipeline degradation is not an HTTP error;
// only a malformed request, cancellation, or generation failure is.
func (h *QueryHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req interfaces.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "message is required and must be at most 4000 characters")
		return
	}

	resp, err := h.queryService.Query(r.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrGeneration) && resp != nil {
			// The retrieval half succeeded; return it with the failure.
			h.logger.Warn().Err(err).Msg("Generation failed, returning partial result")
			WriteJSON(w, http.StatusBadGateway, resp)
			return
		}
		if r.Context().Err() != nil {
			// Client went away; nothing useful to write.
			return
		}
		h.logger.Error().Err(err).Msg("Query pipeline failed")
		WriteError(w, http.StatusInternalServerError, "Query processing failed")
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// TraceHandler handles GET /api/query/trace/{session_id}: returns the
// retrieval steps of the session's most recent query.
func (h *QueryHandler) TraceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/query/trace/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			WriteError(w, http.StatusNotFound, "Session not found or expired")
			return
		}
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Session lookup failed")
		WriteError(w, http.StatusInternalServerError, "Session lookup failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":      sess.ID,
		"turns":           len(sess.Turns),
		"retrieval_steps": sess.LastTrace,
	})
}
