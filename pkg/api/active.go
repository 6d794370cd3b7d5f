package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
)

type setActiveRequest struct {
	Name string `json:"name"`
	// Message, when set, is recorded as a handoff task: a note the
	// outgoing preset leaves for the incoming one in this context.
	Message string `json:"message,omitempty"`
}

func (s *Server) handleGetActive(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	p, err := s.presets.GetActive(r.Context(), contextID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if p == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"context_id": contextID, "active": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"context_id": contextID, "active": p})
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")

	var req setActiveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	// Capture the outgoing preset before switching so the handoff note
	// names who left it.
	var handoff string
	if req.Message != "" {
		from := "The previous preset"
		if prev, err := s.presets.GetActive(r.Context(), contextID); err == nil && prev != nil {
			from = fmt.Sprintf("Preset %q", prev.Name)
		}
		handoff = fmt.Sprintf("%s left a message: %s\nComplete it, then switch back to the previous preset.", from, req.Message)
	}

	p, err := s.presets.SetActive(r.Context(), contextID, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if handoff != "" {
		if err := s.tasks.Set(r.Context(), contextID, handoff); err != nil {
			s.writeError(w, err)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"context_id": contextID, "active": p})
}

func (s *Server) handleClearActive(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	if err := s.presets.ClearActive(r.Context(), contextID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "active preset cleared for " + contextID})
}

type evaluateRequest struct {
	ContextID   string `json:"context_id"`
	MessageText string `json:"message_text"`
}

// handleEvaluate runs the matcher directly, bypassing the message bus.
// Used by the web UI to let operators test trigger configurations.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.ContextID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "context_id is required"})
		return
	}

	decision, err := s.matcher.Evaluate(r.Context(), req.ContextID, req.MessageText)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if decision == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}
