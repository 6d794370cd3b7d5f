package api

import (
	"net/http"

	"github.com/go-chi/chi"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.tasks.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

type setTaskRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSetTask(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")

	var req setTaskRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Content == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "content is required; use /clear to blank a task"})
		return
	}

	if err := s.tasks.Set(r.Context(), contextID, req.Content); err != nil {
		s.writeError(w, err)
		return
	}

	task, err := s.tasks.Get(r.Context(), contextID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	task, err := s.tasks.Get(r.Context(), contextID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	if err := s.tasks.Delete(r.Context(), contextID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "task for " + contextID + " deleted"})
}

func (s *Server) handleClearTask(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	if err := s.tasks.Clear(r.Context(), contextID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "task for " + contextID + " cleared"})
}
