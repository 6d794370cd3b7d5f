// Package api is the admin surface the bundled web UI talks to: preset
// CRUD, active-preset control, tasks, statistics and preset export/import.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi"
	"github.com/rs/cors"

	"github.com/nekroforge/preset-switch/pkg/preset"
	"github.com/nekroforge/preset-switch/pkg/tasks"
)

type Server struct {
	logger    *log.Logger
	presets   *preset.Service
	matcher   *preset.Matcher
	tasks     *tasks.Service
	webAssets string
}

// NewServer builds the admin surface. webAssetPath points at the bundled
// web UI directory; empty disables static serving (API only).
func NewServer(
	logger *log.Logger,
	presets *preset.Service,
	matcher *preset.Matcher,
	taskService *tasks.Service,
	webAssetPath string,
) *Server {
	return &Server{
		logger:    logger,
		presets:   presets,
		matcher:   matcher,
		tasks:     taskService,
		webAssets: webAssetPath,
	}
}

func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()
	router.Use(cors.New(cors.Options{
		AllowCredentials: true,
		AllowedOrigins:   []string{"*"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		Debug:            false,
	}).Handler)

	router.Get("/healthz", s.handleHealth)

	router.Route("/api", func(r chi.Router) {
		r.Get("/presets", s.handleListPresets)
		r.Post("/presets", s.handleCreatePreset)
		r.Get("/presets/{name}", s.handleGetPreset)
		r.Put("/presets/{name}", s.handleUpdatePreset)
		r.Delete("/presets/{name}", s.handleDeletePreset)

		r.Get("/contexts/{contextID}/active", s.handleGetActive)
		r.Put("/contexts/{contextID}/active", s.handleSetActive)
		r.Delete("/contexts/{contextID}/active", s.handleClearActive)

		r.Post("/evaluate", s.handleEvaluate)

		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{contextID}", s.handleGetTask)
		r.Put("/tasks/{contextID}", s.handleSetTask)
		r.Delete("/tasks/{contextID}", s.handleDeleteTask)
		r.Post("/tasks/{contextID}/clear", s.handleClearTask)

		r.Get("/statistics", s.handleStatistics)

		r.Get("/export/presets", s.handleExportAll)
		r.Get("/export/presets/{names}", s.handleExportSome)
		r.Post("/import/presets", s.handleImport)
	})

	if s.webAssets != "" {
		router.Handle("/*", http.FileServer(http.Dir(s.webAssets)))
	}

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto status codes: duplicate name 409,
// not found 404, isolation violation 403, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, preset.ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, preset.ErrNotFound), errors.Is(err, tasks.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, preset.ErrIsolationViolation):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}
