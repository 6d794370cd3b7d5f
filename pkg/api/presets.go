package api

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/nekroforge/preset-switch/pkg/preset"
)

type createPresetRequest struct {
	Name          string               `json:"name"`
	PromptText    string               `json:"prompt_text"`
	Description   string               `json:"description"`
	IsolationMode preset.IsolationMode `json:"isolation_mode"`
	AllowList     []string             `json:"allow_list"`
	DenyList      []string             `json:"deny_list"`
	TriggerRules  []preset.TriggerRule `json:"trigger_rules"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.presets.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, presets)
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var req createPresetRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	p := &preset.Preset{
		Name:          req.Name,
		PromptText:    req.PromptText,
		Description:   req.Description,
		IsolationMode: req.IsolationMode,
		AllowList:     req.AllowList,
		DenyList:      req.DenyList,
		TriggerRules:  req.TriggerRules,
	}
	if p.IsolationMode == "" {
		p.IsolationMode = preset.IsolationNone
	}

	created, err := s.presets.Create(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := s.presets.Get(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var patch preset.Patch
	if !s.decodeBody(w, r, &patch) {
		return
	}

	updated, err := s.presets.Update(r.Context(), name, patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.presets.Delete(r.Context(), name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "preset " + name + " deleted"})
}
