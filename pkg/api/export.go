package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/samber/lo"

	"github.com/nekroforge/preset-switch/pkg/preset"
)

type exportEnvelope struct {
	ExportedAt time.Time        `json:"exported_at"`
	TotalCount int              `json:"total_count"`
	Presets    []*preset.Preset `json:"presets"`
}

type importRequest struct {
	Presets []importPreset `json:"presets"`
}

type importPreset struct {
	Name          string               `json:"name"`
	PromptText    string               `json:"prompt_text"`
	Description   string               `json:"description"`
	IsolationMode preset.IsolationMode `json:"isolation_mode"`
	AllowList     []string             `json:"allow_list"`
	DenyList      []string             `json:"deny_list"`
	TriggerRules  []preset.TriggerRule `json:"trigger_rules"`
}

type importResponse struct {
	SuccessCount int      `json:"success_count"`
	FailedCount  int      `json:"failed_count"`
	TotalCount   int      `json:"total_count"`
	Errors       []string `json:"errors"`
}

func (s *Server) handleExportAll(w http.ResponseWriter, r *http.Request) {
	presets, err := s.presets.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeExport(w, presets)
}

// handleExportSome exports a comma-separated list of preset names. All
// requested names must exist or the whole request fails with 404.
func (s *Server) handleExportSome(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "names")
	names := lo.Filter(strings.Split(raw, ","), func(name string, _ int) bool {
		return strings.TrimSpace(name) != ""
	})
	if len(names) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no preset names given"})
		return
	}

	presets := make([]*preset.Preset, 0, len(names))
	var missing []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		p, err := s.presets.Get(r.Context(), name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		presets = append(presets, p)
	}
	if len(missing) > 0 {
		s.writeJSON(w, http.StatusNotFound, errorResponse{
			Error: "presets not found: " + strings.Join(missing, ", "),
		})
		return
	}
	s.writeExport(w, presets)
}

func (s *Server) writeExport(w http.ResponseWriter, presets []*preset.Preset) {
	filename := fmt.Sprintf("presets_export_%s.json", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	s.writeJSON(w, http.StatusOK, exportEnvelope{
		ExportedAt: time.Now().UTC(),
		TotalCount: len(presets),
		Presets:    presets,
	})
}

// handleImport creates a preset per entry. A failing entry (duplicate name,
// invalid rule) is reported and skipped; the rest still import.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Presets == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: `missing "presets" array`})
		return
	}

	resp := importResponse{
		TotalCount: len(req.Presets),
		Errors:     []string{},
	}

	for _, item := range req.Presets {
		p := &preset.Preset{
			Name:          item.Name,
			PromptText:    item.PromptText,
			Description:   item.Description,
			IsolationMode: item.IsolationMode,
			AllowList:     item.AllowList,
			DenyList:      item.DenyList,
			TriggerRules:  item.TriggerRules,
		}
		if p.IsolationMode == "" {
			p.IsolationMode = preset.IsolationNone
		}

		if _, err := s.presets.Create(r.Context(), p); err != nil {
			resp.FailedCount++
			resp.Errors = append(resp.Errors, fmt.Sprintf("import of %q failed: %s", item.Name, err))
			s.logger.Error("Preset import failed", "name", item.Name, "error", err)
			continue
		}
		resp.SuccessCount++
	}

	s.writeJSON(w, http.StatusOK, resp)
}
