package api

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/nekroforge/preset-switch/pkg/preset"
)

type statisticsResponse struct {
	TotalPresets      int `json:"total_presets"`
	TotalTriggerRules int `json:"total_trigger_rules"`
	ActiveContexts    int `json:"active_contexts"`
	PendingTasks      int `json:"pending_tasks"`
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	presets, err := s.presets.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	activeContexts, err := s.presets.ActiveContexts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	pendingTasks, err := s.tasks.CountPending(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, statisticsResponse{
		TotalPresets: len(presets),
		TotalTriggerRules: lo.SumBy(presets, func(p *preset.Preset) int {
			return len(p.TriggerRules)
		}),
		ActiveContexts: len(activeContexts),
		PendingTasks:   pendingTasks,
	})
}
