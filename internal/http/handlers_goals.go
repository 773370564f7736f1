package http

import (
	"net/http"

	"meurenda/internal/core"
	"meurenda/internal/goals"
)

// PlanResponse pairs a goal with its computed plan.
type PlanResponse struct {
	Goal core.Goal  `json:"goal"`
	Plan goals.Plan `json:"plan"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.finance.Goals())
}

func (s *Server) handleSaveGoal(w http.ResponseWriter, r *http.Request) {
	var g core.Goal
	if err := decodeJSON(r, &g); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.finance.SaveGoal(r.Context(), g)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeMutation(w, http.StatusOK, saved)
}

func (s *Server) handlePreviewGoal(w http.ResponseWriter, r *http.Request) {
	var draft core.Goal
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.finance.PreviewPlan(draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeMutation(w, http.StatusOK, map[string]string{"deleted": r.PathValue("id")})
}

func (s *Server) handleClearGoals(w http.ResponseWriter, r *http.Request) {
	s.finance.ClearGoals(r.Context())
	s.writeMutation(w, http.StatusOK, s.finance.Goals())
}

func (s *Server) handleActivateGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.ActivateGoal(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeMutation(w, http.StatusOK, s.finance.Goals())
}

func (s *Server) handleActivePlan(w http.ResponseWriter, r *http.Request) {
	g, plan, err := s.finance.ActivePlan()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PlanResponse{Goal: g, Plan: plan})
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	days, err := s.finance.Tracking()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}
