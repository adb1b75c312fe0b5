package http

import (
	"net/http"

	"github.com/legacy-quest/progression-engine/internal/application/command"
	"github.com/legacy-quest/progression-engine/internal/application/query"
	"github.com/legacy-quest/progression-engine/internal/domain/mission"
)

// identityFrom reads email and sessionId from the query string.
func identityFrom(r *http.Request) (email, sessionID string) {
	q := r.URL.Query()
	return q.Get("email"), q.Get("sessionId")
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE & LEAGUE
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProfile handles GET /api/profile?email=|sessionId=.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	email, sessionID := identityFrom(r)
	dto, err := s.deps.GetProfile.Handle(r.Context(), query.GetProfileQuery{Email: email, SessionID: sessionID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleGetLeague handles GET /api/league?email=|sessionId=.
func (s *Server) handleGetLeague(w http.ResponseWriter, r *http.Request) {
	email, sessionID := identityFrom(r)
	dto, err := s.deps.GetLeague.Handle(r.Context(), query.GetLeagueStandingQuery{Email: email, SessionID: sessionID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// MISSIONS
// ══════════════════════════════════════════════════════════════════════════════

// startRunRequest is the body of POST /api/missions/{key}/runs.
type startRunRequest struct {
	Email     string `json:"email"`
	SessionID string `json:"sessionId"`
	CoachID   string `json:"coachId"`
}

// runEventRequest is the body of POST /api/runs/{id}/events.
type runEventRequest struct {
	Email     string         `json:"email"`
	SessionID string         `json:"sessionId"`
	Action    command.Action `json:"action"`
	OptionID  string         `json:"optionId"`
	Thesis    string         `json:"thesis"`
	Question  int            `json:"question"`
	Choice    int            `json:"choice"`
}

type runResponse struct {
	Run        *mission.Run     `json:"run,omitempty"`
	Mission    *mission.Mission `json:"mission,omitempty"`
	Coach      *mission.Coach   `json:"coach,omitempty"`
	Advice     string           `json:"advice,omitempty"`
	Accepts    []mission.Event  `json:"accepts"`
	Correct    *bool            `json:"correct,omitempty"`
	Completion *completionView  `json:"completion,omitempty"`
}

// completionView is what a finished mission credited.
type completionView struct {
	MissionKey  string           `json:"missionKey"`
	Kind        mission.Kind     `json:"kind"`
	Awards      []mission.Award  `json:"awards"`
	XPEarned    int64            `json:"xpEarned"`
	TotalXP     int64            `json:"totalXP"`
	PlayerLevel int64            `json:"playerLevel"`
	LeveledUp   bool             `json:"leveledUp"`
	FirstTime   bool             `json:"firstTime"`
	Outcome     *mission.Outcome `json:"outcome,omitempty"`
	Unlocked    []string         `json:"unlocked"`
	NewBadges   []string         `json:"newBadges"`
}

func toCompletionView(res *command.CompleteMissionResult) *completionView {
	if res == nil {
		return nil
	}
	v := &completionView{
		MissionKey:  res.MissionKey,
		Kind:        res.Kind,
		Awards:      res.Awards,
		XPEarned:    res.XPEarned,
		TotalXP:     res.TotalXP,
		PlayerLevel: res.PlayerLevel,
		LeveledUp:   res.LeveledUp,
		FirstTime:   res.FirstTime,
		Outcome:     res.Outcome,
		Unlocked:    append([]string{}, res.Unlocked...),
		NewBadges:   make([]string, 0, len(res.NewBadges)),
	}
	for _, b := range res.NewBadges {
		v.NewBadges = append(v.NewBadges, string(b))
	}
	return v
}

// handleListMissions handles GET /api/missions.
func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	email, sessionID := identityFrom(r)
	dto, err := s.deps.ListMissions.Handle(r.Context(), query.ListMissionsQuery{Email: email, SessionID: sessionID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleStartMission handles POST /api/missions/{key}/runs.
func (s *Server) handleStartMission(w http.ResponseWriter, r *http.Request) {
	s.startRun(w, r, r.PathValue("key"), false)
}

// handleStartRandomMission handles POST /api/missions/random/runs.
func (s *Server) handleStartRandomMission(w http.ResponseWriter, r *http.Request) {
	s.startRun(w, r, "", true)
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request, key string, random bool) {
	var req startRunRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.StartMission.Handle(r.Context(), command.StartMissionCommand{
		Email:      req.Email,
		SessionID:  req.SessionID,
		MissionKey: key,
		CoachID:    req.CoachID,
		Random:     random,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	coach := res.Coach
	writeJSON(w, r, http.StatusCreated, runResponse{
		Run:     res.Run,
		Mission: res.Mission,
		Coach:   &coach,
		Advice:  res.Advice,
		Accepts: mission.Accepts(res.Run.State),
	})
}

// handleGetRun handles GET /api/runs/{id}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	email, sessionID := identityFrom(r)
	dto, err := s.deps.GetRun.Handle(r.Context(), query.GetRunQuery{
		Email:     email,
		SessionID: sessionID,
		RunID:     r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleAdvanceRun handles POST /api/runs/{id}/events.
func (s *Server) handleAdvanceRun(w http.ResponseWriter, r *http.Request) {
	var req runEventRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.AdvanceMission.Handle(r.Context(), command.AdvanceMissionCommand{
		Email:     req.Email,
		SessionID: req.SessionID,
		RunID:     r.PathValue("id"),
		Action:    req.Action,
		OptionID:  req.OptionID,
		Thesis:    req.Thesis,
		Question:  req.Question,
		Choice:    req.Choice,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, runResponse{
		Run:        res.Run,
		Accepts:    res.Accepts,
		Correct:    res.Correct,
		Completion: toCompletionView(res.Completion),
	})
}

// handleWhatIf handles GET /api/runs/{id}/whatif.
func (s *Server) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	email, sessionID := identityFrom(r)
	dto, err := s.deps.GetRun.WhatIf(r.Context(), query.GetRunQuery{
		Email:     email,
		SessionID: sessionID,
		RunID:     r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleAbandonRun handles DELETE /api/runs/{id}.
func (s *Server) handleAbandonRun(w http.ResponseWriter, r *http.Request) {
	email, sessionID := identityFrom(r)
	err := s.deps.AbandonMission.Handle(r.Context(), command.AbandonMissionCommand{
		Email:     email,
		SessionID: sessionID,
		RunID:     r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"abandoned": true})
}
