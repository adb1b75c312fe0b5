package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/legacy-quest/progression-engine/internal/application/command"
	"github.com/legacy-quest/progression-engine/internal/application/query"
	"github.com/legacy-quest/progression-engine/internal/domain/progress"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/internal/domain/streak"
	"github.com/legacy-quest/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK DTOs
// ══════════════════════════════════════════════════════════════════════════════

// streakRequest is the body of POST /api/streak.
type streakRequest struct {
	Action     string          `json:"action"`
	Email      string          `json:"email"`
	SessionID  string          `json:"sessionId"`
	StreakData *clientProgress `json:"streakData"`
}

// clientProgress is the progress a browser cached locally.
type clientProgress struct {
	CurrentStreak     *int     `json:"currentStreak"`
	TotalXP           *float64 `json:"totalXP"`
	PlayerLevel       *int64   `json:"playerLevel"`
	CompletedMissions []string `json:"completedMissions"`
	SessionID         string   `json:"sessionId"`
}

type streakView struct {
	query.StreakDTO
	Demo bool `json:"demo,omitempty"`
}

type claimResponse struct {
	CurrentStreak  int      `json:"currentStreak"`
	XPEarned       int64    `json:"xpEarned"`
	TotalXP        int64    `json:"totalXP"`
	BonusEarned    bool     `json:"bonusEarned"`
	AlreadyClaimed bool     `json:"alreadyClaimed"`
	LeveledUp      bool     `json:"leveledUp"`
	PlayerLevel    int64    `json:"playerLevel"`
	NewBadges      []string `json:"newBadges,omitempty"`
	Demo           bool     `json:"demo,omitempty"`
}

type signupResponse struct {
	Email         string `json:"email"`
	CurrentStreak int    `json:"currentStreak"`
	TotalXP       int64  `json:"totalXP"`
	PlayerLevel   int64  `json:"playerLevel"`
	IsExisting    bool   `json:"isExisting"`
	Demo          bool   `json:"demo,omitempty"`
}

type syncResponse struct {
	Success           bool  `json:"success"`
	CurrentStreak     int   `json:"currentStreak,omitempty"`
	TotalXP           int64 `json:"totalXP,omitempty"`
	PlayerLevel       int64 `json:"playerLevel,omitempty"`
	CompletedMissions int   `json:"completedMissions,omitempty"`
	Demo              bool  `json:"demo,omitempty"`
}

type sessionResponse struct {
	SessionID string    `json:"sessionId"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DEMO VALUES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) demoStreak() streakView {
	now := s.deps.Clock.Now().UTC()
	return streakView{
		StreakDTO: query.StreakDTO{
			CurrentStreak: 1,
			TodayClaimed:  true,
			TotalXP:       command.DefaultSignupXP,
			LastClaimDate: &now,
			PlayerLevel:   progress.Level(command.DefaultSignupXP),
		},
		Demo: true,
	}
}

func demoClaim() claimResponse {
	return claimResponse{
		CurrentStreak: 1,
		XPEarned:      streak.BaseReward,
		TotalXP:       command.DefaultSignupXP + streak.BaseReward,
		PlayerLevel:   progress.Level(command.DefaultSignupXP + streak.BaseReward),
		Demo:          true,
	}
}

func demoSignup(email string, streakCount *int, totalXP *int64) signupResponse {
	resp := signupResponse{
		Email:         email,
		CurrentStreak: command.DefaultSignupStreak,
		TotalXP:       command.DefaultSignupXP,
		Demo:          true,
	}
	if streakCount != nil && *streakCount > 0 {
		resp.CurrentStreak = *streakCount
	}
	if totalXP != nil && *totalXP > 0 {
		resp.TotalXP = *totalXP
	}
	resp.PlayerLevel = progress.Level(resp.TotalXP)
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStreak handles GET /api/streak?email=|sessionId=.
func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	q := query.GetStreakQuery{
		Email:     r.URL.Query().Get("email"),
		SessionID: r.URL.Query().Get("sessionId"),
	}
	if q.Email == "" && q.SessionID == "" {
		writeJSON(w, r, http.StatusOK, streakView{StreakDTO: query.EmptyStreak()})
		return
	}
	if s.deps.Demo {
		writeJSON(w, r, http.StatusOK, s.demoStreak())
		return
	}
	writeJSON(w, r, http.StatusOK, streakView{StreakDTO: s.deps.GetStreak.Handle(r.Context(), q)})
}

// handlePostStreak dispatches POST /api/streak by action.
func (s *Server) handlePostStreak(w http.ResponseWriter, r *http.Request) {
	var req streakRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	switch req.Action {
	case "claim":
		s.claimStreak(w, r, req)
	case "signup":
		s.signup(w, r, req)
	case "sync":
		s.syncProgress(w, r, req)
	default:
		writeJSONError(w, r, http.StatusBadRequest, "invalid_action", "Invalid action")
	}
}

func (s *Server) claimStreak(w http.ResponseWriter, r *http.Request, req streakRequest) {
	if req.Email == "" && req.SessionID == "" {
		s.writeError(w, r, shared.ErrMissingIdentity)
		return
	}
	if s.deps.Demo {
		writeJSON(w, r, http.StatusOK, demoClaim())
		return
	}

	res, err := s.deps.ClaimStreak.Handle(r.Context(), command.ClaimStreakCommand{
		Email:     req.Email,
		SessionID: req.SessionID,
	})
	if errors.Is(err, shared.ErrStorageUnavailable) {
		logger.FromContext(r.Context()).Warn("claim degraded to demo", logger.Err(err))
		writeJSON(w, r, http.StatusOK, demoClaim())
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := claimResponse{
		CurrentStreak:  res.CurrentStreak,
		XPEarned:       res.XPEarned,
		TotalXP:        res.TotalXP,
		BonusEarned:    res.BonusEarned,
		AlreadyClaimed: res.AlreadyClaimed,
		LeveledUp:      res.LeveledUp,
		PlayerLevel:    res.PlayerLevel,
	}
	for _, b := range res.NewBadges {
		resp.NewBadges = append(resp.NewBadges, string(b))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request, req streakRequest) {
	cmd := command.SignupCommand{Email: req.Email, SessionID: req.SessionID}
	if d := req.StreakData; d != nil {
		cmd.Streak = d.CurrentStreak
		if d.TotalXP != nil {
			xp, err := progress.AmountFromFloat(*d.TotalXP)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			cmd.TotalXP = &xp
		}
		if cmd.SessionID == "" {
			cmd.SessionID = d.SessionID
		}
	}
	if err := cmd.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Demo {
		writeJSON(w, r, http.StatusOK, demoSignup(cmd.Email, cmd.Streak, cmd.TotalXP))
		return
	}

	res, err := s.deps.Signup.Handle(r.Context(), cmd)
	if errors.Is(err, shared.ErrStorageUnavailable) {
		logger.FromContext(r.Context()).Warn("signup degraded to demo", logger.Err(err))
		writeJSON(w, r, http.StatusOK, demoSignup(cmd.Email, cmd.Streak, cmd.TotalXP))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, signupResponse{
		Email:         res.Email,
		CurrentStreak: res.CurrentStreak,
		TotalXP:       res.TotalXP,
		PlayerLevel:   res.PlayerLevel,
		IsExisting:    res.IsExisting,
	})
}

// syncProgress never fails once the identity is valid: storage and merge
// errors degrade to a demo acknowledgement.
func (s *Server) syncProgress(w http.ResponseWriter, r *http.Request, req streakRequest) {
	if req.Email == "" && req.SessionID == "" {
		s.writeError(w, r, shared.ErrMissingIdentity)
		return
	}
	if s.deps.Demo {
		writeJSON(w, r, http.StatusOK, syncResponse{Success: true, Demo: true})
		return
	}

	cmd := command.SyncProgressCommand{Email: req.Email, SessionID: req.SessionID}
	if d := req.StreakData; d != nil {
		if d.CurrentStreak != nil {
			cmd.Streak = *d.CurrentStreak
		}
		if d.TotalXP != nil {
			xp, err := progress.AmountFromFloat(*d.TotalXP)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			cmd.TotalXP = xp
		}
		cmd.CompletedMissions = d.CompletedMissions
	}

	res, err := s.deps.SyncProgress.Handle(r.Context(), cmd)
	if errors.Is(err, shared.ErrMissingIdentity) || errors.Is(err, shared.ErrInvalidEmail) {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Warn("sync degraded to demo", logger.Err(err))
		writeJSON(w, r, http.StatusOK, syncResponse{Success: true, Demo: true})
		return
	}
	writeJSON(w, r, http.StatusOK, syncResponse{
		Success:           true,
		CurrentStreak:     res.CurrentStreak,
		TotalXP:           res.TotalXP,
		PlayerLevel:       res.PlayerLevel,
		CompletedMissions: res.CompletedMissions,
	})
}

// handleIssueSession handles POST /api/session.
func (s *Server) handleIssueSession(w http.ResponseWriter, r *http.Request) {
	res := s.deps.IssueSession.Handle()
	writeJSON(w, r, http.StatusCreated, sessionResponse{SessionID: res.SessionID, IssuedAt: res.IssuedAt})
}
