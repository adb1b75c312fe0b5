package command

import (
	"time"

	"github.com/google/uuid"
)

// IssueSessionResult is a fresh anonymous session.
type IssueSessionResult struct {
	SessionID string
	IssuedAt  time.Time
}

// IssueSessionHandler mints anonymous session tokens. No profile is created
// until the session first earns progress.
type IssueSessionHandler struct {
	deps Deps
}

// NewIssueSessionHandler creates a new IssueSessionHandler.
func NewIssueSessionHandler(deps Deps) *IssueSessionHandler {
	return &IssueSessionHandler{deps: deps.withDefaults()}
}

func (h *IssueSessionHandler) Handle() IssueSessionResult {
	return IssueSessionResult{
		SessionID: uuid.NewString(),
		IssuedAt:  h.deps.Clock.Now().UTC(),
	}
}
