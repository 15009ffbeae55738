// Package flow implements the conversational session state machine: the turn
// dispatcher, the deterministic onboarding and triage questionnaires, and the
// tool-call batching loop against the completion endpoint.
package flow

import (
	"github.com/evihealth/healthnav/internal/models"
	"github.com/evihealth/healthnav/internal/prompts"
)

// Session holds all per-session mutable state. It is exclusively owned and
// mutated by ConversationFlow for the duration of a turn; the host supplies
// the per-session mutex or actor boundary for concurrent transports.
type Session struct {
	ID           string
	History      []models.ConversationTurn
	Profile      models.UserProfile
	SystemPrompt string

	// Onboarding is non-nil while the deterministic onboarding walk is active.
	Onboarding *OnboardingState
	// Triage is non-nil while the deterministic triage walk is active.
	Triage *TriageState
	// TriageToolActive pins the triage steering reminder while the remote
	// triage tool is mid-flight (status need_more_info).
	TriageToolActive bool
	// TriageKnownAnswers accumulates answers across triage tool rounds.
	TriageKnownAnswers map[string]any

	// Suggestions holds the latest next-prompt suggestions for transports
	// that render them.
	Suggestions []string
}

// NewSession creates an empty session with the initial system prompt.
func NewSession(id string) *Session {
	profile := models.UserProfile{}
	return &Session{
		ID:                 id,
		Profile:            profile,
		SystemPrompt:       prompts.BuildSystemPrompt(profile),
		TriageKnownAnswers: map[string]any{},
	}
}

// ResetFlows clears both questionnaire flows and accumulated triage context.
// Every profile persist goes through here; no other call site resets flow state.
func (s *Session) ResetFlows() {
	s.Onboarding = nil
	s.Triage = nil
	s.TriageToolActive = false
	s.TriageKnownAnswers = map[string]any{}
}

func (s *Session) appendTurn(role, content string) {
	s.History = append(s.History, models.ConversationTurn{Role: role, Content: content})
}
