// Package models defines core domain types shared across flows, transports, and storage.
package models

import "encoding/json"

// Conversation roles used in ConversationTurn and when building model context.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationTurn represents a single entry in a session's conversation history.
// Turns are append-only; the flow layer sends a trailing window of them to the model.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserProfile holds structured onboarding answers keyed by question key.
// The key catalog varies by deployment, so values stay loosely typed. A key maps
// to nil when the question was skipped or left empty after one reprompt.
// Profiles are replaced wholesale whenever a completed onboarding emits a new one.
type UserProfile map[string]any

// ToJSON serializes the profile for embedding in prompts and history entries.
func (p UserProfile) ToJSON() string {
	if p == nil {
		return "{}"
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// StringField returns the named field as a string, or empty when absent or non-string.
func (p UserProfile) StringField(key string) string {
	if p == nil {
		return ""
	}
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// OnboardingQuestion is one entry of the ordered onboarding questionnaire catalog.
type OnboardingQuestion struct {
	Key      string `json:"key"`
	Question string `json:"question"`
	Optional bool   `json:"optional"`
}

// OnboardingSpec is the structured result of the onboarding tool: the question
// catalog plus the instructions handed to the model for running the flow.
type OnboardingSpec struct {
	Mode         string               `json:"mode"`
	Questions    []OnboardingQuestion `json:"questions"`
	Instructions string               `json:"instructions_to_llm"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply body of POST /chat.
type ChatResponse struct {
	SessionID   string      `json:"session_id"`
	Reply       string      `json:"reply"`
	UserProfile UserProfile `json:"user_profile"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON error envelope returned by the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
}
