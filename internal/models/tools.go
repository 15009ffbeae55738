// Package models defines tool structures for LLM function calling.
package models

import "encoding/json"

// Tool names exposed to the model.
const (
	ToolNearestServices = "nearest_nhs_services"
	ToolSafetyProtocol  = "trigger_safety_protocol"
	ToolOnboarding      = "onboarding"
	ToolGuidedSearch    = "guided_search"
	ToolLiveTriage      = "nhs_111_live_triage"
)

// OnboardingMode is the mode marker emitted by the onboarding tool.
const OnboardingMode = "llm_multiturn_onboarding"

// Triage statuses reported by the live triage tool.
const (
	TriageStatusNeedMoreInfo = "need_more_info"
	TriageStatusFinal        = "final"
)

// Service types the triage tool can recommend and the nearest-services tool can look up.
const (
	ServiceGP = "GP"
	ServiceAE = "A&E"
)

// ToolOutcome is the typed view of a tool result at the boundary where the
// conversation flow consumes executor output. Tool results arrive loosely
// typed (text or JSON-shaped); classifying them once here keeps untyped maps
// out of the state machine.
type ToolOutcome interface {
	isToolOutcome()
}

// OnboardingInit signals that the onboarding questionnaire flow should start.
type OnboardingInit struct {
	Questions    []OnboardingQuestion
	Instructions string
}

// TriageNeedMore signals that the triage tool needs further answers before routing.
type TriageNeedMore struct {
	FollowUpQuestions  []string
	KnownAnswersUpdate map[string]any
}

// TriageFinal is a terminal triage routing decision.
type TriageFinal struct {
	SeverityLevel    string
	SuggestedService string
	Rationale        string
	PostcodeFull     string
	ShouldLookup     bool
}

// PlainText is any tool result that carries no state signal.
type PlainText struct {
	Text string
}

// Unparseable wraps tool output that claimed to be structured but could not be
// decoded. Downstream state updates treat it as "no signal", not an error.
type Unparseable struct {
	Raw string
}

func (OnboardingInit) isToolOutcome() {}
func (TriageNeedMore) isToolOutcome() {}
func (TriageFinal) isToolOutcome()    {}
func (PlainText) isToolOutcome()      {}
func (Unparseable) isToolOutcome()    {}

// ClassifyToolResult converts a raw tool result into its tagged variant.
func ClassifyToolResult(name string, result any) ToolOutcome {
	switch v := result.(type) {
	case *OnboardingSpec:
		if v != nil && v.Mode == OnboardingMode {
			return OnboardingInit{Questions: v.Questions, Instructions: v.Instructions}
		}
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return PlainText{Text: v}
		}
		return classifyMap(m)
	case map[string]any:
		return classifyMap(v)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return Unparseable{Raw: ""}
	}
	return PlainText{Text: string(data)}
}

func classifyMap(m map[string]any) ToolOutcome {
	if mode, _ := m["mode"].(string); mode == OnboardingMode {
		return OnboardingInit{
			Questions:    decodeQuestions(m["questions"]),
			Instructions: stringValue(m["instructions_to_llm"]),
		}
	}

	switch stringValue(m["status"]) {
	case TriageStatusNeedMoreInfo:
		update, _ := m["known_answers_update"].(map[string]any)
		return TriageNeedMore{
			FollowUpQuestions:  stringSlice(m["follow_up_questions"]),
			KnownAnswersUpdate: update,
		}
	case TriageStatusFinal:
		shouldLookup, _ := m["should_lookup"].(bool)
		return TriageFinal{
			SeverityLevel:    stringValue(m["severity_level"]),
			SuggestedService: stringValue(m["suggested_service"]),
			Rationale:        stringValue(m["rationale"]),
			PostcodeFull:     stringValue(m["postcode_full"]),
			ShouldLookup:     shouldLookup,
		}
	}

	if _, hasErr := m["error"]; hasErr {
		return Unparseable{Raw: stringValue(m["raw"])}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return Unparseable{Raw: ""}
	}
	return PlainText{Text: string(data)}
}

func decodeQuestions(v any) []OnboardingQuestion {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	questions := make([]OnboardingQuestion, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		optional, _ := entry["optional"].(bool)
		questions = append(questions, OnboardingQuestion{
			Key:      stringValue(entry["key"]),
			Question: stringValue(entry["question"]),
			Optional: optional,
		})
	}
	return questions
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
