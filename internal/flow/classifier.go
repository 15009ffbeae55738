package flow

import "strings"

// Trigger identifies a deterministic short-circuit requested by user text.
type Trigger int

const (
	// TriggerNone means the turn proceeds to the general model path.
	TriggerNone Trigger = iota
	// TriggerTriage starts the deterministic triage questionnaire.
	TriggerTriage
	// TriggerEligibility returns the static eligibility-criteria response.
	TriggerEligibility
)

var (
	triageTriggerWords      = []string{"triage", "feeling", "symptom"}
	eligibilityTriggerWords = []string{"eligible", "eligibility"}
)

// DetectTrigger classifies user text by case-insensitive substring match.
// Isolated here so the matching rules can change without touching the state
// machine; triage outranks eligibility, matching the dispatch precedence.
func DetectTrigger(text string) Trigger {
	lowered := strings.ToLower(text)
	if containsAny(lowered, triageTriggerWords) {
		return TriggerTriage
	}
	if containsAny(lowered, eligibilityTriggerWords) {
		return TriggerEligibility
	}
	return TriggerNone
}
