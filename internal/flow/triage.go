package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evihealth/healthnav/internal/models"
)

// TriageQuestion is one entry of the fixed triage questionnaire.
type TriageQuestion struct {
	Key  string
	Text string
}

// triageLeadIn opens the deterministic triage walk.
const triageLeadIn = "I'll follow NHS 111 style triage. Please answer a few quick questions so I can route you correctly."

// affirmative tokens for red-flag answers; negation tokens for fluid intake.
var (
	yesTokens         = []string{"yes", "y", "true", "1"}
	dehydrationTokens = []string{"no", "not", "can't", "cannot", "unable"}
)

func triageQuestionCatalog() []TriageQuestion {
	return []TriageQuestion{
		{Key: "severity", Text: "On a scale of 0 to 10, how severe are your symptoms right now?"},
		{Key: "fluids", Text: "Have you been able to keep down food or fluids in the last 12 hours?"},
		{Key: "onset", Text: "When did the symptoms start (time or days ago)?"},
		{Key: "red_flags", Text: "Do you have any of these: chest pain, difficulty breathing, heavy bleeding, " +
			"sudden weakness/numbness, or a seizure in the last 24 hours?"},
		{Key: "other", Text: "Any fever, rash, severe headache, pregnancy, or long-term conditions affecting immunity?"},
	}
}

// TriageState tracks the fixed severity/fluids/onset/red-flags/other walk.
// Unlike onboarding there is no reprompt policy: every answer advances.
type TriageState struct {
	questions []TriageQuestion
	answers   map[string]string
	index     int
}

// NewTriageState starts a fresh triage walk over the fixed catalog.
func NewTriageState() *TriageState {
	return &TriageState{
		questions: triageQuestionCatalog(),
		answers:   make(map[string]string),
	}
}

// NextQuestion returns the next question text; ok is false when all five have
// been asked.
func (t *TriageState) NextQuestion() (string, bool) {
	if t.index >= len(t.questions) {
		return "", false
	}
	return t.questions[t.index].Text, true
}

// RecordAnswer stores the trimmed answer under the current key and advances
// unconditionally.
func (t *TriageState) RecordAnswer(raw string) {
	if t.index >= len(t.questions) {
		return
	}
	t.answers[t.questions[t.index].Key] = strings.TrimSpace(raw)
	t.index++
}

// Answers exposes the recorded answers keyed by question key.
func (t *TriageState) Answers() map[string]string {
	return t.answers
}

// Summarize reads the recorded answers and produces the routing summary.
// Red flags route to A&E outright; severity >= 8 or dehydration routes to A&E
// via urgent 111 review; everything else routes to GP. A numeric parse
// failure on severity counts as not severe.
func (t *TriageState) Summarize(postcode string) string {
	severity := t.answers["severity"]
	fluids := strings.ToLower(t.answers["fluids"])
	redFlags := strings.ToLower(t.answers["red_flags"])

	redFlagged := containsAny(redFlags, yesTokens)
	severe := false
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(severity), 64); err == nil {
		severe = parsed >= 8
	}
	dehydrated := containsAny(fluids, dehydrationTokens)

	var recommendedService, route string
	switch {
	case redFlagged:
		recommendedService = models.ServiceAE
		route = "This sounds like a red-flag situation. NHS 111 guidance is to call 999 or go to A&E if safe to travel. " +
			"If you're unsure, contact NHS 111 immediately for clinical advice."
	case severe || dehydrated:
		recommendedService = models.ServiceAE
		route = "NHS 111 would typically advise urgent clinical review. Please contact NHS 111 now. " +
			"They may direct you to urgent care/A&E if warranted."
	default:
		recommendedService = models.ServiceGP
		route = "You likely need non-emergency care. NHS 111 would usually suggest: " +
			"register/contact your GP for review, and use NHS 111 online if symptoms change or worsen. " +
			"If new severe symptoms arise, call 111 or 999 as appropriate."
	}

	postcodeNote := fmt.Sprintf("I can look up the nearest %s options if you share your postcode.", recommendedService)
	if postcode != "" {
		postcodeNote = fmt.Sprintf("I can find the nearest %s options using your postcode on record (%s).", recommendedService, postcode)
	}

	return fmt.Sprintf(
		"Thanks, here's a quick triage summary (following NHS 111 style steps):\n"+
			"- Severity: %s\n"+
			"- Fluids: %s\n"+
			"- Onset: %s\n"+
			"- Red flags: %s\n"+
			"- Other: %s\n\n"+
			"%s\n"+
			"%s If you want, I can also help with GP registration or local services.",
		orNotGiven(severity),
		orNotGiven(t.answers["fluids"]),
		orNotGiven(t.answers["onset"]),
		orNotGiven(t.answers["red_flags"]),
		orNotGiven(t.answers["other"]),
		route,
		postcodeNote,
	)
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func orNotGiven(value string) string {
	if value == "" {
		return "not given"
	}
	return value
}
