package flow

import (
	"strings"

	"github.com/evihealth/healthnav/internal/models"
	"github.com/evihealth/healthnav/internal/profile"
)

// skipVocabulary maps to an absent answer without triggering a reprompt.
var skipVocabulary = map[string]bool{
	"skip":              true,
	"prefer not to say": true,
	"n/a":               true,
	"na":                true,
}

const onboardingCompletionNote = "Onboarding is complete. I have saved these details for future chats."

// OnboardingState tracks the ordered onboarding questionnaire walk. The index
// only ever advances forward, one step per recorded answer.
type OnboardingState struct {
	questions      []models.OnboardingQuestion
	index          int
	answers        map[string]*string
	awaitingAnswer bool
	hasReprompted  bool
}

// NewOnboardingState creates a questionnaire walk over the given catalog.
func NewOnboardingState(questions []models.OnboardingQuestion) *OnboardingState {
	return &OnboardingState{
		questions: questions,
		answers:   make(map[string]*string),
	}
}

// Empty reports whether the state was created without a question catalog.
func (o *OnboardingState) Empty() bool {
	return len(o.questions) == 0
}

// Index returns the current question index.
func (o *OnboardingState) Index() int {
	return o.index
}

// AwaitingAnswer reports whether a question has been asked and not yet answered.
func (o *OnboardingState) AwaitingAnswer() bool {
	return o.awaitingAnswer
}

// HasReprompted reports whether the current question has already been re-asked.
func (o *OnboardingState) HasReprompted() bool {
	return o.hasReprompted
}

// CurrentQuestion returns the question at the current index; ok is false
// exactly when the walk is exhausted.
func (o *OnboardingState) CurrentQuestion() (models.OnboardingQuestion, bool) {
	if o.index >= len(o.questions) {
		return models.OnboardingQuestion{}, false
	}
	return o.questions[o.index], true
}

// NormalizeAnswer trims raw input, mapping empty input to (nil, true) and the
// skip vocabulary to (nil, false). Everything else passes through unchanged.
func NormalizeAnswer(raw string) (value *string, wasEmpty bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, true
	}
	if skipVocabulary[strings.ToLower(text)] {
		return nil, false
	}
	return &text, false
}

// PromptNextQuestion marks the current question as awaiting an answer and
// returns its text verbatim, or the finalization result when exhausted.
func (o *OnboardingState) PromptNextQuestion() string {
	question, ok := o.CurrentQuestion()
	if !ok {
		return o.Finalize()
	}
	o.awaitingAnswer = true
	o.hasReprompted = false
	return strings.TrimSpace(question.Question)
}

// RecordAnswer processes one user answer. Empty input earns a single reprompt
// embedding the same question text; a second empty answer (or a skip) stores
// an absent value. Valid or absent answers advance the index and surface the
// next question, or the finalization result when the catalog is exhausted.
func (o *OnboardingState) RecordAnswer(raw string) string {
	question, ok := o.CurrentQuestion()
	if !ok {
		return o.Finalize()
	}

	value, wasEmpty := NormalizeAnswer(raw)
	if wasEmpty && !o.hasReprompted {
		o.hasReprompted = true
		o.awaitingAnswer = true
		return "I did not catch that. " + strings.TrimSpace(question.Question)
	}

	o.answers[question.Key] = value
	o.index++
	o.awaitingAnswer = false
	o.hasReprompted = false

	if _, ok := o.CurrentQuestion(); ok {
		return o.PromptNextQuestion()
	}
	return o.Finalize()
}

// Finalize builds the profile from collected answers (missing answers map to
// null) and returns the delimited profile block followed by a completion
// notice and the eligibility narrative. The shared finalization pipeline
// extracts and persists the profile from this text.
func (o *OnboardingState) Finalize() string {
	built := models.UserProfile{}
	for _, question := range o.questions {
		if value := o.answers[question.Key]; value != nil {
			built[question.Key] = *value
		} else {
			built[question.Key] = nil
		}
	}

	summary := onboardingCompletionNote
	if narrative := eligibilityNarrative(built); narrative != "" {
		summary = onboardingCompletionNote + "\n\n" + narrative
	}
	return profile.Wrap(built) + "\n" + summary
}
