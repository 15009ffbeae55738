package tools

import "github.com/evihealth/healthnav/internal/models"

const onboardingInstructions = `
You (the assistant) must run onboarding as a strict multi-turn Q&A.

CRITICAL RULES:
1) Ask ONLY the questions provided in the questions list.
2) Ask them in EXACT order.
3) Ask EXACTLY ONE question per turn.
4) Use the question text VERBATIM - do not rephrase, expand, or add examples.
5) Do NOT ask any extra questions (e.g., date of birth, phone number, email, gender, nationality).
6) All answers are free text. Interpret/normalize internally if useful, but do not show options.
7) NEVER append the user's previous answer to the question line. Each assistant turn during
   onboarding should contain ONLY the next question.
8) If the user goes off-topic mid-onboarding, say you'll answer after onboarding and repeat
   the CURRENT question.
9) If optional and the user says 'skip', store null.
10) If the user gives an empty/unclear answer, gently reprompt ONCE with the same verbatim question.

When finished, output the final profile ONLY as JSON wrapped in:
<USER_PROFILE>{...}</USER_PROFILE>
Then briefly confirm onboarding is complete.
`

// OnboardingSpec returns the onboarding questionnaire catalog and the rules
// for running it. The flow layer walks the catalog deterministically; the
// instructions exist for the model's benefit in the tool result.
func OnboardingSpec() *models.OnboardingSpec {
	return &models.OnboardingSpec{
		Mode: models.OnboardingMode,
		Questions: []models.OnboardingQuestion{
			{Key: "name", Question: "What's your name? (optional - you can say 'skip')", Optional: true},
			{Key: "age_range", Question: "What's your age range?"},
			{Key: "stay_length", Question: "How long will you stay in the UK?"},
			{Key: "postcode", Question: "What's your UK postcode / area?"},
			{Key: "visa_status", Question: "Do you hold a UK visa/status (e.g., student, work, settled, visitor)?"},
			{Key: "gp_registered", Question: "Do you already have a registered GP in the UK?"},
			{Key: "conditions", Question: "Any long-term health conditions you'd like me to be aware of? (optional - say 'skip')", Optional: true},
			{Key: "medications", Question: "Do you take any regular medications or receive ongoing treatment? (optional - say 'skip')", Optional: true},
			{Key: "lifestyle_focus", Question: "Is there any lifestyle area you want to improve while in the UK?"},
			{Key: "mental_wellbeing", Question: "How has your mental wellbeing been recently? (optional - say 'skip')", Optional: true},
		},
		Instructions: onboardingInstructions,
	}
}
