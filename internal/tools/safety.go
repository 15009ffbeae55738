package tools

import "strings"

// redFlagKeywords trigger the emergency advisory regardless of context.
var redFlagKeywords = []string{
	"chest pain",
	"severe bleeding",
	"not breathing",
	"can't breathe",
	"suicidal",
	"harm myself",
	"overdose",
	"unconscious",
	"collapse",
	"stroke",
	"heart attack",
	"seizure",
	"very high fever",
	"severe allergic",
	"anaphylaxis",
}

// SafetyCheck reports whether the message contains any red-flag keyword.
func SafetyCheck(message string) bool {
	lowered := strings.ToLower(message)
	for _, keyword := range redFlagKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// EmergencyResponse returns the fixed safety advisory text.
func EmergencyResponse() string {
	return "Important Safety Notice\n" +
		"Your message includes symptoms that may be serious.\n\n" +
		"**In the UK:**\n" +
		"- Call **999** for emergencies.\n" +
		"- If unsure but worried, call **NHS 111** for urgent advice.\n\n" +
		"I can continue to provide general information once you're safe."
}
