package flow

import (
	"fmt"
	"strings"

	"github.com/evihealth/healthnav/internal/models"
)

// Keyword sets for the advisory eligibility heuristic. Substring matches
// against the stored stay-length and visa/status answers decide the GP
// registration line; this is deterministic text generation, not a medical or
// legal determination.
var (
	longStayKeywords = []string{"year", "yr", "6", "twelve", "12", "long", "permanent", "settled"}
	ukStatusKeywords = []string{"student", "work", "skilled", "settled", "ilr", "british", "uk"}
)

// eligibilityNarrative derives likely service-eligibility lines from a
// completed profile. Always includes the urgent-care-regardless line;
// GP-registered and postcode lines appear only when those fields are present.
func eligibilityNarrative(p models.UserProfile) string {
	stay := strings.ToLower(p.StringField("stay_length"))
	visa := strings.ToLower(p.StringField("visa_status"))
	postcode := p.StringField("postcode")
	gpRegistered := strings.ToLower(p.StringField("gp_registered"))

	longStay := containsAny(stay, longStayKeywords)
	hasUKStatus := containsAny(visa, ukStatusKeywords)

	gpLine := "May be asked about length of stay for GP registration; urgent/111/A&E are still available."
	if longStay || hasUKStatus {
		gpLine = "Likely eligible to register with a GP (typical for stays ~6+ months). " +
			"Use your UK address/postcode; bring ID and proof of address if asked."
	}

	lines := []string{
		"Based on your details, here are likely options:",
		"- " + gpLine,
		"- Urgent and emergency care (NHS 111, A&E) are available regardless of GP registration.",
	}
	if strings.Contains(gpRegistered, "yes") {
		lines = append(lines, "- You already have a GP registered.")
	}
	if strings.TrimSpace(postcode) != "" {
		lines = append(lines, fmt.Sprintf("- Postcode on file: %s", postcode))
	}
	lines = append(lines, "If you'd like, I can look up nearby GP practices or urgent care options.")

	return strings.Join(lines, "\n")
}

// EligibilityResponse is the deterministic reply to eligibility keyword
// queries. It never touches flow state.
func EligibilityResponse() string {
	return "Here's a structured check for NHS service eligibility:\n\n" +
		"Key criteria:\n" +
		"1) Residency/visa: UK resident, settled status, or valid visa (e.g., student or work).\n" +
		"2) Location: Living within a UK postcode/catchment for local services (GP, urgent care).\n" +
		"3) Duration: Planning to stay 6+ months (typical for GP registration).\n" +
		"4) ID/proof: Ability to show ID plus address (e.g., bank statement/tenancy) if asked.\n" +
		"5) Visitors: Short-stay visitors may still access urgent or emergency care.\n\n" +
		"Want me to confirm with your details? I can start onboarding now to collect postcode, " +
		"visa/status, UK stay length, and GP status, then I'll summarise what you're eligible for. " +
		"Just say 'onboarding' to begin."
}
