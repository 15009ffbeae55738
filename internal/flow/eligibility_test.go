package flow

import (
	"strings"
	"testing"

	"github.com/evihealth/healthnav/internal/models"
)

func TestEligibilityNarrativeLongStay(t *testing.T) {
	narrative := eligibilityNarrative(models.UserProfile{
		"stay_length": "2 years",
		"visa_status": "visitor",
	})
	if !strings.Contains(narrative, "Likely eligible to register with a GP") {
		t.Errorf("long stay should suggest GP registration, got %q", narrative)
	}
}

func TestEligibilityNarrativeUKStatus(t *testing.T) {
	narrative := eligibilityNarrative(models.UserProfile{
		"stay_length": "3 months",
		"visa_status": "Student visa",
	})
	if !strings.Contains(narrative, "Likely eligible to register with a GP") {
		t.Errorf("student status should suggest GP registration, got %q", narrative)
	}
}

func TestEligibilityNarrativeShortStayVisitor(t *testing.T) {
	narrative := eligibilityNarrative(models.UserProfile{
		"stay_length": "2 weeks",
		"visa_status": "visitor",
	})
	if !strings.Contains(narrative, "May be asked about length of stay") {
		t.Errorf("short-stay visitor should get the cautious line, got %q", narrative)
	}
	if !strings.Contains(narrative, "Urgent and emergency care") {
		t.Errorf("urgent-care line must always appear, got %q", narrative)
	}
}

func TestEligibilityNarrativeConditionalLines(t *testing.T) {
	narrative := eligibilityNarrative(models.UserProfile{
		"stay_length":   "1 year",
		"visa_status":   "work",
		"gp_registered": "yes",
		"postcode":      "E1 6AN",
	})
	if !strings.Contains(narrative, "You already have a GP registered.") {
		t.Errorf("expected GP-registered line, got %q", narrative)
	}
	if !strings.Contains(narrative, "Postcode on file: E1 6AN") {
		t.Errorf("expected postcode line, got %q", narrative)
	}

	bare := eligibilityNarrative(models.UserProfile{"stay_length": "1 year"})
	if strings.Contains(bare, "already have a GP") || strings.Contains(bare, "Postcode on file") {
		t.Errorf("conditional lines must be absent without their fields, got %q", bare)
	}
}

func TestEligibilityResponseListsCriteria(t *testing.T) {
	response := EligibilityResponse()
	for _, want := range []string{"Residency/visa", "Location", "Duration", "ID/proof", "Visitors", "onboarding"} {
		if !strings.Contains(response, want) {
			t.Errorf("eligibility response missing %q", want)
		}
	}
}
