package profile

import (
	"strings"
	"testing"

	"github.com/evihealth/healthnav/internal/models"
)

func TestExtractValidBlock(t *testing.T) {
	text := "Before.\n<USER_PROFILE>{\"name\":\"Amina\",\"conditions\":null}</USER_PROFILE>\nAfter."
	parsed, ok := Extract(text)
	if !ok {
		t.Fatal("expected a valid block to extract")
	}
	if parsed.StringField("name") != "Amina" {
		t.Errorf("expected name Amina, got %v", parsed)
	}
	if value, present := parsed["conditions"]; !present || value != nil {
		t.Errorf("null field should survive as nil, got %v (present=%v)", value, present)
	}
}

func TestExtractRejectsMissingEmptyAndMalformed(t *testing.T) {
	for _, text := range []string{
		"no block here",
		"<USER_PROFILE></USER_PROFILE>",
		"<USER_PROFILE>   </USER_PROFILE>",
		"<USER_PROFILE>{not json}</USER_PROFILE>",
		"<USER_PROFILE>{\"unclosed\":",
	} {
		if _, ok := Extract(text); ok {
			t.Errorf("Extract(%q) should fail", text)
		}
	}
}

func TestExtractTakesFirstBlock(t *testing.T) {
	text := "<USER_PROFILE>{\"n\":1}</USER_PROFILE> and <USER_PROFILE>{\"n\":2}</USER_PROFILE>"
	parsed, ok := Extract(text)
	if !ok || parsed["n"] != float64(1) {
		t.Errorf("expected the first block, got %v (ok=%v)", parsed, ok)
	}
}

func TestStripRemovesAllBlocks(t *testing.T) {
	text := "Hello <USER_PROFILE>{\"a\":1}</USER_PROFILE> world <USER_PROFILE>{\"b\":2}</USER_PROFILE>"
	got := Strip(text)
	if strings.Contains(got, "USER_PROFILE") {
		t.Errorf("blocks should be removed, got %q", got)
	}
	if got != "Hello  world" {
		t.Errorf("surrounding text should survive trimmed, got %q", got)
	}
	if Strip(got) != got {
		t.Error("Strip must be idempotent")
	}
}

func TestStripHandlesMultilineBody(t *testing.T) {
	text := "Done.\n<USER_PROFILE>{\n  \"name\": \"Lee\"\n}</USER_PROFILE>"
	if got := Strip(text); got != "Done." {
		t.Errorf("multiline block should be removed, got %q", got)
	}
}

func TestWrapRoundTrip(t *testing.T) {
	original := models.UserProfile{"name": "Lee", "postcode": "E1 6AN"}
	parsed, ok := Extract(Wrap(original))
	if !ok {
		t.Fatal("wrapped profile should extract")
	}
	if parsed.StringField("name") != "Lee" || parsed.StringField("postcode") != "E1 6AN" {
		t.Errorf("round trip mismatch: %v", parsed)
	}
}
