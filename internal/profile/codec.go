// Package profile implements the codec for the delimited profile block the
// model embeds in assistant text when onboarding completes.
package profile

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/evihealth/healthnav/internal/models"
)

// Delimiters wrapping the JSON profile object in assistant output.
const (
	OpenTag  = "<USER_PROFILE>"
	CloseTag = "</USER_PROFILE>"
)

var blockRE = regexp.MustCompile(`(?s)<USER_PROFILE>(.*?)</USER_PROFILE>`)

// Extract locates the first profile block in text and decodes its JSON body.
// Returns false when the block is missing, empty, or malformed; never panics.
func Extract(text string) (models.UserProfile, bool) {
	match := blockRE.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	raw := strings.TrimSpace(match[1])
	if raw == "" {
		return nil, false
	}
	var parsed models.UserProfile
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// Strip removes all profile blocks so only user-facing content remains.
// Idempotent and safe on text with no blocks.
func Strip(text string) string {
	return strings.TrimSpace(blockRE.ReplaceAllString(text, ""))
}

// Wrap renders a profile as a delimited block for inclusion in assistant text.
func Wrap(p models.UserProfile) string {
	return OpenTag + p.ToJSON() + CloseTag
}
