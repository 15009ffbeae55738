package flow

import "strings"

// usefulLink is one vetted title/URL pair.
type usefulLink struct {
	Title string
	URL   string
}

// canonicalUsefulLinks replaces whatever the model emitted under a
// "Useful links" heading. Kept to at most three vetted NHS destinations.
var canonicalUsefulLinks = []usefulLink{
	{"Find a GP", "https://www.nhs.uk/service-search/find-a-gp"},
	{"Register with a GP", "https://www.nhs.uk/nhs-services/gps/how-to-register-with-a-gp-surgery/"},
	{"Use NHS 111 online", "https://111.nhs.uk/"},
}

// EnsureUsefulLinks normalizes the first "Useful links" section in a reply to
// the canonical vetted set, dropping the model's free-form links. Replies
// without such a section pass through untouched.
func EnsureUsefulLinks(reply string) string {
	if !strings.Contains(reply, "Useful links") {
		return reply
	}

	lines := strings.Split(reply, "\n")
	found := false
	for _, line := range lines {
		if isUsefulLinksHeading(line) {
			found = true
			break
		}
	}
	if !found {
		return reply
	}

	section := make([]string, 0, len(canonicalUsefulLinks)+1)
	section = append(section, "Useful links")
	for _, link := range canonicalUsefulLinks {
		section = append(section, "- "+link.Title+": "+link.URL)
	}

	var rebuilt []string
	replaced := false
	for i := 0; i < len(lines); i++ {
		if !replaced && isUsefulLinksHeading(lines[i]) {
			// Skip the old section through its trailing blank line.
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
				i++
			}
			i--
			rebuilt = append(rebuilt, section...)
			replaced = true
			continue
		}
		rebuilt = append(rebuilt, lines[i])
	}

	return strings.Join(rebuilt, "\n")
}

func isUsefulLinksHeading(line string) bool {
	trimmed := strings.Trim(strings.TrimSpace(line), "*#: ")
	return strings.HasPrefix(strings.ToLower(trimmed), "useful links")
}
