package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/evihealth/healthnav/internal/models"
	"github.com/openai/openai-go"
)

// nhsResultsURLs maps service types to the NHS service-search results pages.
var nhsResultsURLs = map[string]string{
	models.ServiceGP: "https://www.nhs.uk/service-search/find-a-gp/results/%s",
	models.ServiceAE: "https://www.nhs.uk/service-search/find-an-accident-and-emergency-service/results/%s",
}

// allowedDomains is the allowlist guided_search prefers before any fallback.
var allowedDomains = []string{
	"gov.uk",
	"nhs.uk",
	"111.nhs.uk",
	"england.nhs.uk",
	"nice.org.uk",
	"ukcisa.org.uk",
}

const nearestServicesPromptTemplate = `Open the NHS results page and extract the nearest %d services.

URL: %s

Return STRICT JSON: a list of up to %d objects with:
- name
- distance (string, if shown)
- address
- phone (if shown)

The page is already nearest-first; take the top results.`

// NearestServices resolves the NHS service-search results page for a postcode
// and service type and returns the nearest options as structured data, or
// {raw, url} when the output cannot be parsed.
func (e *Executor) NearestServices(ctx context.Context, args map[string]any) any {
	postcode := strings.ToUpper(strings.TrimSpace(stringArg(args, "postcode_full")))
	serviceType := strings.ToUpper(strings.TrimSpace(stringArg(args, "service_type")))
	n := intArg(args, "n", 3)
	if n < 1 {
		n = 1
	}
	if n > 5 {
		n = 5
	}

	pattern, ok := nhsResultsURLs[serviceType]
	if !ok {
		slog.Warn("Executor.NearestServices: unsupported service type", "serviceType", serviceType)
		return map[string]any{"raw": "", "error": fmt.Sprintf("unsupported service_type: %s", serviceType)}
	}
	resultsURL := fmt.Sprintf(pattern, url.QueryEscape(postcode))

	prompt := fmt.Sprintf(nearestServicesPromptTemplate, n, resultsURL, n)
	text, err := e.genaiClient.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)})
	if err != nil {
		slog.Error("Executor.NearestServices: lookup failed", "error", err, "serviceType", serviceType)
		return map[string]any{"raw": "", "url": resultsURL}
	}

	var parsed any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		return map[string]any{"raw": text, "url": resultsURL}
	}
	return parsed
}

// GuidedSearch performs allowlist-first retrieval. When the restricted pass
// returns too little or cites no allowlisted domain, a broad fallback pass
// runs and is flagged as such in the result.
func (e *Executor) GuidedSearch(ctx context.Context, args map[string]any) any {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		query = strings.TrimSpace(stringArg(args, "q"))
	}
	maxResults := intArg(args, "max_results", 5)
	if query == "" {
		return map[string]any{"context": "", "sources": []any{}, "fallback_used": false}
	}

	siteFilters := make([]string, len(allowedDomains))
	for i, domain := range allowedDomains {
		siteFilters[i] = "site:" + domain
	}
	restrictedQuery := fmt.Sprintf(
		"(%s) (%s). Prefer answers from these sites only. Return up to %d relevant results with citations.",
		query, strings.Join(siteFilters, " OR "), maxResults)

	restricted, err := e.genaiClient.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(restrictedQuery)})
	if err == nil && len(strings.TrimSpace(restricted)) >= 200 && hasAllowlistedDomain(restricted) {
		return map[string]any{"context": restricted, "sources": []any{}, "fallback_used": false}
	}

	slog.Debug("Executor.GuidedSearch: restricted pass insufficient, using broad fallback", "query", query)
	broadQuery := fmt.Sprintf("%s. Return up to %d relevant results with citations.", query, maxResults)
	broad, err := e.genaiClient.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(broadQuery)})
	if err != nil {
		slog.Error("Executor.GuidedSearch: broad fallback failed", "error", err)
		broad = ""
	}
	return map[string]any{"context": broad, "sources": []any{}, "fallback_used": true}
}

func hasAllowlistedDomain(text string) bool {
	lowered := strings.ToLower(text)
	for _, domain := range allowedDomains {
		if strings.Contains(lowered, domain) {
			return true
		}
	}
	return false
}

const liveTriagePromptTemplate = `You are a lightweight, NON-DIAGNOSTIC triage router following NHS 111 style steps.

Goal:
- Ask only what you need to decide the most appropriate NHS service.
- Emergency red flags override everything.
- Use known_answers to avoid repeating questions.
- Keep it concise and stop once you have enough to route safely.

Emergency red flags (ANY => emergency / A&E / 999):
- severe chest pain, trouble breathing, blue lips
- heavy bleeding that won't stop
- stroke signs (face droop, arm weakness, speech trouble)
- seizure / fainting / unconsciousness
- sudden severe allergic reaction
- immediate danger / unsafe mental state / suicidal intent

You must return STRICT JSON in ONE of these two forms:

FORM A (need more info):
{
  "status": "need_more_info",
  "follow_up_questions": ["ONLY_ONE_QUESTION"],
  "known_answers_update": {}
}

FORM B (final):
{
  "status": "final",
  "severity_level": "low|medium|high|emergency",
  "suggested_service": "A&E|GP|NHS_111|PHARMACY_SELFCARE|MENTAL_HEALTH_CRISIS",
  "rationale": "1-2 sentences",
  "postcode_full": "%s",
  "should_lookup": true|false
}

Inputs:
- presenting_issue: %s
- known_answers: %s
Current_answer_count: %d

Rules:
- If any red flag is present from presenting_issue or known_answers, return FORM B with
  severity_level="emergency" and suggested_service="A&E".
- Otherwise, ask at most ONE short follow-up question IF needed; keep total follow-ups to
  5-8 and NEVER exceed 10.
- If the answer count is 5 or more, avoid further questions unless absolutely necessary.
- If the answer count is 8 or more, you MUST return FORM B with your best judgment.
- Do NOT repeat a topic already present in known_answers.
- Keep questions crisp, one-line, no preamble.

Routing guidance:
- emergency/high + red flags or very severe rapid onset => A&E
- moderate symptoms, unsure urgency => NHS_111
- moderate/persistent but stable => GP
- mild + functioning OK => PHARMACY_SELFCARE
- mental health safety risk => MENTAL_HEALTH_CRISIS

should_lookup = true ONLY if:
- suggested_service is "GP" or "A&E"
- AND postcode_full is provided in inputs.`

// LiveTriage runs one round of model-led triage, returning either a follow-up
// request, a final routing decision, or {raw, error} when the output cannot
// be parsed as JSON.
func (e *Executor) LiveTriage(ctx context.Context, args map[string]any) any {
	presentingIssue := stringArg(args, "presenting_issue")
	postcodeFull := stringArg(args, "postcode_full")
	knownAnswers, _ := args["known_answers"].(map[string]any)

	knownJSON, err := json.Marshal(knownAnswers)
	if err != nil {
		knownJSON = []byte("{}")
	}

	prompt := fmt.Sprintf(liveTriagePromptTemplate, postcodeFull, presentingIssue, string(knownJSON), len(knownAnswers))
	text, err := e.genaiClient.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)})
	if err != nil {
		slog.Error("Executor.LiveTriage: triage call failed", "error", err)
		return map[string]any{"raw": "", "error": err.Error()}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		slog.Warn("Executor.LiveTriage: unparseable triage result", "length", len(text))
		return map[string]any{"raw": text, "error": "could not parse triage result as JSON"}
	}
	return parsed
}
