package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/evihealth/healthnav/internal/genai"
	"github.com/evihealth/healthnav/internal/models"
	"github.com/openai/openai-go"
)

// textStep is one scripted plain-text completion.
type textStep struct {
	text string
	err  error
}

// mockGenAI scripts plain-text completions and records the prompts sent.
type mockGenAI struct {
	script  []textStep
	prompts []string
}

func (m *mockGenAI) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.prompts = append(m.prompts, promptText(messages))
	if len(m.script) == 0 {
		return "", nil
	}
	step := m.script[0]
	m.script = m.script[1:]
	return step.text, step.err
}

func (m *mockGenAI) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, toolDefs []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	return &genai.ToolCallResponse{}, nil
}

func (m *mockGenAI) GenerateWithToolsAndOptions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, toolDefs []openai.ChatCompletionToolParam, opts genai.GenerateOptions) (*genai.ToolCallResponse, error) {
	return &genai.ToolCallResponse{}, nil
}

func promptText(messages []openai.ChatCompletionMessageParamUnion) string {
	if len(messages) == 0 || messages[0].OfUser == nil {
		return ""
	}
	return messages[0].OfUser.Content.OfString.Value
}

func TestExecuteUnknownTool(t *testing.T) {
	executor := NewExecutor(&mockGenAI{})
	result := executor.Execute(context.Background(), "bogus", map[string]any{})
	if result != "[Error: Unknown tool 'bogus']" {
		t.Errorf("unexpected unknown-tool result: %v", result)
	}
}

func TestExecuteSafetyProtocol(t *testing.T) {
	executor := NewExecutor(&mockGenAI{})
	result := executor.Execute(context.Background(), models.ToolSafetyProtocol, map[string]any{"message": "chest pain"})
	if result != EmergencyResponse() {
		t.Errorf("unexpected safety result: %v", result)
	}
}

func TestExecuteOnboardingReturnsCatalog(t *testing.T) {
	executor := NewExecutor(&mockGenAI{})
	result := executor.Execute(context.Background(), models.ToolOnboarding, map[string]any{})
	spec, ok := result.(*models.OnboardingSpec)
	if !ok {
		t.Fatalf("expected *models.OnboardingSpec, got %T", result)
	}
	if spec.Mode != models.OnboardingMode {
		t.Errorf("unexpected mode: %q", spec.Mode)
	}
	if len(spec.Questions) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(spec.Questions))
	}
	if spec.Questions[0].Key != "name" || !spec.Questions[0].Optional {
		t.Errorf("first question should be the optional name question, got %+v", spec.Questions[0])
	}
	if spec.Questions[3].Key != "postcode" {
		t.Errorf("expected postcode as the fourth question, got %+v", spec.Questions[3])
	}
}

func TestSafetyCheck(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"I have CHEST PAIN", true},
		{"my friend is unconscious", true},
		{"I want to harm myself", true},
		{"how do I register with a GP?", false},
		{"I have a mild headache", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := SafetyCheck(tc.message); got != tc.want {
			t.Errorf("SafetyCheck(%q) = %v, expected %v", tc.message, got, tc.want)
		}
	}
}

func TestNearestServicesUnsupportedType(t *testing.T) {
	executor := NewExecutor(&mockGenAI{})
	result := executor.NearestServices(context.Background(), map[string]any{
		"postcode_full": "NW1 2BU",
		"service_type":  "PHARMACY",
	})
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected error map, got %T", result)
	}
	if !strings.Contains(m["error"].(string), "unsupported service_type: PHARMACY") {
		t.Errorf("unexpected error: %v", m["error"])
	}
}

func TestNearestServicesParsesStructuredResult(t *testing.T) {
	mock := &mockGenAI{script: []textStep{
		{text: `[{"name":"Foo Surgery","address":"1 High St"}]`},
	}}
	executor := NewExecutor(mock)
	result := executor.NearestServices(context.Background(), map[string]any{
		"postcode_full": "nw1 2bu",
		"service_type":  "gp",
		"n":             float64(2),
	})
	list, ok := result.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected parsed list, got %T %v", result, result)
	}
	if len(mock.prompts) != 1 {
		t.Fatalf("expected one lookup prompt, got %d", len(mock.prompts))
	}
	if !strings.Contains(mock.prompts[0], "find-a-gp/results/NW1+2BU") {
		t.Errorf("postcode should be uppercased and escaped into the URL, got %q", mock.prompts[0])
	}
	if !strings.Contains(mock.prompts[0], "nearest 2 services") {
		t.Errorf("n should flow into the prompt, got %q", mock.prompts[0])
	}
}

func TestNearestServicesClampsN(t *testing.T) {
	mock := &mockGenAI{script: []textStep{{text: "[]"}, {text: "[]"}}}
	executor := NewExecutor(mock)

	executor.NearestServices(context.Background(), map[string]any{
		"postcode_full": "NW1 2BU", "service_type": "GP", "n": float64(10),
	})
	executor.NearestServices(context.Background(), map[string]any{
		"postcode_full": "NW1 2BU", "service_type": "GP", "n": float64(-1),
	})

	if !strings.Contains(mock.prompts[0], "nearest 5 services") {
		t.Errorf("n above range should clamp to 5, got %q", mock.prompts[0])
	}
	if !strings.Contains(mock.prompts[1], "nearest 1 services") {
		t.Errorf("n below range should clamp to 1, got %q", mock.prompts[1])
	}
}

func TestNearestServicesRawFallback(t *testing.T) {
	mock := &mockGenAI{script: []textStep{
		{text: "1. Foo Surgery, 1 High St"},
	}}
	executor := NewExecutor(mock)
	result := executor.NearestServices(context.Background(), map[string]any{
		"postcode_full": "NW1 2BU",
		"service_type":  "A&E",
	})
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected raw map, got %T", result)
	}
	if m["raw"] != "1. Foo Surgery, 1 High St" {
		t.Errorf("raw text not carried through: %v", m["raw"])
	}
	if !strings.Contains(m["url"].(string), "find-an-accident-and-emergency-service") {
		t.Errorf("expected the A&E results URL, got %v", m["url"])
	}
}

func TestNearestServicesLookupError(t *testing.T) {
	mock := &mockGenAI{script: []textStep{
		{err: errors.New("backend down")},
	}}
	executor := NewExecutor(mock)
	result := executor.NearestServices(context.Background(), map[string]any{
		"postcode_full": "NW1 2BU",
		"service_type":  "GP",
	})
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected fallback map, got %T", result)
	}
	if m["raw"] != "" || m["url"] == "" {
		t.Errorf("expected empty raw with the results URL, got %v", m)
	}
}

func TestGuidedSearchEmptyQuery(t *testing.T) {
	mock := &mockGenAI{}
	executor := NewExecutor(mock)
	result := executor.GuidedSearch(context.Background(), map[string]any{})
	m := result.(map[string]any)
	if m["context"] != "" || m["fallback_used"] != false {
		t.Errorf("empty query should return empty context, got %v", m)
	}
	if len(mock.prompts) != 0 {
		t.Errorf("empty query must not call the model, got %d prompts", len(mock.prompts))
	}
}

func TestGuidedSearchAllowlistedPass(t *testing.T) {
	restricted := strings.Repeat("GP registration guidance for new UK residents. ", 5) +
		"Source: https://www.nhs.uk/nhs-services/gps/"
	mock := &mockGenAI{script: []textStep{{text: restricted}}}
	executor := NewExecutor(mock)

	result := executor.GuidedSearch(context.Background(), map[string]any{"query": "register with a GP"})
	m := result.(map[string]any)
	if m["fallback_used"] != false {
		t.Errorf("allowlisted pass should not flag fallback, got %v", m)
	}
	if m["context"] != restricted {
		t.Errorf("restricted context not returned: %v", m["context"])
	}
	if !strings.Contains(mock.prompts[0], "site:nhs.uk") {
		t.Errorf("restricted prompt should carry site filters, got %q", mock.prompts[0])
	}
}

func TestGuidedSearchBroadFallback(t *testing.T) {
	mock := &mockGenAI{script: []textStep{
		{text: "too short"},
		{text: "broad result with general sources"},
	}}
	executor := NewExecutor(mock)

	result := executor.GuidedSearch(context.Background(), map[string]any{"query": "register with a GP"})
	m := result.(map[string]any)
	if m["fallback_used"] != true {
		t.Errorf("insufficient restricted pass should flag fallback, got %v", m)
	}
	if m["context"] != "broad result with general sources" {
		t.Errorf("broad context not returned: %v", m["context"])
	}
	if len(mock.prompts) != 2 {
		t.Errorf("expected restricted + broad prompts, got %d", len(mock.prompts))
	}
}

func TestLiveTriageParsesResult(t *testing.T) {
	mock := &mockGenAI{script: []textStep{
		{text: `{"status":"final","severity_level":"low","suggested_service":"GP","rationale":"stable","postcode_full":"","should_lookup":false}`},
	}}
	executor := NewExecutor(mock)

	result := executor.LiveTriage(context.Background(), map[string]any{
		"presenting_issue": "mild cough",
		"known_answers":    map[string]any{"onset": "3 days"},
	})
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected parsed map, got %T", result)
	}
	if m["status"] != "final" || m["suggested_service"] != "GP" {
		t.Errorf("triage fields not decoded: %v", m)
	}
	if !strings.Contains(mock.prompts[0], "mild cough") {
		t.Errorf("presenting issue should flow into the prompt, got %q", mock.prompts[0])
	}
	if !strings.Contains(mock.prompts[0], `"onset":"3 days"`) {
		t.Errorf("known answers should flow into the prompt, got %q", mock.prompts[0])
	}
}

func TestLiveTriageUnparseableResult(t *testing.T) {
	mock := &mockGenAI{script: []textStep{
		{text: "I think you should see a GP."},
	}}
	executor := NewExecutor(mock)

	result := executor.LiveTriage(context.Background(), map[string]any{"presenting_issue": "cough"})
	m := result.(map[string]any)
	if m["error"] != "could not parse triage result as JSON" {
		t.Errorf("unexpected error field: %v", m["error"])
	}
	if m["raw"] != "I think you should see a GP." {
		t.Errorf("raw text not carried through: %v", m["raw"])
	}
}

func TestDefinitionsCoverAllTools(t *testing.T) {
	defs := Definitions()
	if len(defs) != 5 {
		t.Fatalf("expected 5 tool definitions, got %d", len(defs))
	}
	want := map[string]bool{
		models.ToolNearestServices: false,
		models.ToolSafetyProtocol:  false,
		models.ToolOnboarding:      false,
		models.ToolGuidedSearch:    false,
		models.ToolLiveTriage:      false,
	}
	for _, def := range defs {
		want[def.Function.Name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tool %q missing from definitions", name)
		}
	}
}
