// Package tools implements the external collaborator functions exposed to the
// model: onboarding catalog, safety advisory, nearest-service lookup,
// allowlisted search, and live triage.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evihealth/healthnav/internal/genai"
	"github.com/evihealth/healthnav/internal/models"
)

// Executor dispatches tool calls by name to their implementations. Tools only
// return data; they never reach back into session state.
type Executor struct {
	genaiClient genai.ClientInterface
}

// NewExecutor creates a tool executor backed by the given completion client.
func NewExecutor(genaiClient genai.ClientInterface) *Executor {
	slog.Debug("tools.NewExecutor: creating executor", "hasGenAI", genaiClient != nil)
	return &Executor{genaiClient: genaiClient}
}

// Execute runs the named tool with already-parsed arguments. Unknown tool
// names return a literal error-tagged string for the model rather than
// failing the turn; callers fold malformed argument JSON to an empty map
// before reaching here.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) any {
	slog.Debug("Executor.Execute: dispatching tool call", "tool", name)
	switch name {
	case models.ToolNearestServices:
		return e.NearestServices(ctx, args)
	case models.ToolSafetyProtocol:
		return EmergencyResponse()
	case models.ToolOnboarding:
		return OnboardingSpec()
	case models.ToolGuidedSearch:
		return e.GuidedSearch(ctx, args)
	case models.ToolLiveTriage:
		return e.LiveTriage(ctx, args)
	}
	slog.Warn("Executor.Execute: unknown tool requested", "tool", name)
	return fmt.Sprintf("[Error: Unknown tool '%s']", name)
}

// stringArg reads a string argument, returning empty when absent or mistyped.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg reads an integer argument. JSON numbers decode as float64.
func intArg(args map[string]any, key string, defaultValue int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return defaultValue
}
