package tools

import (
	"github.com/evihealth/healthnav/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// Definitions returns the full tool catalog advertised to the model.
func Definitions() []openai.ChatCompletionToolParam {
	return []openai.ChatCompletionToolParam{
		{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name: models.ToolNearestServices,
				Description: openai.String("Given a FULL UK postcode and service type, open the NHS service-search " +
					"results page and return the nearest 2-3 options."),
				Parameters: shared.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"postcode_full": map[string]interface{}{
							"type":        "string",
							"description": "Full UK postcode, e.g. 'NW1 2BU'. Must be complete.",
						},
						"service_type": map[string]interface{}{
							"type":        "string",
							"enum":        []string{models.ServiceGP, models.ServiceAE},
							"description": "Which NHS results page to use.",
						},
						"n": map[string]interface{}{
							"type":    "integer",
							"default": 3,
							"minimum": 1,
							"maximum": 5,
						},
					},
					"required": []string{"postcode_full", "service_type"},
				},
			},
		},
		{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name:        models.ToolSafetyProtocol,
				Description: openai.String("Safety response for dangerous symptoms."),
				Parameters: shared.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"message": map[string]interface{}{"type": "string"},
					},
					"required": []string{"message"},
				},
			},
		},
		{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name:        models.ToolOnboarding,
				Description: openai.String("Collect or refresh the user's profile so guidance can be personalised."),
				Parameters: shared.FunctionParameters{
					"type":       "object",
					"properties": map[string]interface{}{},
					"required":   []string{},
				},
			},
		},
		{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name: models.ToolGuidedSearch,
				Description: openai.String("Search approved NHS/GOV.UK sites first. " +
					"If nothing relevant is found, run a general search fallback. Never scrape manually."),
				Parameters: shared.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{"type": "string"},
						"max_results": map[string]interface{}{
							"type":    "integer",
							"default": 5,
						},
					},
					"required": []string{"query"},
				},
			},
		},
		{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name: models.ToolLiveTriage,
				Description: openai.String("Lightweight triage + routing in the style of NHS 111. " +
					"Returns a structured routing result and a flag to chain to nearest_nhs_services " +
					"when GP or A&E is recommended and a full postcode is provided."),
				Parameters: shared.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"presenting_issue": map[string]interface{}{
							"type":        "string",
							"description": "User's symptom or concern in natural language.",
						},
						"postcode_full": map[string]interface{}{
							"type": "string",
							"description": "Optional full UK postcode (e.g., 'NW1 2BU'). If provided and triage " +
								"recommends GP or A&E, the agent should chain to nearest_nhs_services.",
						},
						"known_answers": map[string]interface{}{
							"type": "object",
							"description": "Free-form key/value store of answers already collected " +
								"(e.g., {'severity': 6, 'red_flags': 'no'}). Used to skip redundant questions.",
							"additionalProperties": true,
						},
					},
					"required": []string{"presenting_issue"},
				},
			},
		},
	}
}
