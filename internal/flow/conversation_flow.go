package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/evihealth/healthnav/internal/genai"
	"github.com/evihealth/healthnav/internal/models"
	"github.com/evihealth/healthnav/internal/profile"
	"github.com/evihealth/healthnav/internal/prompts"
	"github.com/evihealth/healthnav/internal/tools"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

// Turn processing defaults. HistoryWindow is the trailing turn count sent to
// the model; the reduced ceiling applies after a rate-limit shrink.
const (
	defaultHistoryWindow        = 6
	defaultMaxOutputTokens      = 250
	defaultReducedOutputTokens  = 150
	defaultFallbackOutputTokens = 200
	defaultMaxToolRounds        = 4
	defaultMaxRetries           = 2
	defaultRetryBackoff         = 200 * time.Millisecond
)

// Steering and fallback texts.
const (
	triagePinnedReminder = "TRIAGE MODE IS ACTIVE. " +
		"Do NOT call onboarding unless the user explicitly says 'onboarding'. " +
		"Ask only triage follow-up questions until triage status='final'."

	onboardingPinnedReminder = "ONBOARDING MODE IS ACTIVE. " +
		"Ask the next onboarding question verbatim, in order. " +
		"Do NOT start triage or search during onboarding."

	plainTextInstruction = "You MUST respond to the user now in plain text. " +
		"Do NOT call any tools. " +
		"If triage is incomplete, ask the next 1-3 triage follow-up questions. " +
		"If triage is complete, give routing and next steps."

	onboardingRestartReply = "I hit a snag loading the onboarding questions. Please say 'onboarding' to restart."

	serviceBusyReply = "The service is busy right now. Please try again in a moment."
)

// ConversationFlow is the per-turn state machine. For every incoming message
// it decides among continuing onboarding, continuing triage, starting triage,
// answering an eligibility query, or running a general model turn with the
// tool-call batching loop.
type ConversationFlow struct {
	genaiClient genai.ClientInterface
	executor    *tools.Executor

	historyWindow        int
	maxOutputTokens      int64
	reducedOutputTokens  int64
	fallbackOutputTokens int64
	maxToolRounds        int
	maxRetries           int
	retryBackoff         time.Duration
}

// Option configures a ConversationFlow.
type Option func(*ConversationFlow)

// WithHistoryWindow overrides the trailing history window size.
func WithHistoryWindow(n int) Option {
	return func(cf *ConversationFlow) { cf.historyWindow = n }
}

// WithMaxToolRounds overrides the tool-call round budget per turn.
func WithMaxToolRounds(n int) Option {
	return func(cf *ConversationFlow) { cf.maxToolRounds = n }
}

// WithRetryBackoff overrides the sleep between rate-limit retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(cf *ConversationFlow) { cf.retryBackoff = d }
}

// NewConversationFlow creates the turn state machine with injected
// dependencies. The completion client and executor are required.
func NewConversationFlow(genaiClient genai.ClientInterface, executor *tools.Executor, opts ...Option) *ConversationFlow {
	slog.Debug("flow.NewConversationFlow: creating conversation flow", "hasGenAI", genaiClient != nil, "hasExecutor", executor != nil)
	cf := &ConversationFlow{
		genaiClient:          genaiClient,
		executor:             executor,
		historyWindow:        defaultHistoryWindow,
		maxOutputTokens:      defaultMaxOutputTokens,
		reducedOutputTokens:  defaultReducedOutputTokens,
		fallbackOutputTokens: defaultFallbackOutputTokens,
		maxToolRounds:        defaultMaxToolRounds,
		maxRetries:           defaultMaxRetries,
		retryBackoff:         defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(cf)
	}
	return cf
}

// ProcessTurn processes one user message and returns the assistant reply with
// profile markup stripped. It side-effects the session (history, profile,
// flow states) and never panics on malformed user input; rate-limit
// exhaustion surfaces as a fixed busy reply rather than an error.
func (cf *ConversationFlow) ProcessTurn(ctx context.Context, sess *Session, userText string) (string, error) {
	if sess == nil {
		return "", fmt.Errorf("session is nil")
	}
	slog.Debug("ConversationFlow.ProcessTurn: processing user turn",
		"session", sess.ID, "historyLength", len(sess.History),
		"onboardingActive", sess.Onboarding != nil, "triageActive", sess.Triage != nil)

	sess.appendTurn(models.RoleUser, userText)

	// Active onboarding short-circuits everything else.
	if sess.Onboarding != nil {
		return cf.finalizeReply(ctx, sess, cf.onboardingTurn(sess, userText)), nil
	}

	// Deterministic triage continuation.
	if sess.Triage != nil {
		sess.Triage.RecordAnswer(userText)
		if question, ok := sess.Triage.NextQuestion(); ok {
			return cf.finalizeReply(ctx, sess, question), nil
		}
		summary := sess.Triage.Summarize(sess.Profile.StringField("postcode"))
		sess.Triage = nil
		sess.TriageToolActive = false
		slog.Info("ConversationFlow.ProcessTurn: triage questionnaire complete", "session", sess.ID)
		return cf.finalizeReply(ctx, sess, summary), nil
	}

	switch DetectTrigger(userText) {
	case TriggerTriage:
		sess.Triage = NewTriageState()
		sess.TriageToolActive = true
		slog.Info("ConversationFlow.ProcessTurn: starting triage questionnaire", "session", sess.ID)
		reply := triageLeadIn
		if question, ok := sess.Triage.NextQuestion(); ok {
			reply = triageLeadIn + "\n\n" + question
		}
		return cf.finalizeReply(ctx, sess, reply), nil
	case TriggerEligibility:
		return cf.finalizeReply(ctx, sess, EligibilityResponse()), nil
	}

	return cf.generalTurn(ctx, sess, userText)
}

// onboardingTurn continues the deterministic onboarding walk.
func (cf *ConversationFlow) onboardingTurn(sess *Session, userText string) string {
	state := sess.Onboarding
	if state.Empty() {
		slog.Warn("ConversationFlow.onboardingTurn: onboarding state has no catalog", "session", sess.ID)
		sess.Onboarding = nil
		return onboardingRestartReply
	}
	// First question not yet asked: ask it instead of recording an answer.
	if !state.AwaitingAnswer() && state.Index() == 0 {
		return state.PromptNextQuestion()
	}
	return state.RecordAnswer(userText)
}

// generalTurn runs the model-driven path: safety pre-check, first completion
// with the full tool catalog, the tool-call batching loop, stall recovery,
// and the deterministic onboarding hand-off.
func (cf *ConversationFlow) generalTurn(ctx context.Context, sess *Session, userText string) (string, error) {
	if tools.SafetyCheck(userText) {
		slog.Warn("ConversationFlow.generalTurn: red-flag keywords detected", "session", sess.ID)
		return cf.finalizeReply(ctx, sess, tools.EmergencyResponse()), nil
	}

	base := cf.buildContext(sess, cf.historyWindow)
	toolDefs := tools.Definitions()

	resp, err := cf.generateSafely(ctx, base, toolDefs, genai.GenerateOptions{MaxOutputTokens: cf.maxOutputTokens})
	if err != nil {
		return cf.failTurn(ctx, sess, err)
	}

	messages := base
	bailed := false
	triageCalledThisTurn := false
	triageLookupDone := false

	for round := 1; ; round++ {
		if round > cf.maxToolRounds {
			slog.Warn("ConversationFlow.generalTurn: tool round budget exceeded", "session", sess.ID, "rounds", round-1)
			bailed = true
			break
		}
		if len(resp.ToolCalls) == 0 {
			break
		}
		// At most one round of the triage tool per user turn; a repeated
		// triage-only request counts as budget exceeded.
		if triageCalledThisTurn && allTriageCalls(resp.ToolCalls) {
			slog.Warn("ConversationFlow.generalTurn: repeated triage-only tool request", "session", sess.ID, "round", round)
			bailed = true
			break
		}

		slog.Info("ConversationFlow.generalTurn: executing tool calls", "session", sess.ID, "round", round, "toolCallCount", len(resp.ToolCalls))
		messages = appendAssistantToolCalls(messages, resp)

		for _, call := range resp.ToolCalls {
			args := parseToolArgs(call.Function.Arguments)
			result := cf.executor.Execute(ctx, call.Function.Name, args)
			if call.Function.Name == models.ToolLiveTriage {
				triageCalledThisTurn = true
			}

			outcome := models.ClassifyToolResult(call.Function.Name, result)
			cf.updateStateFromOutcome(sess, outcome)
			messages = append(messages, openai.ToolMessage(toolResultString(result), call.ID))

			// Auto-chain a nearest-service lookup when triage lands on a
			// concrete service with a known postcode, at most once per turn.
			if final, ok := outcome.(models.TriageFinal); ok && !triageLookupDone && shouldChainLookup(final) {
				slog.Info("ConversationFlow.generalTurn: auto-chaining nearest-service lookup",
					"session", sess.ID, "service", final.SuggestedService)
				lookup := cf.executor.Execute(ctx, models.ToolNearestServices, map[string]any{
					"postcode_full": final.PostcodeFull,
					"service_type":  final.SuggestedService,
					"n":             3,
				})
				messages = append(messages, openai.ToolMessage(toolResultString(lookup), call.ID+"__nearest_services"))
				triageLookupDone = true
			}
		}

		// Onboarding activation hands the turn over to the deterministic
		// walk; the next reply is not model-generated.
		if sess.Onboarding != nil {
			break
		}

		resp, err = cf.generateSafely(ctx, messages, toolDefs, genai.GenerateOptions{MaxOutputTokens: cf.maxOutputTokens})
		if err != nil {
			return cf.failTurn(ctx, sess, err)
		}
	}

	reply := resp.Content
	if bailed {
		// Abandoned tool calls are discarded: the forced call sees the
		// original pinned/history context only.
		forcedContext := append(append([]openai.ChatCompletionMessageParamUnion{}, base...), openai.SystemMessage(plainTextInstruction))
		reply, err = cf.forcedPlainText(ctx, forcedContext, toolDefs)
	} else if strings.TrimSpace(reply) == "" && sess.Onboarding == nil {
		slog.Warn("ConversationFlow.generalTurn: blank model output, forcing plain-text reply", "session", sess.ID)
		forcedContext := append(append([]openai.ChatCompletionMessageParamUnion{}, messages...), openai.SystemMessage(plainTextInstruction))
		reply, err = cf.forcedPlainText(ctx, forcedContext, toolDefs)
	}
	if err != nil {
		return cf.failTurn(ctx, sess, err)
	}

	// Override with the first onboarding question rather than trusting
	// model-generated text after activation.
	if sess.Onboarding != nil {
		reply = sess.Onboarding.PromptNextQuestion()
	}

	clean := cf.finalizeReply(ctx, sess, reply)
	sess.Suggestions = cf.generateSuggestions(ctx, sess, clean)
	return clean, nil
}

// finalizeReply applies the shared turn finalization pipeline: link
// canonicalization, profile stripping, history append, and profile persist
// with follow-up generation. Every reply passes through here regardless of
// which state produced it.
func (cf *ConversationFlow) finalizeReply(ctx context.Context, sess *Session, reply string) string {
	reply = EnsureUsefulLinks(reply)
	clean := profile.Strip(reply)
	sess.appendTurn(models.RoleAssistant, clean)

	newProfile, ok := profile.Extract(reply)
	if !ok {
		return clean
	}

	slog.Info("ConversationFlow.finalizeReply: persisting updated profile", "session", sess.ID, "fields", len(newProfile))
	sess.Profile = newProfile
	sess.SystemPrompt = prompts.BuildSystemPrompt(newProfile)
	sess.ResetFlows()
	sess.appendTurn(models.RoleSystem, "Updated user profile for memory:\n"+newProfile.ToJSON())

	if followUp := cf.profileFollowUps(ctx, sess); followUp != "" {
		sess.appendTurn(models.RoleAssistant, followUp)
		clean = clean + "\n\n" + followUp
	}
	return clean
}

// failTurn converts completion failures into the user-visible contract:
// rate-limit exhaustion becomes a fixed busy reply, anything else propagates
// for the host to convert into a retry message.
func (cf *ConversationFlow) failTurn(ctx context.Context, sess *Session, err error) (string, error) {
	slog.Error("ConversationFlow.ProcessTurn: completion failed", "session", sess.ID, "error", err)
	if errors.Is(err, genai.ErrRateLimited) {
		return cf.finalizeReply(ctx, sess, serviceBusyReply), nil
	}
	return "", fmt.Errorf("completion failed: %w", err)
}

// generateSafely wraps completion calls with the rate-limit policy: on each
// rate-limit failure, shrink the context to system/pinned plus the last three
// non-system turns, cap the output ceiling, back off briefly, and retry up to
// the configured count before propagating.
func (cf *ConversationFlow) generateSafely(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, toolDefs []openai.ChatCompletionToolParam, opts genai.GenerateOptions) (*genai.ToolCallResponse, error) {
	current := messages
	var lastErr error
	for attempt := 0; attempt <= cf.maxRetries; attempt++ {
		resp, err := cf.genaiClient.GenerateWithToolsAndOptions(ctx, current, toolDefs, opts)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, genai.ErrRateLimited) {
			return nil, err
		}
		lastErr = err
		slog.Warn("ConversationFlow.generateSafely: rate limited, shrinking context",
			"attempt", attempt+1, "maxRetries", cf.maxRetries, "messageCount", len(current))
		current = shrinkContext(current)
		if opts.MaxOutputTokens == 0 || opts.MaxOutputTokens > cf.reducedOutputTokens {
			opts.MaxOutputTokens = cf.reducedOutputTokens
		}
		time.Sleep(cf.retryBackoff)
	}
	return nil, lastErr
}

// forcedPlainText issues one tool-disabled completion for stall recovery.
func (cf *ConversationFlow) forcedPlainText(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, toolDefs []openai.ChatCompletionToolParam) (string, error) {
	resp, err := cf.generateSafely(ctx, messages, toolDefs, genai.GenerateOptions{
		MaxOutputTokens: cf.fallbackOutputTokens,
		DisableTools:    true,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// buildContext assembles the transient model context: system instructions,
// pinned steering reminders for active modes, and the trailing history window.
func (cf *ConversationFlow) buildContext(sess *Session, window int) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(sess.SystemPrompt)}

	if sess.Onboarding != nil {
		messages = append(messages, openai.SystemMessage(onboardingPinnedReminder))
	}
	if sess.TriageToolActive {
		messages = append(messages, openai.SystemMessage(triagePinnedReminder))
	}

	history := sess.History
	if len(history) > window {
		history = history[len(history)-window:]
	}
	for _, turn := range history {
		switch turn.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	return messages
}

// updateStateFromOutcome reconciles a classified tool result into flow-state
// transitions. Unparseable and plain-text results carry no signal.
func (cf *ConversationFlow) updateStateFromOutcome(sess *Session, outcome models.ToolOutcome) {
	switch o := outcome.(type) {
	case models.OnboardingInit:
		slog.Info("ConversationFlow.updateStateFromOutcome: onboarding mode activated", "session", sess.ID, "questionCount", len(o.Questions))
		sess.Onboarding = NewOnboardingState(o.Questions)
		sess.TriageToolActive = false
	case models.TriageNeedMore:
		sess.TriageToolActive = true
		for key, value := range o.KnownAnswersUpdate {
			sess.TriageKnownAnswers[key] = value
		}
	case models.TriageFinal:
		sess.TriageToolActive = false
	}
}

// profileFollowUps generates short profile-tailored next steps after a
// profile persist, falling back to a canned list if the call fails.
func (cf *ConversationFlow) profileFollowUps(ctx context.Context, sess *Session) string {
	if len(sess.Profile) == 0 {
		return ""
	}
	prompt := fmt.Sprintf(prompts.FollowUpsTemplate, sess.Profile.ToJSON())
	text, err := cf.genaiClient.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)})
	if err != nil {
		slog.Warn("ConversationFlow.profileFollowUps: generation failed, using fallback", "session", sess.ID, "error", err)
		return prompts.FallbackFollowUps
	}
	return strings.TrimSpace(text)
}

// generateSuggestions produces up to three short next-prompt suggestions,
// falling back to a fixed list when generation or parsing fails.
func (cf *ConversationFlow) generateSuggestions(ctx context.Context, sess *Session, lastReply string) []string {
	prompt := fmt.Sprintf(prompts.SuggestionsTemplate, sess.Profile.ToJSON(), lastReply)
	text, err := cf.genaiClient.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)})
	if err == nil {
		var parsed []any
		if json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed) == nil {
			var cleaned []string
			for _, item := range parsed {
				if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
					cleaned = append(cleaned, s)
				}
			}
			if len(cleaned) > 3 {
				cleaned = cleaned[:3]
			}
			if len(cleaned) > 0 {
				return cleaned
			}
		}
	}
	return prompts.FallbackSuggestions()
}

// shrinkContext keeps all system-role messages and the last three non-system
// turns, matching the rate-limit recovery policy.
func shrinkContext(messages []openai.ChatCompletionMessageParamUnion) []openai.ChatCompletionMessageParamUnion {
	var systems, others []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		if msg.OfSystem != nil {
			systems = append(systems, msg)
		} else {
			others = append(others, msg)
		}
	}
	if len(others) > 3 {
		others = others[len(others)-3:]
	}
	return append(systems, others...)
}

// appendAssistantToolCalls records the model's tool-call request in the
// conversation context so the follow-up completion can resolve it.
func appendAssistantToolCalls(messages []openai.ChatCompletionMessageParamUnion, resp *genai.ToolCallResponse) []openai.ChatCompletionMessageParamUnion {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, call := range resp.ToolCalls {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   call.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Function.Name,
				Arguments: string(call.Function.Arguments),
			},
		})
	}
	assistant := openai.ChatCompletionAssistantMessageParam{
		Content: openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: param.NewOpt(resp.Content),
		},
		ToolCalls: toolCalls,
	}
	return append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
}

// parseToolArgs decodes tool-call arguments, folding malformed JSON to an
// empty argument object so tools execute with defaults.
func parseToolArgs(raw json.RawMessage) map[string]any {
	args := map[string]any{}
	if len(raw) == 0 {
		return args
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		slog.Warn("flow.parseToolArgs: malformed tool arguments, using empty object", "error", err)
		return map[string]any{}
	}
	return args
}

// toolResultString renders a tool result for the completion endpoint.
func toolResultString(result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(data)
}

func allTriageCalls(calls []genai.ToolCall) bool {
	for _, call := range calls {
		if call.Function.Name != models.ToolLiveTriage {
			return false
		}
	}
	return len(calls) > 0
}

func shouldChainLookup(final models.TriageFinal) bool {
	return final.ShouldLookup &&
		final.PostcodeFull != "" &&
		(final.SuggestedService == models.ServiceGP || final.SuggestedService == models.ServiceAE)
}
