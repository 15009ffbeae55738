// Package genai provides the OpenAI-backed completion client used by the
// conversation flows. All calls are blocking round-trips with a per-call
// deadline; rate-limit failures are surfaced as ErrRateLimited so callers can
// apply their own shrink-and-retry policy.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

var (
	// ErrAPIKeyNotSet indicates no OpenAI API key was provided or found in the environment.
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set")
	// ErrNoChoices indicates the completion endpoint returned an empty choice list.
	ErrNoChoices = errors.New("no choices returned from completion")
	// ErrRateLimited wraps HTTP 429 responses from the completion endpoint.
	ErrRateLimited = errors.New("completion rate limited")
)

// ToolCall represents a single function call requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the name and raw JSON arguments of a tool call.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResponse is the result of a completion that may include tool calls.
type ToolCallResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// GenerateOptions tunes a single completion call.
type GenerateOptions struct {
	// MaxOutputTokens caps the completion size; 0 uses the client default.
	MaxOutputTokens int64
	// DisableTools forces a plain-text reply (tool_choice "none") even when
	// tool definitions are supplied.
	DisableTools bool
}

// ClientInterface defines the completion operations consumed by the flows.
// Implementations must be safe for concurrent use.
type ClientInterface interface {
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error)
	GenerateWithToolsAndOptions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam, opts GenerateOptions) (*ToolCallResponse, error)
}

// Client wraps the OpenAI SDK client.
type Client struct {
	client    openai.Client
	model     shared.ChatModel
	maxTokens int64
	timeout   time.Duration
}

// options holds configuration collected from Option values before construction.
type options struct {
	apiKey    string
	model     shared.ChatModel
	maxTokens int64
	timeout   time.Duration
}

// Option configures the Client.
type Option func(*options)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(o *options) { o.model = shared.ChatModel(model) }
}

// WithMaxTokens overrides the default output token ceiling.
func WithMaxTokens(n int64) Option {
	return func(o *options) { o.maxTokens = n }
}

// WithTimeout overrides the default per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// NewClient creates a completion client. The API key falls back to
// $OPENAI_API_KEY when not supplied via WithAPIKey.
func NewClient(opts ...Option) (*Client, error) {
	cfg := options{
		model:     openai.ChatModelGPT4oMini,
		maxTokens: 250,
		timeout:   60 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.apiKey == "" {
		slog.Error("genai.NewClient: API key not provided")
		return nil, ErrAPIKeyNotSet
	}

	slog.Debug("genai.NewClient: creating client", "model", cfg.model, "maxTokens", cfg.maxTokens, "timeout", cfg.timeout)
	return &Client{
		client:    openai.NewClient(option.WithAPIKey(cfg.apiKey)),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
		timeout:   cfg.timeout,
	}, nil
}

// GenerateWithMessages produces a plain-text completion for the given messages.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateWithTools produces a completion with the full tool catalog available
// and automatic tool selection.
func (c *Client) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error) {
	return c.GenerateWithToolsAndOptions(ctx, messages, tools, GenerateOptions{})
}

// GenerateWithToolsAndOptions produces a completion with per-call tuning of
// the output ceiling and tool choice policy.
func (c *Client) GenerateWithToolsAndOptions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam, opts GenerateOptions) (*ToolCallResponse, error) {
	maxTokens := c.maxTokens
	if opts.MaxOutputTokens > 0 {
		maxTokens = opts.MaxOutputTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	if opts.DisableTools {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
	}

	resp, err := c.complete(ctx, params)
	if err != nil {
		return nil, err
	}

	message := resp.Choices[0].Message
	result := &ToolCallResponse{Content: message.Content}
	for _, tc := range message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			},
		})
	}

	slog.Debug("genai.GenerateWithToolsAndOptions: completion received",
		"contentLength", len(result.Content), "toolCallCount", len(result.ToolCalls), "maxTokens", maxTokens, "toolsDisabled", opts.DisableTools)
	return result, nil
}

// complete performs a single chat completion round-trip with the per-call deadline applied.
func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			slog.Warn("genai.complete: rate limited by completion endpoint")
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		slog.Error("genai.complete: completion failed", "error", err)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return resp, nil
}
