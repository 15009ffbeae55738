package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evihealth/healthnav/internal/genai"
	"github.com/evihealth/healthnav/internal/models"
	"github.com/evihealth/healthnav/internal/testutil"
	"github.com/openai/openai-go"
)

// scriptedClient pops one reply per tool-loop completion call.
type scriptedClient struct {
	replies []string
	err     error
}

func (c *scriptedClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return "", nil
}

func (c *scriptedClient) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, toolDefs []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	return c.GenerateWithToolsAndOptions(ctx, messages, toolDefs, genai.GenerateOptions{})
}

func (c *scriptedClient) GenerateWithToolsAndOptions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, toolDefs []openai.ChatCompletionToolParam, opts genai.GenerateOptions) (*genai.ToolCallResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(c.replies) == 0 {
		return &genai.ToolCallResponse{Content: "default reply"}, nil
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return &genai.ToolCallResponse{Content: reply}, nil
}

func TestHealthEndpoint(t *testing.T) {
	server := testutil.NewTestServer(&scriptedClient{})
	rr := testutil.DoJSONRequest(t, server.Routes(), http.MethodGet, "/health", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /health")

	var body models.HealthResponse
	testutil.DecodeJSONResponse(t, rr, &body)
	if body.Status != "ok" {
		t.Errorf("expected status ok, got %q", body.Status)
	}
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	server := testutil.NewTestServer(&scriptedClient{})
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	server.Routes().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")

	var body models.ErrorResponse
	testutil.DecodeJSONResponse(t, rr, &body)
	if body.Error != "invalid JSON body" {
		t.Errorf("unexpected error message: %q", body.Error)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	server := testutil.NewTestServer(&scriptedClient{})
	rr := testutil.DoJSONRequest(t, server.Routes(), http.MethodPost, "/chat", models.ChatRequest{Message: "   "})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty message")

	var body models.ErrorResponse
	testutil.DecodeJSONResponse(t, rr, &body)
	if body.Error != "message is required" {
		t.Errorf("unexpected error message: %q", body.Error)
	}
}

func TestChatCreatesSessionAndReplies(t *testing.T) {
	server := testutil.NewTestServer(&scriptedClient{replies: []string{"Hi from the assistant"}})
	rr := testutil.DoJSONRequest(t, server.Routes(), http.MethodPost, "/chat", models.ChatRequest{Message: "Hello there"})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "POST /chat")

	var body models.ChatResponse
	testutil.DecodeJSONResponse(t, rr, &body)
	if body.SessionID == "" {
		t.Error("expected a generated session ID")
	}
	if body.Reply != "Hi from the assistant" {
		t.Errorf("unexpected reply: %q", body.Reply)
	}
	if len(body.Suggestions) != 3 {
		t.Errorf("expected fallback suggestions, got %v", body.Suggestions)
	}
}

func TestChatReusesSession(t *testing.T) {
	server := testutil.NewTestServer(&scriptedClient{replies: []string{"First reply", "Second reply"}})
	handler := server.Routes()

	rr := testutil.DoJSONRequest(t, handler, http.MethodPost, "/chat", models.ChatRequest{Message: "Hello there"})
	var first models.ChatResponse
	testutil.DecodeJSONResponse(t, rr, &first)

	rr = testutil.DoJSONRequest(t, handler, http.MethodPost, "/chat",
		models.ChatRequest{Message: "And another question", SessionID: first.SessionID})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "second POST /chat")

	var second models.ChatResponse
	testutil.DecodeJSONResponse(t, rr, &second)
	if second.SessionID != first.SessionID {
		t.Errorf("expected session reuse, got %q then %q", first.SessionID, second.SessionID)
	}
	if second.Reply != "Second reply" {
		t.Errorf("unexpected reply: %q", second.Reply)
	}
}

func TestChatConvertsHardFailureToRetryReply(t *testing.T) {
	server := testutil.NewTestServer(&scriptedClient{err: errors.New("backend exploded")})
	rr := testutil.DoJSONRequest(t, server.Routes(), http.MethodPost, "/chat", models.ChatRequest{Message: "Hello there"})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "failed turn still returns 200")

	var body models.ChatResponse
	testutil.DecodeJSONResponse(t, rr, &body)
	if body.Reply != "Something went wrong on my side. Please try again in a moment." {
		t.Errorf("expected retry reply, got %q", body.Reply)
	}
}
