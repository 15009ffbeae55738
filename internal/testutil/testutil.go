// Package testutil provides common test utilities and helpers for HealthNav tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evihealth/healthnav/internal/api"
	"github.com/evihealth/healthnav/internal/flow"
	"github.com/evihealth/healthnav/internal/genai"
	"github.com/evihealth/healthnav/internal/store"
	"github.com/evihealth/healthnav/internal/tools"
)

// NewTestServer creates an API server wired to the given completion client,
// with an in-memory session registry and no retry backoff.
func NewTestServer(client genai.ClientInterface) *api.Server {
	executor := tools.NewExecutor(client)
	conversation := flow.NewConversationFlow(client, executor, flow.WithRetryBackoff(0))
	return api.NewServer(conversation, store.NewSessionStore())
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DoJSONRequest performs a request with a JSON body against the handler and
// returns the recorder.
func DoJSONRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// DecodeJSONResponse decodes the recorder body into out, failing the test on error.
func DecodeJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response body: %v (body: %s)", err, rr.Body.String())
	}
}
