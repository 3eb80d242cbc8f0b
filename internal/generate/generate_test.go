// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/aiwrite/internal/httputil"
	"github.com/pdiddy/aiwrite/pkg/types"
)

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

// failNTimesBackend fails the first N calls, then succeeds.
type failNTimesBackend struct {
	failures  int
	callCount int
	response  string
}

func (f *failNTimesBackend) Generate(_ context.Context, _, _ string) (string, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return "", fmt.Errorf("transient error (call %d)", f.callCount)
	}
	return f.response, nil
}

func TestCallWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantErr    bool
	}{
		{"succeeds first try", 0, 3, false},
		{"succeeds after 2 failures", 2, 3, false},
		{"fails after exhausting retries", 4, 3, true},
		{"succeeds on last retry", 3, 3, false},
		{"no retries", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &failNTimesBackend{failures: tt.failures, response: "ok"}
			got, err := callWithRetry(context.Background(), backend, "ctx", "ask", tt.maxRetries)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", got)
		})
	}
}

func TestCallWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	backend := &failNTimesBackend{failures: 10}
	_, err := callWithRetry(ctx, backend, "", "", 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallWithRetry_StopsOnPermanentErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"missing key", fmt.Errorf("anthropic api key is required: %w", ErrNotConfigured), 1},
		{"bad request", &StatusError{API: "Claude API", Code: http.StatusBadRequest}, 1},
		{"unauthorized", fmt.Errorf("wrapped: %w", &StatusError{API: "openai", Code: http.StatusUnauthorized}), 1},
		{"rate limited", &StatusError{API: "Claude API", Code: http.StatusTooManyRequests}, 4},
		{"server error", &StatusError{API: "ollama", Code: http.StatusBadGateway}, 4},
		{"network error", errors.New("connection reset"), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			backend := BackendFunc(func(context.Context, string, string) (string, error) {
				calls++
				return "", tt.err
			})
			_, err := callWithRetry(context.Background(), backend, "", "", 3)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestClient_AskUsesStandingContext(t *testing.T) {
	var gotSystem, gotInstruction string
	c := NewClient("mock", BackendFunc(func(_ context.Context, system, instruction string) (string, error) {
		gotSystem, gotInstruction = system, instruction
		return "```markdown\n## Intro\nText\n```", nil
	}), 0)

	c.SetContext("You are a writer.")
	got, err := c.Ask(context.Background(), "Write it.")
	require.NoError(t, err)

	assert.Equal(t, "## Intro\nText", got)
	assert.Equal(t, "You are a writer.", gotSystem)
	assert.Equal(t, "Write it.", gotInstruction)
	assert.Equal(t, "You are a writer.", c.Context())
	assert.Equal(t, "mock", c.Model())
}

func TestClient_AskEmptyReply(t *testing.T) {
	c := NewClient("mock", BackendFunc(func(context.Context, string, string) (string, error) {
		return "  \n ", nil
	}), 0)
	_, err := c.Ask(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestCleanMarkdownOutput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"```markdown\nbody\n```", "body"},
		{"```\nbody\n```", "body"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanMarkdownOutput(tt.in))
	}
}

// --- registry ---

func testRegistry(t *testing.T, buf *bytes.Buffer) *Registry {
	t.Helper()
	cfg := types.DefaultConfig().Generation
	cfg.DefaultModel = "mock"
	r := NewRegistry(cfg, slog.New(slog.NewTextHandler(buf, nil)))
	r.Register("mock", func(context.Context) (Backend, error) {
		return BackendFunc(func(context.Context, string, string) (string, error) { return "mocked", nil }), nil
	})
	return r
}

func TestRegistry_AvailableModels(t *testing.T) {
	var buf bytes.Buffer
	r := testRegistry(t, &buf)
	assert.Equal(t, []string{"claude", "gemini", "gpt", "llama3", "mock"}, r.AvailableModels())
}

func TestRegistry_UnknownModelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	r := testRegistry(t, &buf)

	c, err := r.New(context.Background(), "no-such-model")
	require.NoError(t, err)
	assert.Equal(t, "mock", c.Model())
	assert.Contains(t, buf.String(), "unknown model")
	assert.Contains(t, buf.String(), "no-such-model")

	got, err := c.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "mocked", got)
}

func TestRegistry_KnownModels(t *testing.T) {
	var buf bytes.Buffer
	r := testRegistry(t, &buf)

	for _, name := range []string{ModelClaude, ModelGPT, ModelLlama3, "ollama:mistral"} {
		c, err := r.New(context.Background(), name)
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Model())
	}
	assert.Empty(t, buf.String())

	// Gemini needs a key to build its SDK client.
	_, err := r.New(context.Background(), ModelGemini)
	assert.Error(t, err)
	assert.False(t, r.Known("ollama:"))
}

func TestRegistry_FactoryError(t *testing.T) {
	var buf bytes.Buffer
	r := testRegistry(t, &buf)
	r.Register("broken", func(context.Context) (Backend, error) { return nil, errors.New("boom") })

	_, err := r.New(context.Background(), "broken")
	assert.ErrorContains(t, err, "boom")
}

// --- HTTP backends ---

func TestClaudeBackend_Generate(t *testing.T) {
	var got claudeRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(claudeResponse{Content: []claudeContent{{Type: "text", Text: "A title"}}})
	}))
	defer ts.Close()

	old := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = old }()

	b := &ClaudeBackend{APIKey: "secret", Model: "claude-test", Client: ts.Client()}
	text, err := b.Generate(context.Background(), "standing", "Give a title.")
	require.NoError(t, err)
	assert.Equal(t, "A title", text)
	assert.Equal(t, "standing", got.System)
	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, 4096, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Give a title.", got.Messages[0].Content)
}

func TestClaudeBackend_Errors(t *testing.T) {
	_, err := (&ClaudeBackend{}).Generate(context.Background(), "", "x")
	assert.ErrorContains(t, err, "api key")
	assert.ErrorIs(t, err, ErrNotConfigured)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad"}`))
	}))
	defer ts.Close()
	old := claudeAPIURL
	claudeAPIURL = ts.URL
	defer func() { claudeAPIURL = old }()

	_, err = (&ClaudeBackend{APIKey: "k", Client: ts.Client()}).Generate(context.Background(), "", "x")
	assert.ErrorContains(t, err, "400")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestOpenAIBackend_Generate(t *testing.T) {
	var got openAIChatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Abstract text."}}]}`))
	}))
	defer ts.Close()

	b := NewOpenAIBackend("key", "gpt-test", ts.URL, time.Second)
	text, err := b.Generate(context.Background(), "standing", "Write.")
	require.NoError(t, err)
	assert.Equal(t, "Abstract text.", text)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "standing", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestOpenAIBackend_Endpoint(t *testing.T) {
	tests := []struct{ base, want string }{
		{"", defaultOpenAIEndpoint},
		{"http://h/v1", "http://h/v1/chat/completions"},
		{"http://h/", "http://h/v1/chat/completions"},
		{"http://h/v1/chat/completions", "http://h/v1/chat/completions"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewOpenAIBackend("k", "m", tt.base, 0).endpoint)
	}
}

func TestOllamaBackend_Generate(t *testing.T) {
	var got ollamaChatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"message":{"role":"assistant","content":"Local reply."},"done":true}`))
	}))
	defer ts.Close()

	b := NewOllamaBackend("llama3", ts.URL, time.Second)
	text, err := b.Generate(context.Background(), "", "Write.")
	require.NoError(t, err)
	assert.Equal(t, "Local reply.", text)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "llama3", got.Model)
}

func TestOllamaBackend_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer ts.Close()

	_, err := NewOllamaBackend("nope", ts.URL, time.Second).Generate(context.Background(), "", "x")
	assert.ErrorContains(t, err, "model not found")
}
