// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/aiwrite/internal/httputil"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint.
type OpenAIBackend struct {
	client   *http.Client
	apiKey   string
	model    string
	endpoint string
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIBackend builds a backend for model. An empty baseURL selects the
// public OpenAI endpoint; otherwise "/v1/chat/completions" is appended as
// needed.
func NewOpenAIBackend(apiKey, model, baseURL string, timeout time.Duration) *OpenAIBackend {
	endpoint := strings.TrimSpace(baseURL)
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	} else {
		endpoint = strings.TrimRight(endpoint, "/")
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			if strings.HasSuffix(endpoint, "/v1") {
				endpoint += "/chat/completions"
			} else {
				endpoint += "/v1/chat/completions"
			}
		}
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIBackend{
		client:   &http.Client{Timeout: timeout},
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
	}
}

// Generate sends system as the system message and instruction as the user
// message.
func (o *OpenAIBackend) Generate(ctx context.Context, system, instruction string) (string, error) {
	if strings.TrimSpace(o.apiKey) == "" {
		return "", fmt.Errorf("openai api key is required: %w", ErrNotConfigured)
	}
	if strings.TrimSpace(o.model) == "" {
		return "", fmt.Errorf("openai model is required: %w", ErrNotConfigured)
	}

	messages := make([]openAIChatMessage, 0, 2)
	if system != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, openAIChatMessage{Role: "user", Content: instruction})

	body, err := json.Marshal(openAIChatRequest{Model: o.model, Messages: messages, Temperature: 0.2})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, o.client, req, 0)
	if err != nil {
		return "", fmt.Errorf("calling openai: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading openai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{API: "openai chat request", Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}
