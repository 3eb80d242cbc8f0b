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
)

// OllamaBackend calls a local Ollama server's chat endpoint.
type OllamaBackend struct {
	client   *http.Client
	model    string
	endpoint string
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message openAIChatMessage `json:"message"`
	Error   string            `json:"error,omitempty"`
}

// NewOllamaBackend builds a backend for model at baseURL (default
// http://127.0.0.1:11434).
func NewOllamaBackend(model, baseURL string, timeout time.Duration) *OllamaBackend {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = "http://127.0.0.1:11434"
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, "/api/chat") {
		url += "/api/chat"
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OllamaBackend{
		client:   &http.Client{Timeout: timeout},
		model:    model,
		endpoint: url,
	}
}

// Generate sends a non-streaming chat request.
func (o *OllamaBackend) Generate(ctx context.Context, system, instruction string) (string, error) {
	if strings.TrimSpace(o.model) == "" {
		return "", fmt.Errorf("ollama model is required: %w", ErrNotConfigured)
	}

	messages := make([]openAIChatMessage, 0, 2)
	if system != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, openAIChatMessage{Role: "user", Content: instruction})

	body, err := json.Marshal(ollamaChatRequest{Model: o.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{API: "ollama chat request", Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding ollama response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: %s", parsed.Error)
	}
	return parsed.Message.Content, nil
}
