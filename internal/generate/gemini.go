// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API through the genai SDK. The standing
// context is sent as the system instruction.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend creates a genai client for the Gemini API.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

// Generate calls GenerateContent with instruction as the user content.
func (g *GeminiBackend) Generate(ctx context.Context, system, instruction string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(instruction), cfg)
	if err != nil {
		return "", fmt.Errorf("calling gemini: %w", err)
	}
	return resp.Text(), nil
}
