// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// Backend identifiers registered by NewRegistry.
const (
	ModelClaude = "claude"
	ModelGPT    = "gpt"
	ModelGemini = "gemini"
	ModelLlama3 = "llama3"

	// ollamaPrefix selects any local Ollama model, e.g. "ollama:mistral".
	ollamaPrefix = "ollama:"
)

// Factory builds a Backend on demand.
type Factory func(ctx context.Context) (Backend, error)

// Registry maps backend identifiers to factories and selects the default
// backend when asked for an unknown identifier.
type Registry struct {
	factories  map[string]Factory
	fallback   string
	maxRetries int
	cfg        types.GenerationConfig
	logger     *slog.Logger
}

// NewRegistry registers the claude, gpt, gemini and llama3 backends from
// cfg. cfg.DefaultModel is the fallback for unknown identifiers.
func NewRegistry(cfg types.GenerationConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		factories:  make(map[string]Factory),
		fallback:   cfg.DefaultModel,
		maxRetries: cfg.MaxRetries,
		cfg:        cfg,
		logger:     logger,
	}

	r.Register(ModelClaude, func(context.Context) (Backend, error) {
		return &ClaudeBackend{
			APIKey: cfg.Anthropic.APIKey,
			Model:  cfg.Anthropic.Model,
		}, nil
	})
	r.Register(ModelGPT, func(context.Context) (Backend, error) {
		return NewOpenAIBackend(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, cfg.Timeout), nil
	})
	r.Register(ModelGemini, func(ctx context.Context) (Backend, error) {
		return NewGeminiBackend(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	})
	r.Register(ModelLlama3, func(context.Context) (Backend, error) {
		return NewOllamaBackend(cfg.Ollama.Model, cfg.Ollama.BaseURL, cfg.Timeout), nil
	})
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// AvailableModels returns the registered identifiers in sorted order.
func (r *Registry) AvailableModels() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the fallback backend identifier.
func (r *Registry) Default() string {
	return r.fallback
}

// Known reports whether model selects a backend without falling back.
func (r *Registry) Known(model string) bool {
	if _, ok := r.factories[model]; ok {
		return true
	}
	return strings.HasPrefix(model, ollamaPrefix) && len(model) > len(ollamaPrefix)
}

// New returns a Client for model. An unknown identifier is logged and
// replaced by the default backend.
func (r *Registry) New(ctx context.Context, model string) (*Client, error) {
	if !r.Known(model) {
		r.logger.Warn("unknown model, using default", "model", model, "default", r.fallback)
		model = r.fallback
	}

	var factory Factory
	if name, ok := strings.CutPrefix(model, ollamaPrefix); ok {
		factory = func(context.Context) (Backend, error) {
			return NewOllamaBackend(name, r.cfg.Ollama.BaseURL, r.cfg.Timeout), nil
		}
	} else {
		factory = r.factories[model]
	}
	if factory == nil {
		return nil, fmt.Errorf("default model %q is not registered", model)
	}

	backend, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating %s backend: %w", model, err)
	}
	return NewClient(model, backend, r.maxRetries), nil
}
