// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files and
// folds them into the application configuration. The filename is the key
// name and the trimmed file contents are the value.
//
// Recognized key files: anthropic-api-key, openai-api-key, gemini-api-key,
// meili-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/aiwrite/pkg/types"
)

// Key file names.
const (
	AnthropicKey = "anthropic-api-key"
	OpenAIKey    = "openai-api-key"
	GeminiKey    = "gemini-api-key"
	MeiliKey     = "meili-api-key"
)

// Load reads every file in dir into a map of filename to trimmed contents.
// A missing directory yields an empty map. Unreadable files are logged and
// skipped; hidden files, subdirectories and empty values are ignored.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// Apply copies recognized keys into cfg. Keys already set in cfg, from the
// config file or the environment, take precedence.
func Apply(cfg *types.AppConfig, keys map[string]string) {
	fill := func(dst *string, name string) {
		if *dst == "" {
			*dst = keys[name]
		}
	}
	fill(&cfg.Generation.Anthropic.APIKey, AnthropicKey)
	fill(&cfg.Generation.OpenAI.APIKey, OpenAIKey)
	fill(&cfg.Generation.Gemini.APIKey, GeminiKey)
	fill(&cfg.Knowledge.MeiliAPIKey, MeiliKey)
}
