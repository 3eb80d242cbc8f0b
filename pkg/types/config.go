// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Knowledge backends.
const (
	KnowledgeSQLite      = "sqlite"
	KnowledgeMeilisearch = "meilisearch"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// DefaultBasePrompt is the standing instruction prepended to every context.
const DefaultBasePrompt = "You are a scientific writer. You should write sections of scientific articles in markdown " +
	"format on request."

// StoreConfig selects the relational store holding manuscripts and projects.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`

	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// KnowledgeConfig selects the retrieval backend and the default collection.
type KnowledgeConfig struct {
	// Backend is "sqlite" (default) or "meilisearch".
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Collection is the collection opened at startup.
	Collection string `json:"collection" yaml:"collection" mapstructure:"collection"`

	// DBPath is the sqlite passage database (sqlite backend).
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// MeiliURL and MeiliAPIKey address the meilisearch backend.
	MeiliURL    string `json:"meili_url,omitempty" yaml:"meili_url,omitempty" mapstructure:"meili_url"`
	MeiliAPIKey string `json:"meili_api_key,omitempty" yaml:"meili_api_key,omitempty" mapstructure:"meili_api_key"`

	// NumDocs is the number of passages retrieved when drafting an abstract (default 15).
	NumDocs int `json:"num_docs" yaml:"num_docs" mapstructure:"num_docs"`
}

// Validate checks the knowledge configuration.
func (c *KnowledgeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(KnowledgeSQLite, KnowledgeMeilisearch)),
		validation.Field(&c.Collection, validation.Required),
		validation.Field(&c.DBPath, validation.When(c.Backend == KnowledgeSQLite, validation.Required)),
		validation.Field(&c.MeiliURL, validation.When(c.Backend == KnowledgeMeilisearch, validation.Required)),
		validation.Field(&c.NumDocs, validation.Min(1)),
	)
}

// AIConfig holds shared settings for a Generative AI API backend.
type AIConfig struct {
	// Model is the provider's model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint (openai-compatible and ollama).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// GenerationConfig holds settings for the generation backends.
type GenerationConfig struct {
	// DefaultModel is the backend identifier used when none is selected or the
	// selected one is unknown: claude, gpt, gemini, llama3.
	DefaultModel string `json:"default_model" yaml:"default_model" mapstructure:"default_model"`

	// BasePrompt is the initial standing instruction for new sessions.
	BasePrompt string `json:"base_prompt" yaml:"base_prompt" mapstructure:"base_prompt"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Timeout bounds a single HTTP request to a backend.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	Anthropic AIConfig `json:"anthropic" yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    AIConfig `json:"openai" yaml:"openai" mapstructure:"openai"`
	Gemini    AIConfig `json:"gemini" yaml:"gemini" mapstructure:"gemini"`
	Ollama    AIConfig `json:"ollama" yaml:"ollama" mapstructure:"ollama"`
}

// Validate checks the generation configuration.
func (c *GenerationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultModel, validation.Required),
		validation.Field(&c.BasePrompt, validation.Required),
		validation.Field(&c.MaxRetries, validation.Min(0)),
	)
}

// SessionConfig selects where per-session engine state is kept.
type SessionConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// RedisURL addresses the redis backend (e.g. "redis://localhost:6379/0").
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" mapstructure:"redis_url"`

	// TTL expires idle sessions (default 24h).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// Validate checks the session configuration.
func (c *SessionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(SessionMemory, SessionRedis)),
		validation.Field(&c.RedisURL, validation.When(c.Backend == SessionRedis, validation.Required)),
	)
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required),
	)
}

// IngestConfig holds settings for document ingestion.
type IngestConfig struct {
	// Pdftotext is the pdftotext binary used to extract PDF pages.
	Pdftotext string `json:"pdftotext" yaml:"pdftotext" mapstructure:"pdftotext"`

	// Watch enables watching the current project's documents folder.
	Watch bool `json:"watch" yaml:"watch" mapstructure:"watch"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// Validate checks the log configuration.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.In("text", "json")),
	)
}

// AppConfig groups every block of the application configuration.
type AppConfig struct {
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Knowledge  KnowledgeConfig  `json:"knowledge" yaml:"knowledge" mapstructure:"knowledge"`
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	Session    SessionConfig    `json:"session" yaml:"session" mapstructure:"session"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Ingest     IngestConfig     `json:"ingest" yaml:"ingest" mapstructure:"ingest"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// Validate checks every configuration block.
func (c *AppConfig) Validate() error {
	for _, v := range []validation.Validatable{
		&c.Store, &c.Knowledge, &c.Generation, &c.Session, &c.Server, &c.Log,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DefaultConfig returns an AppConfig with local-first defaults: sqlite for
// both stores under data/, in-memory sessions, gemini as default model.
func DefaultConfig() AppConfig {
	return AppConfig{
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "data/aiwrite.db",
		},
		Knowledge: KnowledgeConfig{
			Backend:    KnowledgeSQLite,
			Collection: "literature",
			DBPath:     "data/embedding.db",
			NumDocs:    15,
		},
		Generation: GenerationConfig{
			DefaultModel: "gemini",
			BasePrompt:   DefaultBasePrompt,
			MaxRetries:   3,
			Timeout:      90 * time.Second,
			Anthropic:    AIConfig{Model: "claude-sonnet-4-5-20250929"},
			OpenAI:       AIConfig{Model: "gpt-4o"},
			Gemini:       AIConfig{Model: "gemini-2.5-flash"},
			Ollama:       AIConfig{Model: "llama3", BaseURL: "http://127.0.0.1:11434"},
		},
		Session: SessionConfig{
			Backend: SessionMemory,
			TTL:     24 * time.Hour,
		},
		Server: ServerConfig{Addr: ":8080"},
		Ingest: IngestConfig{Pdftotext: "pdftotext"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}
