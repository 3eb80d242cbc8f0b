// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the aiwrite CLI. Subcommands draft and
// revise manuscripts, manage projects and the knowledge base, and run the
// HTTP and MCP servers.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/aiwrite/internal/secrets"
	"github.com/pdiddy/aiwrite/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is the resolved configuration, loaded before any subcommand runs.
var cfg types.AppConfig

// logger writes to stderr so command output on stdout stays clean.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// rootCmd is the base command for the aiwrite CLI.
var rootCmd = &cobra.Command{
	Use:   "aiwrite",
	Short: "AI-assisted scientific manuscript writing",
	Long: `aiwrite drafts and revises scientific manuscripts with a generative model,
grounding the text on a knowledge base of ingested literature.

A manuscript is a Markdown document: the first-level heading is the title and
each second-level heading is a section. Sections are written, enhanced and
critiqued one at a time. Projects bind a model, a language, a documents folder
and a knowledge collection to a manuscript.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading .env: %w", err)
		}
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		logger = newLogger(cfg.Log, os.Stderr)
		slog.SetDefault(logger)

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir, logger)
		if err != nil {
			return err
		}
		secrets.Apply(&cfg, s)
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", "keys", keys)
		}
		return cfg.Validate()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./aiwrite.yaml or ~/.config/aiwrite/config.yaml)")
	pf.String("secrets-dir", ".secrets/", "directory of API key files")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
}

// envReplacer maps config keys to environment names: store.dsn is
// AIWRITE_STORE_DSN.
var envReplacer = strings.NewReplacer(".", "_")

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("aiwrite")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "aiwrite"))
		}
	}

	viper.SetEnvPrefix("AIWRITE")
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()
	setDefaults(types.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every configuration key with viper so environment
// variables such as AIWRITE_STORE_DSN are seen by Unmarshal.
func setDefaults(d types.AppConfig) {
	defaults := map[string]any{
		"store.driver":                 d.Store.Driver,
		"store.dsn":                    d.Store.DSN,
		"knowledge.backend":            d.Knowledge.Backend,
		"knowledge.collection":         d.Knowledge.Collection,
		"knowledge.db_path":            d.Knowledge.DBPath,
		"knowledge.meili_url":          d.Knowledge.MeiliURL,
		"knowledge.meili_api_key":      d.Knowledge.MeiliAPIKey,
		"knowledge.num_docs":           d.Knowledge.NumDocs,
		"generation.default_model":     d.Generation.DefaultModel,
		"generation.base_prompt":       d.Generation.BasePrompt,
		"generation.max_retries":       d.Generation.MaxRetries,
		"generation.timeout":           d.Generation.Timeout,
		"generation.anthropic.model":   d.Generation.Anthropic.Model,
		"generation.anthropic.api_key": d.Generation.Anthropic.APIKey,
		"generation.openai.model":      d.Generation.OpenAI.Model,
		"generation.openai.api_key":    d.Generation.OpenAI.APIKey,
		"generation.openai.base_url":   d.Generation.OpenAI.BaseURL,
		"generation.gemini.model":      d.Generation.Gemini.Model,
		"generation.gemini.api_key":    d.Generation.Gemini.APIKey,
		"generation.ollama.model":      d.Generation.Ollama.Model,
		"generation.ollama.base_url":   d.Generation.Ollama.BaseURL,
		"session.backend":              d.Session.Backend,
		"session.redis_url":            d.Session.RedisURL,
		"session.ttl":                  d.Session.TTL,
		"server.addr":                  d.Server.Addr,
		"ingest.pdftotext":             d.Ingest.Pdftotext,
		"ingest.watch":                 d.Ingest.Watch,
		"log.level":                    d.Log.Level,
		"log.format":                   d.Log.Format,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// loadConfig resolves defaults, the config file, the environment and bound
// flags into an AppConfig.
func loadConfig() (types.AppConfig, error) {
	c := types.DefaultConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding configuration: %w", err)
	}
	return c, nil
}

// newLogger builds the process logger from the log configuration.
func newLogger(c types.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
