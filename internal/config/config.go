package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/hoanghai1803/dokhae/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	AI            AIConfig            `toml:"ai"`
	YouTube       YouTubeConfig       `toml:"youtube"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Cache         CacheConfig         `toml:"cache"`
	Pipeline      PipelineConfig      `toml:"pipeline"`
	Fetch         FetchConfig         `toml:"fetch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	DataDir string `toml:"data_dir"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AIConfig holds the provider used for translation and enrichment.
type AIConfig struct {
	Provider string `toml:"provider"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
}

// YouTubeConfig holds video platform settings.
type YouTubeConfig struct {
	APIKey string `toml:"api_key"`
	// TranscriptLanguages are caption tracks tried after the video's own
	// declared language.
	TranscriptLanguages []string `toml:"transcript_languages"`
}

// TranscriptionConfig holds the derived-transcription fallback settings.
type TranscriptionConfig struct {
	Enabled  bool   `toml:"enabled"`
	Provider string `toml:"provider"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
}

// CacheConfig holds artifact cache settings.
type CacheConfig struct {
	TTLMinutes       int    `toml:"ttl_minutes"`
	Persist          bool   `toml:"persist"`
	SweepSchedule    string `toml:"sweep_schedule"`
	RunRetentionDays int    `toml:"run_retention_days"`
}

// TTL returns the artifact lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// PipelineConfig holds analysis pipeline tunables.
type PipelineConfig struct {
	DefaultTargetLanguage string  `toml:"default_target_language"`
	TimeoutSeconds        int     `toml:"timeout_seconds"`
	CallTimeoutSeconds    int     `toml:"call_timeout_seconds"`
	MaxAttempts           int     `toml:"max_attempts"`
	TranslateBatchSize    int     `toml:"translate_batch_size"`
	TranslateConcurrency  int     `toml:"translate_concurrency"`
	MinLanguageConfidence float64 `toml:"min_language_confidence"`
}

// FetchConfig holds document fetching settings.
type FetchConfig struct {
	TimeoutSeconds   int `toml:"timeout_seconds"`
	RateLimitSeconds int `toml:"rate_limit_seconds"`
	MaxWords         int `toml:"max_words"`
}

const defaultConfigContent = `[server]
host = "localhost"
port = 8080
data_dir = "./data"

[ai]
provider = "anthropic"            # "anthropic", "openai" or "gemini"
api_key = ""                      # Your API key (or set AI_API_KEY env var)
model = "claude-haiku-4-5"

[youtube]
api_key = ""                      # YouTube Data API key (or set YOUTUBE_API_KEY)
transcript_languages = ["en", "ko"]

[transcription]
enabled = false                   # Transcribe videos without captions
provider = "gemini"
api_key = ""                      # Or set GEMINI_API_KEY
model = "gemini-2.5-flash"

[cache]
ttl_minutes = 1440
persist = true                    # Keep artifacts across restarts
sweep_schedule = "@every 10m"
run_retention_days = 30

[pipeline]
default_target_language = "en"
timeout_seconds = 180
call_timeout_seconds = 45
max_attempts = 3
translate_batch_size = 40
translate_concurrency = 4
min_language_confidence = 0.5

[fetch]
timeout_seconds = 30
rate_limit_seconds = 1
max_words = 20000
`

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. A .env file in the
// working directory, when present, is loaded first; environment variables
// override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate explicitly-set values before applying defaults, so that
	// explicitly writing "port = 0" is an error rather than silently
	// being replaced with the default.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg, md)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file.
// This catches cases like "port = 0" which would otherwise be silently
// replaced by the default value.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	if md.IsDefined("cache", "ttl_minutes") && cfg.Cache.TTLMinutes < 1 {
		return fmt.Errorf("invalid cache.ttl_minutes %d: must be >= 1", cfg.Cache.TTLMinutes)
	}
	if md.IsDefined("pipeline", "timeout_seconds") && cfg.Pipeline.TimeoutSeconds < 1 {
		return fmt.Errorf("invalid pipeline.timeout_seconds %d: must be >= 1", cfg.Pipeline.TimeoutSeconds)
	}
	if md.IsDefined("pipeline", "max_attempts") && cfg.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("invalid pipeline.max_attempts %d: must be >= 1", cfg.Pipeline.MaxAttempts)
	}
	if md.IsDefined("fetch", "rate_limit_seconds") && cfg.Fetch.RateLimitSeconds < 0 {
		return fmt.Errorf("invalid fetch.rate_limit_seconds %d: must be >= 0", cfg.Fetch.RateLimitSeconds)
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields. Booleans
// default to true only when the key is absent from the file.
func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = "./data"
	}

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "anthropic"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModel(cfg.AI.Provider)
	}

	if cfg.Transcription.Provider == "" {
		cfg.Transcription.Provider = "gemini"
	}
	if cfg.Transcription.Model == "" {
		cfg.Transcription.Model = defaultModel(cfg.Transcription.Provider)
	}

	if cfg.Cache.TTLMinutes == 0 {
		cfg.Cache.TTLMinutes = 1440
	}
	if !md.IsDefined("cache", "persist") {
		cfg.Cache.Persist = true
	}
	if cfg.Cache.SweepSchedule == "" {
		cfg.Cache.SweepSchedule = "@every 10m"
	}
	if cfg.Cache.RunRetentionDays == 0 {
		cfg.Cache.RunRetentionDays = 30
	}

	if cfg.Pipeline.DefaultTargetLanguage == "" {
		cfg.Pipeline.DefaultTargetLanguage = "en"
	}
	if cfg.Pipeline.TimeoutSeconds == 0 {
		cfg.Pipeline.TimeoutSeconds = 180
	}
	if cfg.Pipeline.CallTimeoutSeconds == 0 {
		cfg.Pipeline.CallTimeoutSeconds = 45
	}
	if cfg.Pipeline.MaxAttempts == 0 {
		cfg.Pipeline.MaxAttempts = 3
	}
	if cfg.Pipeline.TranslateBatchSize == 0 {
		cfg.Pipeline.TranslateBatchSize = 40
	}
	if cfg.Pipeline.TranslateConcurrency == 0 {
		cfg.Pipeline.TranslateConcurrency = 4
	}
	if !md.IsDefined("pipeline", "min_language_confidence") {
		cfg.Pipeline.MinLanguageConfidence = 0.5
	}

	if cfg.Fetch.TimeoutSeconds == 0 {
		cfg.Fetch.TimeoutSeconds = 30
	}
	if !md.IsDefined("fetch", "rate_limit_seconds") {
		cfg.Fetch.RateLimitSeconds = 1
	}
	if cfg.Fetch.MaxWords == 0 {
		cfg.Fetch.MaxWords = 20000
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-2.5-flash"
	}
	return "claude-haiku-4-5"
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
//
// Priority for ai.api_key:
//  1. AI_API_KEY (generic, highest)
//  2. ANTHROPIC_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY, matching the provider
//
// transcription.api_key follows GEMINI_API_KEY and falls back to ai.api_key
// when both sections use the same provider.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(providerKeyEnv(cfg.AI.Provider)); v != "" {
		cfg.AI.APIKey = v
	}
	// AI_API_KEY overrides everything (highest priority).
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}

	if v := os.Getenv(providerKeyEnv(cfg.Transcription.Provider)); v != "" {
		cfg.Transcription.APIKey = v
	}
	if cfg.Transcription.APIKey == "" && cfg.Transcription.Provider == cfg.AI.Provider {
		cfg.Transcription.APIKey = cfg.AI.APIKey
	}

	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.YouTube.APIKey = v
	}
}

func providerKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	}
	return ""
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	switch cfg.AI.Provider {
	case "anthropic", "openai", "gemini":
		// valid
	default:
		return fmt.Errorf("invalid ai.provider %q: must be \"anthropic\", \"openai\" or \"gemini\"", cfg.AI.Provider)
	}
	if cfg.Transcription.Enabled && cfg.Transcription.Provider != "gemini" {
		return fmt.Errorf("invalid transcription.provider %q: only \"gemini\" can transcribe video", cfg.Transcription.Provider)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}

	if _, err := models.BaseLanguage(cfg.Pipeline.DefaultTargetLanguage); err != nil {
		return fmt.Errorf("invalid pipeline.default_target_language: %w", err)
	}
	if c := cfg.Pipeline.MinLanguageConfidence; c < 0 || c > 1 {
		return fmt.Errorf("invalid pipeline.min_language_confidence %v: must be between 0 and 1", c)
	}
	if cfg.Pipeline.TranslateBatchSize < 1 || cfg.Pipeline.TranslateConcurrency < 1 {
		return fmt.Errorf("invalid pipeline translate settings: batch size and concurrency must be >= 1")
	}

	if cfg.AI.APIKey == "" {
		slog.Warn("ai.api_key is empty: set it in the config file or via AI_API_KEY environment variable")
	}
	if cfg.YouTube.APIKey == "" {
		slog.Warn("youtube.api_key is empty: video references will be unavailable")
	}

	return nil
}
