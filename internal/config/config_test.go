package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// writeTestConfig is a helper that writes a TOML config file to a temp directory
// and returns its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

// clearKeyEnv blanks the API key variables so the host environment does not
// leak into a test.
func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"AI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "YOUTUBE_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	clearKeyEnv(t)
	content := `
[server]
host = "0.0.0.0"
port = 9090
data_dir = "/var/lib/dokhae"

[ai]
provider = "openai"
api_key = "sk-test-key-123"
model = "gpt-4o"

[youtube]
api_key = "yt-key"
transcript_languages = ["ko", "ja"]

[transcription]
enabled = true
provider = "gemini"
api_key = "gm-key"

[cache]
ttl_minutes = 60
persist = false
sweep_schedule = "@every 1m"
run_retention_days = 7

[pipeline]
default_target_language = "ko"
timeout_seconds = 90
call_timeout_seconds = 20
max_attempts = 2
translate_batch_size = 10
translate_concurrency = 2
min_language_confidence = 0.8

[fetch]
timeout_seconds = 10
rate_limit_seconds = 3
max_words = 5000
`
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if got := cfg.Server.Addr(); got != "0.0.0.0:9090" {
		t.Errorf("Server.Addr() = %q, want %q", got, "0.0.0.0:9090")
	}
	if cfg.Server.DataDir != "/var/lib/dokhae" {
		t.Errorf("Server.DataDir = %q", cfg.Server.DataDir)
	}

	if cfg.AI.Provider != "openai" || cfg.AI.APIKey != "sk-test-key-123" || cfg.AI.Model != "gpt-4o" {
		t.Errorf("AI = %+v", cfg.AI)
	}

	if cfg.YouTube.APIKey != "yt-key" {
		t.Errorf("YouTube.APIKey = %q, want %q", cfg.YouTube.APIKey, "yt-key")
	}
	if want := []string{"ko", "ja"}; !reflect.DeepEqual(cfg.YouTube.TranscriptLanguages, want) {
		t.Errorf("YouTube.TranscriptLanguages = %v, want %v", cfg.YouTube.TranscriptLanguages, want)
	}

	if !cfg.Transcription.Enabled || cfg.Transcription.APIKey != "gm-key" {
		t.Errorf("Transcription = %+v", cfg.Transcription)
	}
	if cfg.Transcription.Model != "gemini-2.5-flash" {
		t.Errorf("Transcription.Model = %q, want default", cfg.Transcription.Model)
	}

	if cfg.Cache.TTL() != time.Hour {
		t.Errorf("Cache.TTL() = %v, want 1h", cfg.Cache.TTL())
	}
	if cfg.Cache.Persist {
		t.Error("Cache.Persist = true, want explicit false")
	}
	if cfg.Cache.SweepSchedule != "@every 1m" || cfg.Cache.RunRetentionDays != 7 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}

	want := PipelineConfig{
		DefaultTargetLanguage: "ko",
		TimeoutSeconds:        90,
		CallTimeoutSeconds:    20,
		MaxAttempts:           2,
		TranslateBatchSize:    10,
		TranslateConcurrency:  2,
		MinLanguageConfidence: 0.8,
	}
	if cfg.Pipeline != want {
		t.Errorf("Pipeline = %+v, want %+v", cfg.Pipeline, want)
	}

	if cfg.Fetch != (FetchConfig{TimeoutSeconds: 10, RateLimitSeconds: 3, MaxWords: 5000}) {
		t.Errorf("Fetch = %+v", cfg.Fetch)
	}
}

func TestLoad_MissingFile_CreatesDefault(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	// File should have been created.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not created at %q: %v", path, err)
	}

	if cfg.AI.Provider != "anthropic" {
		t.Errorf("AI.Provider = %q, want %q", cfg.AI.Provider, "anthropic")
	}
	if cfg.AI.Model != "claude-haiku-4-5" {
		t.Errorf("AI.Model = %q, want %q", cfg.AI.Model, "claude-haiku-4-5")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Transcription.Enabled {
		t.Error("Transcription.Enabled = true, want false")
	}
	if !cfg.Cache.Persist {
		t.Error("Cache.Persist = false, want true")
	}
	if cfg.Cache.TTL() != 24*time.Hour {
		t.Errorf("Cache.TTL() = %v, want 24h", cfg.Cache.TTL())
	}
	if want := []string{"en", "ko"}; !reflect.DeepEqual(cfg.YouTube.TranscriptLanguages, want) {
		t.Errorf("YouTube.TranscriptLanguages = %v, want %v", cfg.YouTube.TranscriptLanguages, want)
	}
	if cfg.Pipeline.MinLanguageConfidence != 0.5 {
		t.Errorf("Pipeline.MinLanguageConfidence = %v, want 0.5", cfg.Pipeline.MinLanguageConfidence)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	clearKeyEnv(t)
	// Empty sections fall through to defaults.
	content := `
[ai]
api_key = "sk-test"

[server]

[cache]

[pipeline]

[fetch]
`
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v", path, err)
	}

	if cfg.AI.Provider != "anthropic" {
		t.Errorf("AI.Provider = %q, want default %q", cfg.AI.Provider, "anthropic")
	}
	if got := cfg.Server.Addr(); got != "localhost:8080" {
		t.Errorf("Server.Addr() = %q, want default %q", got, "localhost:8080")
	}
	if cfg.Server.DataDir != "./data" {
		t.Errorf("Server.DataDir = %q, want default", cfg.Server.DataDir)
	}
	if cfg.Cache.TTLMinutes != 1440 || !cfg.Cache.Persist || cfg.Cache.SweepSchedule != "@every 10m" || cfg.Cache.RunRetentionDays != 30 {
		t.Errorf("Cache = %+v, want defaults", cfg.Cache)
	}
	want := PipelineConfig{
		DefaultTargetLanguage: "en",
		TimeoutSeconds:        180,
		CallTimeoutSeconds:    45,
		MaxAttempts:           3,
		TranslateBatchSize:    40,
		TranslateConcurrency:  4,
		MinLanguageConfidence: 0.5,
	}
	if cfg.Pipeline != want {
		t.Errorf("Pipeline = %+v, want %+v", cfg.Pipeline, want)
	}
	if cfg.Fetch != (FetchConfig{TimeoutSeconds: 30, RateLimitSeconds: 1, MaxWords: 20000}) {
		t.Errorf("Fetch = %+v, want defaults", cfg.Fetch)
	}
}

func TestLoad_ProviderModelDefaults(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"anthropic", "claude-haiku-4-5"},
		{"openai", "gpt-4o-mini"},
		{"gemini", "gemini-2.5-flash"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			clearKeyEnv(t)
			path := writeTestConfig(t, "[ai]\nprovider = \""+tt.provider+"\"\n")
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if cfg.AI.Model != tt.want {
				t.Errorf("AI.Model = %q, want %q", cfg.AI.Model, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		env      map[string]string
		want     string
	}{
		{"generic", "anthropic", map[string]string{"AI_API_KEY": "from-env-generic"}, "from-env-generic"},
		{"anthropic", "anthropic", map[string]string{"ANTHROPIC_API_KEY": "from-env-anthropic"}, "from-env-anthropic"},
		{"openai", "openai", map[string]string{"OPENAI_API_KEY": "from-env-openai"}, "from-env-openai"},
		{"gemini", "gemini", map[string]string{"GEMINI_API_KEY": "from-env-gemini"}, "from-env-gemini"},
		{"other provider ignored", "openai", map[string]string{"ANTHROPIC_API_KEY": "wrong"}, "from-config"},
		{"generic takes precedence", "anthropic", map[string]string{"ANTHROPIC_API_KEY": "from-env-anthropic", "AI_API_KEY": "from-env-generic"}, "from-env-generic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeyEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeTestConfig(t, "[ai]\nprovider = \""+tt.provider+"\"\napi_key = \"from-config\"\n")

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load(%q) unexpected error: %v", path, err)
			}
			if cfg.AI.APIKey != tt.want {
				t.Errorf("AI.APIKey = %q, want %q", cfg.AI.APIKey, tt.want)
			}
		})
	}
}

func TestLoad_YouTubeAndTranscriptionKeys(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("YOUTUBE_API_KEY", "yt-env")
	t.Setenv("GEMINI_API_KEY", "gm-env")
	path := writeTestConfig(t, `
[ai]
provider = "anthropic"
api_key = "sk"

[transcription]
enabled = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.YouTube.APIKey != "yt-env" {
		t.Errorf("YouTube.APIKey = %q, want %q", cfg.YouTube.APIKey, "yt-env")
	}
	if cfg.Transcription.APIKey != "gm-env" {
		t.Errorf("Transcription.APIKey = %q, want %q", cfg.Transcription.APIKey, "gm-env")
	}
}

func TestLoad_TranscriptionSharesGeminiKey(t *testing.T) {
	clearKeyEnv(t)
	path := writeTestConfig(t, `
[ai]
provider = "gemini"
api_key = "shared"

[transcription]
enabled = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Transcription.APIKey != "shared" {
		t.Errorf("Transcription.APIKey = %q, want %q", cfg.Transcription.APIKey, "shared")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", "[ai]\nprovider = \"mistral\""},
		{"typo provider", "[ai]\nprovider = \"anth ropic\""},
		{"zero port", "[server]\nport = 0"},
		{"negative port", "[server]\nport = -1"},
		{"port too high", "[server]\nport = 70000"},
		{"zero ttl", "[cache]\nttl_minutes = 0"},
		{"zero timeout", "[pipeline]\ntimeout_seconds = 0"},
		{"zero attempts", "[pipeline]\nmax_attempts = 0"},
		{"negative batch", "[pipeline]\ntranslate_batch_size = -5"},
		{"bad target", "[pipeline]\ndefault_target_language = \"not a language\""},
		{"undetermined target", "[pipeline]\ndefault_target_language = \"und\""},
		{"confidence above one", "[pipeline]\nmin_language_confidence = 1.5"},
		{"negative rate limit", "[fetch]\nrate_limit_seconds = -1"},
		{"transcription without gemini", "[transcription]\nenabled = true\nprovider = \"openai\""},
		{"malformed toml", "[server\nport = 80"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeyEnv(t)
			path := writeTestConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Fatalf("Load(%q) expected error, got nil", path)
			}
		})
	}
}

func TestLoad_EmptyAPIKey_NoError(t *testing.T) {
	clearKeyEnv(t)
	content := `
[ai]
provider = "anthropic"
api_key = ""
`
	path := writeTestConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) unexpected error: %v (empty api_key should warn, not fail)", path, err)
	}

	if cfg.AI.APIKey != "" {
		t.Errorf("AI.APIKey = %q, want empty string", cfg.AI.APIKey)
	}
}
