package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var keyEnvVars = []string{
	"MARKETBRIEF_LLM_OPENAI_KEY", "MARKETBRIEF_LLM_GEMINI_KEY", "MARKETBRIEF_LLM_ANTHROPIC_KEY",
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, e := range keyEnvVars {
		t.Setenv(e, "")
		os.Unsetenv(e)
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Pipeline defaults
	if cfg.Pipeline.Days != 7 {
		t.Errorf("Pipeline.Days: got %d, want 7", cfg.Pipeline.Days)
	}
	if cfg.Pipeline.Interval != "1d" {
		t.Errorf("Pipeline.Interval: got %q, want %q", cfg.Pipeline.Interval, "1d")
	}
	if cfg.Pipeline.MaxArticles != 5 {
		t.Errorf("Pipeline.MaxArticles: got %d, want 5", cfg.Pipeline.MaxArticles)
	}
	if cfg.Pipeline.ConcurrentFetches != 4 {
		t.Errorf("Pipeline.ConcurrentFetches: got %d, want 4", cfg.Pipeline.ConcurrentFetches)
	}
	if cfg.Pipeline.RequestTimeout != 10*time.Second {
		t.Errorf("Pipeline.RequestTimeout: got %v, want 10s", cfg.Pipeline.RequestTimeout)
	}
	if cfg.Pipeline.HistoryLimit != 0 {
		t.Errorf("Pipeline.HistoryLimit: got %d, want 0", cfg.Pipeline.HistoryLimit)
	}

	// Source defaults
	if cfg.Market.BaseURL != "https://query1.finance.yahoo.com" {
		t.Errorf("Market.BaseURL: got %q", cfg.Market.BaseURL)
	}
	if cfg.Market.CacheTTL != 5*time.Minute {
		t.Errorf("Market.CacheTTL: got %v, want 5m", cfg.Market.CacheTTL)
	}
	if cfg.News.Source != "html" {
		t.Errorf("News.Source: got %q, want %q", cfg.News.Source, "html")
	}
	if cfg.News.BaseURL != "https://es-us.finanzas.yahoo.com" {
		t.Errorf("News.BaseURL: got %q", cfg.News.BaseURL)
	}

	// LLM defaults
	if cfg.LLM.Primary != "ollama" {
		t.Errorf("LLM.Primary: got %q, want %q", cfg.LLM.Primary, "ollama")
	}
	if cfg.LLM.Model != "llama3" {
		t.Errorf("LLM.Model: got %q, want %q", cfg.LLM.Model, "llama3")
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("LLM.Temperature: got %f, want 0.2", cfg.LLM.Temperature)
	}
	if cfg.LLM.OllamaURL != "http://localhost:11434" {
		t.Errorf("LLM.OllamaURL: got %q", cfg.LLM.OllamaURL)
	}
	if cfg.LLM.Timeout != 120*time.Second {
		t.Errorf("LLM.Timeout: got %v, want 2m0s", cfg.LLM.Timeout)
	}

	// API defaults
	if cfg.API.Addr() != "0.0.0.0:8080" {
		t.Errorf("API.Addr: got %q, want %q", cfg.API.Addr(), "0.0.0.0:8080")
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "console")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("MARKETBRIEF_PIPELINE_DAYS", "30")
	t.Setenv("MARKETBRIEF_NEWS_SOURCE", "rss")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if cfg.Pipeline.Days != 30 {
		t.Errorf("Pipeline.Days: got %d, want 30", cfg.Pipeline.Days)
	}
	if cfg.News.Source != "rss" {
		t.Errorf("News.Source: got %q, want %q", cfg.News.Source, "rss")
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	clearKeyEnv(t)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
pipeline:
  days: 14
  interval: "1wk"
  max_articles: 3
  request_timeout: 5s
  history_limit: 20
news:
  source: "rss"
llm:
  primary: "anthropic"
  model: "claude-sonnet-4-20250514"
  anthropic_key: "sk-ant-from-file-123456"
  temperature: 0.3
api:
  port: 9090
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Pipeline.Days != 14 {
		t.Errorf("Pipeline.Days: got %d, want 14", cfg.Pipeline.Days)
	}
	if cfg.Pipeline.Interval != "1wk" {
		t.Errorf("Pipeline.Interval: got %q, want %q", cfg.Pipeline.Interval, "1wk")
	}
	if cfg.Pipeline.MaxArticles != 3 {
		t.Errorf("Pipeline.MaxArticles: got %d, want 3", cfg.Pipeline.MaxArticles)
	}
	if cfg.Pipeline.RequestTimeout != 5*time.Second {
		t.Errorf("Pipeline.RequestTimeout: got %v, want 5s", cfg.Pipeline.RequestTimeout)
	}
	if cfg.Pipeline.HistoryLimit != 20 {
		t.Errorf("Pipeline.HistoryLimit: got %d, want 20", cfg.Pipeline.HistoryLimit)
	}
	if cfg.News.Source != "rss" {
		t.Errorf("News.Source: got %q, want %q", cfg.News.Source, "rss")
	}
	if cfg.LLM.Primary != "anthropic" {
		t.Errorf("LLM.Primary: got %q, want %q", cfg.LLM.Primary, "anthropic")
	}
	if cfg.LLM.AnthropicKey != "sk-ant-from-file-123456" {
		t.Errorf("LLM.AnthropicKey: got %q", cfg.LLM.AnthropicKey)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "json")
	}
	// untouched sections keep defaults
	if cfg.Market.RateLimit != 5 {
		t.Errorf("Market.RateLimit: got %f, want 5", cfg.Market.RateLimit)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "bad.yaml")
	content := []byte(`
pipeline:
  days: 0
  interval: "7days"
news:
  source: "carrier-pigeon"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	_, err := LoadFromFile(cfgPath)
	if err == nil {
		t.Fatal("LoadFromFile() with invalid values should return error")
	}
	for _, want := range []string{"Pipeline.Days", "Pipeline.Interval", "News.Source"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

// ── Validate ──

func TestValidate(t *testing.T) {
	clearKeyEnv(t)
	base, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"max articles too high", func(c *Config) { c.Pipeline.MaxArticles = 51 }, "Pipeline.MaxArticles must be at most 50"},
		{"negative history limit", func(c *Config) { c.Pipeline.HistoryLimit = -1 }, "Pipeline.HistoryLimit must be at least 0"},
		{"zero timeout", func(c *Config) { c.Pipeline.RequestTimeout = 0 }, "Pipeline.RequestTimeout must be greater than 0"},
		{"unknown provider", func(c *Config) { c.LLM.Primary = "bard" }, "LLM.Primary must be one of"},
		{"bad market url", func(c *Config) { c.Market.BaseURL = "not a url" }, "Market.BaseURL must be a valid URL"},
		{"empty model", func(c *Config) { c.LLM.Model = "" }, "LLM.Model is required"},
		{"bad log format", func(c *Config) { c.Logging.Format = "text" }, "Logging.Format must be one of: console, json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			err := Validate(&cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate: got %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	cfg := &Config{}

	t.Setenv("MARKETBRIEF_LLM_OPENAI_KEY", "sk-test-openai-key-123456")
	t.Setenv("MARKETBRIEF_LLM_GEMINI_KEY", "gemini-key-789")
	t.Setenv("MARKETBRIEF_LLM_ANTHROPIC_KEY", "sk-ant-test")

	overrideFromEnv(cfg)

	if cfg.LLM.OpenAIKey != "sk-test-openai-key-123456" {
		t.Errorf("OpenAIKey: got %q", cfg.LLM.OpenAIKey)
	}
	if cfg.LLM.GeminiKey != "gemini-key-789" {
		t.Errorf("GeminiKey: got %q", cfg.LLM.GeminiKey)
	}
	if cfg.LLM.AnthropicKey != "sk-ant-test" {
		t.Errorf("AnthropicKey: got %q", cfg.LLM.AnthropicKey)
	}
}

func TestOverrideFromEnvNoEnvSet(t *testing.T) {
	clearKeyEnv(t)

	cfg := &Config{
		LLM: LLMConfig{OpenAIKey: "from-config"},
	}
	overrideFromEnv(cfg)

	// Should retain the original value when env is not set
	if cfg.LLM.OpenAIKey != "from-config" {
		t.Errorf("OpenAIKey should stay as 'from-config' when env is unset, got %q", cfg.LLM.OpenAIKey)
	}
}

// ── maskKey ──

func TestMaskKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"abcd", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
		{"sk-abcdef1234567890xyz", "sk-...xyz"},
	}
	for _, tc := range tests {
		got := maskKey(tc.input)
		if got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

// ── CheckAPIKeys / checkKey ──

func TestCheckAPIKeysAllEmpty(t *testing.T) {
	clearKeyEnv(t)

	statuses := CheckAPIKeys(&Config{})
	if len(statuses) != 3 {
		t.Fatalf("CheckAPIKeys: got %d statuses, want 3", len(statuses))
	}
	for _, s := range statuses {
		if s.IsSet {
			t.Errorf("Key %q should not be set", s.Name)
		}
		if s.Source != KeySourceNone {
			t.Errorf("Key %q source: got %q, want %q", s.Name, s.Source, KeySourceNone)
		}
	}
}

func TestCheckAPIKeysFromConfig(t *testing.T) {
	clearKeyEnv(t)

	cfg := &Config{LLM: LLMConfig{OpenAIKey: "sk-test-very-long-key-value"}}
	for _, s := range CheckAPIKeys(cfg) {
		if s.Name != "OpenAI API Key" {
			continue
		}
		if !s.IsSet {
			t.Error("OpenAI key should be set")
		}
		if s.Source != KeySourceConfig {
			t.Errorf("Source: got %q, want %q", s.Source, KeySourceConfig)
		}
		if s.Masked != "sk-...lue" {
			t.Errorf("Masked: got %q, want %q", s.Masked, "sk-...lue")
		}
		return
	}
	t.Error("OpenAI API Key status not found")
}

func TestCheckAPIKeysFromEnv(t *testing.T) {
	t.Setenv("MARKETBRIEF_LLM_GEMINI_KEY", "gemini-env-key-for-testing")

	cfg := &Config{LLM: LLMConfig{GeminiKey: "gemini-env-key-for-testing"}}
	for _, s := range CheckAPIKeys(cfg) {
		if s.Name == "Gemini API Key" && s.Source != KeySourceEnv {
			t.Errorf("Source: got %q, want %q", s.Source, KeySourceEnv)
		}
	}
}

// ── homeDir ──

func TestHomeDirReturnsNonEmpty(t *testing.T) {
	if homeDir() == "" {
		t.Error("homeDir() should not return empty string")
	}
}
