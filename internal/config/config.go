// Package config handles configuration loading for marketbrief.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MARKETBRIEF_PIPELINE_DAYS.
const EnvPrefix = "MARKETBRIEF"

// Config represents the complete application configuration.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  yaml:"pipeline" json:"pipeline"`
	Market    MarketConfig    `mapstructure:"market"    yaml:"market" json:"market"`
	News      NewsConfig      `mapstructure:"news"      yaml:"news" json:"news"`
	Sentiment SentimentConfig `mapstructure:"sentiment" yaml:"sentiment" json:"sentiment"`
	LLM       LLMConfig       `mapstructure:"llm"       yaml:"llm" json:"llm"`
	API       APIConfig       `mapstructure:"api"       yaml:"api" json:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging" json:"logging"`
}

// PipelineConfig controls a single analysis run.
type PipelineConfig struct {
	Days              int           `mapstructure:"days"               yaml:"days" json:"days"               validate:"gte=1,lte=365"`
	Interval          string        `mapstructure:"interval"           yaml:"interval" json:"interval"           validate:"oneof=1m 2m 5m 15m 30m 60m 90m 1h 1d 5d 1wk 1mo 3mo"`
	MaxArticles       int           `mapstructure:"max_articles"       yaml:"max_articles" json:"max_articles"       validate:"gte=1,lte=50"`
	ConcurrentFetches int           `mapstructure:"concurrent_fetches" yaml:"concurrent_fetches" json:"concurrent_fetches" validate:"gte=1,lte=64"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"    yaml:"request_timeout" json:"request_timeout"    validate:"gt=0"`
	HistoryLimit      int           `mapstructure:"history_limit"      yaml:"history_limit" json:"history_limit"      validate:"gte=0"` // 0 = unbounded
	CleanHeadlines    bool          `mapstructure:"clean_headlines"    yaml:"clean_headlines" json:"clean_headlines"`
}

// MarketConfig configures the Yahoo chart price feed.
type MarketConfig struct {
	BaseURL   string        `mapstructure:"base_url"   yaml:"base_url" json:"base_url"   validate:"required,url"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit" validate:"gte=0"` // requests per second, 0 = unlimited
	CacheTTL  time.Duration `mapstructure:"cache_ttl"  yaml:"cache_ttl" json:"cache_ttl"  validate:"gte=0"`
}

// NewsConfig configures the headline source.
type NewsConfig struct {
	Source    string  `mapstructure:"source"     yaml:"source" json:"source"     validate:"oneof=html rss"`
	BaseURL   string  `mapstructure:"base_url"   yaml:"base_url" json:"base_url"   validate:"required,url"`
	RSSURL    string  `mapstructure:"rss_url"    yaml:"rss_url" json:"rss_url"    validate:"required,url"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`
}

// SentimentConfig configures the headline classifier.
type SentimentConfig struct {
	CorpusFile string `mapstructure:"corpus_file" yaml:"corpus_file" json:"corpus_file"` // empty = bundled corpus
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary      string        `mapstructure:"primary"       yaml:"primary" json:"primary"       validate:"oneof=ollama openai anthropic gemini"`
	OllamaURL    string        `mapstructure:"ollama_url"    yaml:"ollama_url" json:"ollama_url"`
	OpenAIKey    string        `mapstructure:"openai_key"    yaml:"openai_key" json:"-"`
	AnthropicKey string        `mapstructure:"anthropic_key" yaml:"anthropic_key" json:"-"`
	GeminiKey    string        `mapstructure:"gemini_key"    yaml:"gemini_key" json:"-"`
	Model        string        `mapstructure:"model"         yaml:"model" json:"model"         validate:"required"`
	Temperature  float64       `mapstructure:"temperature"   yaml:"temperature" json:"temperature"   validate:"gte=0,lte=2"`
	MaxTokens    int           `mapstructure:"max_tokens"    yaml:"max_tokens" json:"max_tokens"    validate:"gte=1"`
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout" json:"timeout"       validate:"gt=0"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host" json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port" json:"port"         validate:"gte=1,lte=65535"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level" json:"level"  validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" json:"format" validate:"oneof=console json"`
}

// Addr returns host:port for the API server.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketbrief/config.yaml (home directory)
//  3. /etc/marketbrief/config.yaml (system)
//
// Environment variables override config file values.
// Format: MARKETBRIEF_<SECTION>_<KEY>, e.g., MARKETBRIEF_LLM_OPENAI_KEY
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketbrief"))
	v.AddConfigPath("/etc/marketbrief")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the configuration built from defaults and environment only.
func Default() (*Config, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override sensitive values from environment
	overrideFromEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.days", 7)
	v.SetDefault("pipeline.interval", "1d")
	v.SetDefault("pipeline.max_articles", 5)
	v.SetDefault("pipeline.concurrent_fetches", 4)
	v.SetDefault("pipeline.request_timeout", 10*time.Second)
	v.SetDefault("pipeline.history_limit", 0)
	v.SetDefault("pipeline.clean_headlines", false)

	// Market defaults
	v.SetDefault("market.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.rate_limit", 5.0)
	v.SetDefault("market.cache_ttl", 5*time.Minute)

	// News defaults
	v.SetDefault("news.source", "html")
	v.SetDefault("news.base_url", "https://es-us.finanzas.yahoo.com")
	v.SetDefault("news.rss_url", "https://feeds.finance.yahoo.com/rss/2.0/headline")
	v.SetDefault("news.rate_limit", 2.0)

	v.SetDefault("sentiment.corpus_file", "")

	// LLM defaults
	v.SetDefault("llm.primary", "ollama")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 120*time.Second)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvPrefix + "_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv(EnvPrefix + "_LLM_GEMINI_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if key := os.Getenv(EnvPrefix + "_LLM_ANTHROPIC_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
}

var validate = validator.New()

// Validate checks cfg against its struct tags and returns every violation
// joined into one error.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config: %w", err)
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, fmt.Errorf("config: %s", fieldMessage(fe)))
	}
	return errors.Join(errs...)
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
