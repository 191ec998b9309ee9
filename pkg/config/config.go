package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/llm"
)

// DefaultConfigPath is read when no path is given and ASKDB_CONFIG is unset.
const DefaultConfigPath = "config.yaml"

// defaultLLMBaseURL mirrors the llm.base_url default.
const defaultLLMBaseURL = "https://api.openai.com/v1"

// Config holds all configuration for askdb.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Log        LogConfig        `yaml:"log"`
	LLM        LLMConfig        `yaml:"llm"`
	Query      QueryConfig      `yaml:"query"`
	History    HistoryConfig    `yaml:"history"`
	Schema     SchemaConfig     `yaml:"schema"`
	Datasource DatasourceConfig `yaml:"datasource"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// LLMConfig selects and tunes the language model.
type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL     string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model       string  `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`
	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	JSONMode    bool    `yaml:"json_mode" env:"LLM_JSON_MODE" env-default:"true"`

	TimeoutSeconds             int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"30"`
	CircuitBreakerThreshold    int `yaml:"circuit_breaker_threshold" env:"LLM_CIRCUIT_BREAKER_THRESHOLD" env-default:"5"`
	CircuitBreakerResetSeconds int `yaml:"circuit_breaker_reset_seconds" env:"LLM_CIRCUIT_BREAKER_RESET_SECONDS" env-default:"30"`
}

// QueryConfig bounds statement execution.
type QueryConfig struct {
	MaxRows         int  `yaml:"max_rows" env:"QUERY_MAX_ROWS" env-default:"1000"`
	TimeoutSeconds  int  `yaml:"timeout_seconds" env:"QUERY_TIMEOUT_SECONDS" env-default:"10"`
	TruncateResults bool `yaml:"truncate_results" env:"QUERY_TRUNCATE_RESULTS" env-default:"false"`
	// MaxConcurrent overrides the adapter's own limit when > 0.
	MaxConcurrent int `yaml:"max_concurrent" env:"QUERY_MAX_CONCURRENT" env-default:"0"`
}

// HistoryConfig bounds conversations.
type HistoryConfig struct {
	Length            int `yaml:"length" env:"HISTORY_LENGTH" env-default:"10"`
	SessionTTLMinutes int `yaml:"session_ttl_minutes" env:"HISTORY_SESSION_TTL_MINUTES" env-default:"60"`
}

// SchemaConfig tunes introspection.
type SchemaConfig struct {
	SampleRows int `yaml:"sample_rows" env:"SCHEMA_SAMPLE_ROWS" env-default:"3"`
	Workers    int `yaml:"workers" env:"SCHEMA_WORKERS" env-default:"4"`
}

// DatasourceConfig describes the store being queried.
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"sqlite"`
	Path     string `yaml:"path" env:"DATASOURCE_PATH" env-default:"sample_database.db"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT"`
	User     string `yaml:"user" env:"DATASOURCE_USER"`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE"`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE"`
	// Options are passed to the adapter as-is, e.g. "max_concurrent:2,encrypt:true".
	Options map[string]string `yaml:"options" env:"DATASOURCE_OPTIONS"`
}

// DatasourceTypes lists the accepted datasource.type values.
var DatasourceTypes = []string{"sqlite", "postgres", "sqlserver", "duckdb"}

// Load reads configuration from a YAML file with environment variable
// overrides. path falls back to ASKDB_CONFIG, then config.yaml. A missing
// default file is not an error; configuration then comes from the
// environment alone. An explicitly named file must exist.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	explicit := path != ""
	if !explicit {
		path = os.Getenv("ASKDB_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case explicit || !errors.Is(statErr, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	default:
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	positive := func(name string, v int) {
		if v <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive (got %d)", name, v))
		}
	}

	positive("query.max_rows", c.Query.MaxRows)
	positive("query.timeout_seconds", c.Query.TimeoutSeconds)
	positive("history.length", c.History.Length)
	positive("history.session_ttl_minutes", c.History.SessionTTLMinutes)
	positive("llm.timeout_seconds", c.LLM.TimeoutSeconds)
	positive("llm.circuit_breaker_threshold", c.LLM.CircuitBreakerThreshold)
	positive("llm.circuit_breaker_reset_seconds", c.LLM.CircuitBreakerResetSeconds)
	positive("schema.workers", c.Schema.Workers)

	if c.Query.MaxConcurrent < 0 {
		problems = append(problems, "query.max_concurrent must not be negative")
	}
	if c.Schema.SampleRows < 0 {
		problems = append(problems, "schema.sample_rows must not be negative")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("llm.temperature must be between 0 and 2 (got %g)", c.LLM.Temperature))
	}
	if !slices.Contains(llm.Providers, c.LLM.Provider) {
		problems = append(problems, fmt.Sprintf("llm.provider %q is not one of %s", c.LLM.Provider, strings.Join(llm.Providers, ", ")))
	}
	if c.LLM.Model == "" {
		problems = append(problems, "llm.model is required")
	}
	if !slices.Contains(DatasourceTypes, c.Datasource.Type) {
		problems = append(problems, fmt.Sprintf("datasource.type %q is not one of %s", c.Datasource.Type, strings.Join(DatasourceTypes, ", ")))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}

// Timeout returns the per-call model timeout.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Settings converts the configuration into client settings. A localhost base
// URL is rewritten when running inside Docker. The anthropic provider ignores
// the OpenAI default base URL and uses its SDK default instead.
func (c *LLMConfig) Settings() llm.Settings {
	endpoint := c.BaseURL
	if c.Provider == llm.ProviderAnthropic && endpoint == defaultLLMBaseURL {
		endpoint = ""
	}
	return llm.Settings{
		Provider: c.Provider,
		Client: llm.Config{
			Endpoint:  ResolveURLForDocker(endpoint),
			Model:     c.Model,
			APIKey:    c.APIKey,
			MaxTokens: c.MaxTokens,
			JSONMode:  c.JSONMode,
		},
		Timeout: c.Timeout(),
		CircuitBreaker: llm.CircuitBreakerConfig{
			Threshold:  c.CircuitBreakerThreshold,
			ResetAfter: time.Duration(c.CircuitBreakerResetSeconds) * time.Second,
		},
	}
}

// Timeout returns the per-statement execution timeout.
func (c *QueryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SessionTTL returns how long idle sessions are kept.
func (c *HistoryConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// AdapterConfig returns the generic config map the datasource adapters
// accept. Option values that look like integers or booleans are converted.
func (c *DatasourceConfig) AdapterConfig() map[string]any {
	m := make(map[string]any)
	for k, v := range c.Options {
		m[k] = optionValue(v)
	}

	set := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	set("path", c.Path)
	set("host", ResolveHostForDocker(c.Host))
	set("user", c.User)
	set("password", c.Password)
	set("database", c.Database)
	set("ssl_mode", c.SSLMode)
	if c.Port > 0 {
		m["port"] = c.Port
	}
	return m
}

func optionValue(v string) any {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}
