package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tablefinder service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	LLM      LLMConfig      `yaml:"llm"`
	Session  SessionConfig  `yaml:"session"`
	Search   SearchConfig   `yaml:"search"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Cache    CacheConfig    `yaml:"cache"`
	FollowUp FollowUpConfig `yaml:"followup"`
	Locale   LocaleConfig   `yaml:"locale"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int             `yaml:"port"`
	ReadTimeoutSec  int             `yaml:"read_timeout_sec"`
	WriteTimeoutSec int             `yaml:"write_timeout_sec"`
	ShutdownSec     int             `yaml:"shutdown_timeout_sec"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds the per-client token bucket for the search endpoint.
type RateLimitConfig struct {
	Requests  int `yaml:"requests"`   // 0 = disabled
	PeriodSec int `yaml:"period_sec"` // window the requests are spread over
	Burst     int `yaml:"burst"`
}

// LLMConfig selects and tunes the language model backend.
type LLMConfig struct {
	Provider    string       `yaml:"provider"` // openai, gemini, none
	APIKey      string       `yaml:"api_key"`
	BaseURL     string       `yaml:"base_url"`
	Model       string       `yaml:"model"`
	Temperature float32      `yaml:"temperature"`
	MaxTokens   int          `yaml:"max_tokens"`
	TimeoutMS   int          `yaml:"timeout_ms"`
	Project     string       `yaml:"project"`  // gemini on Vertex AI
	Location    string       `yaml:"location"` // gemini on Vertex AI
	Budget      BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps LLM token consumption. Zero limits mean unlimited.
type BudgetConfig struct {
	DailyTokens   int64  `yaml:"daily_tokens"`
	MonthlyTokens int64  `yaml:"monthly_tokens"`
	Action        string `yaml:"action"` // warn, reject (default: warn)
}

// Timeout returns the per-call LLM deadline.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// SessionConfig holds conversation state settings.
type SessionConfig struct {
	TTLSec           int `yaml:"ttl_sec"`
	SweepIntervalSec int `yaml:"sweep_interval_sec"`
	HistoryTurns     int `yaml:"history_turns"`
	CommitRetries    int `yaml:"commit_retries"`
}

// TTL returns the idle session lifetime.
func (c SessionConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }

// SweepInterval returns the expiry sweep period.
func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// SearchConfig holds ranking settings.
type SearchConfig struct {
	TopK            int     `yaml:"top_k"`
	DefaultRadiusKm float64 `yaml:"default_radius_km"`
}

// DatasetConfig points at the restaurant data. An empty path uses the embedded sample.
type DatasetConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig holds the geocode cache backend settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // none, redis, valkey (default: none)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a cache backend is configured.
func (c CacheConfig) Enabled() bool { return c.Driver != "none" }

// FollowUpConfig extends the built-in follow-up question heuristics.
// Keys of the maps are BCP 47 tags such as zh-TW, zh-CN, en.
type FollowUpConfig struct {
	QuestionMarks         []string            `yaml:"question_marks"`
	QuestionIndicators    map[string][]string `yaml:"question_indicators"`
	MissingInfoIndicators map[string][]string `yaml:"missing_info_indicators"`
	Patterns              map[string][]string `yaml:"patterns"`
}

// LocaleConfig holds the fallback language for replies.
type LocaleConfig struct {
	Default string `yaml:"default"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RateLimit.PeriodSec <= 0 {
		c.HTTP.RateLimit.PeriodSec = 60
	}
	if c.HTTP.RateLimit.Burst <= 0 {
		c.HTTP.RateLimit.Burst = max(c.HTTP.RateLimit.Requests/4, 1)
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "none"
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.Model = "gpt-4o-mini"
		case "gemini":
			c.LLM.Model = "gemini-2.5-flash"
		}
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.2
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.TimeoutMS <= 0 {
		c.LLM.TimeoutMS = 8000
	}
	if c.LLM.Budget.Action == "" {
		c.LLM.Budget.Action = "warn"
	}

	if c.Session.TTLSec <= 0 {
		c.Session.TTLSec = 3600
	}
	if c.Session.SweepIntervalSec <= 0 {
		c.Session.SweepIntervalSec = 60
	}
	if c.Session.HistoryTurns <= 0 {
		c.Session.HistoryTurns = 20
	}
	if c.Session.CommitRetries <= 0 {
		c.Session.CommitRetries = 3
	}

	if c.Search.TopK <= 0 {
		c.Search.TopK = 10
	}
	if c.Search.DefaultRadiusKm <= 0 {
		c.Search.DefaultRadiusKm = 15
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "none"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 7 * 24 * 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.Locale.Default == "" {
		c.Locale.Default = "zh-TW"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.RateLimit.Requests < 0 {
		return fmt.Errorf("http.rate_limit.requests must not be negative, got %d", c.HTTP.RateLimit.Requests)
	}

	switch c.LLM.Provider {
	case "none":
	case "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for provider %q", c.LLM.Provider)
		}
	case "gemini":
		if c.LLM.APIKey == "" && c.LLM.Project == "" {
			return fmt.Errorf("llm.api_key or llm.project is required for provider \"gemini\"")
		}
	default:
		return fmt.Errorf("llm.provider must be \"openai\", \"gemini\" or \"none\", got %q", c.LLM.Provider)
	}
	if c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}

	if c.LLM.Budget.DailyTokens < 0 || c.LLM.Budget.MonthlyTokens < 0 {
		return fmt.Errorf("llm.budget limits must not be negative")
	}
	if c.LLM.Budget.Action != "warn" && c.LLM.Budget.Action != "reject" {
		return fmt.Errorf("llm.budget.action must be \"warn\" or \"reject\", got %q", c.LLM.Budget.Action)
	}

	if c.Session.CommitRetries > 3 {
		return fmt.Errorf("session.commit_retries must be between 1 and 3, got %d", c.Session.CommitRetries)
	}
	if c.Session.SweepIntervalSec > c.Session.TTLSec {
		return fmt.Errorf("session.sweep_interval_sec (%d) must not exceed session.ttl_sec (%d)",
			c.Session.SweepIntervalSec, c.Session.TTLSec)
	}

	switch c.Cache.Driver {
	case "none":
	case "redis", "valkey":
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for driver %q", c.Cache.Driver)
		}
	default:
		return fmt.Errorf("cache.driver must be \"redis\", \"valkey\" or \"none\", got %q", c.Cache.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
