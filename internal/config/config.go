package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// InputMaxChars bounds long stage inputs sent to the model (synthesis, verdict).
	InputMaxChars int `json:"input_max_chars"`

	// SearchPromptMaxChars bounds the case context in the search-formulation prompt.
	SearchPromptMaxChars int `json:"search_prompt_max_chars"`

	// MaxSearchQueries caps how many search queries the researcher keeps from the model.
	MaxSearchQueries int `json:"max_search_queries"`

	// MaxSearches caps how many of those queries are actually executed.
	MaxSearches int `json:"max_searches"`

	// SearchMaxResults is the max_results value sent per search request.
	SearchMaxResults int `json:"search_max_results"`

	// SearchRatePerSecond limits outbound search requests. 0 means default.
	SearchRatePerSecond float64 `json:"search_rate_per_second,omitempty"`

	// LLMTimeoutSeconds bounds a single gateway call.
	LLMTimeoutSeconds int `json:"llm_timeout_seconds"`

	// RunTimeoutSeconds bounds a whole pipeline run (all three stages).
	RunTimeoutSeconds int `json:"run_timeout_seconds"`

	// LLMProvider pins a provider ("gemini", "groq", "forge", "demo").
	// Empty or "auto" selects the first configured provider.
	LLMProvider string `json:"llm_provider,omitempty"`

	// Provider credentials. Environment variables take precedence over file values.
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	GroqAPIKey   string `json:"groq_api_key,omitempty"`
	ForgeAPIKey  string `json:"forge_api_key,omitempty"`
	ForgeAPIURL  string `json:"forge_api_url,omitempty"`
	TavilyAPIKey string `json:"tavily_api_key,omitempty"`

	// LogFullKeys disables key redaction in provider-selection log lines.
	LogFullKeys bool `json:"log_full_keys,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"log_format,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited). Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// WebBind and WebPort are the defaults for `brief serve`.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		InputMaxChars:        20000,
		SearchPromptMaxChars: 2000,
		MaxSearchQueries:     3,
		MaxSearches:          2,
		SearchMaxResults:     3,
		SearchRatePerSecond:  2,
		LLMTimeoutSeconds:    120,
		RunTimeoutSeconds:    600,
		LogLevel:             "info",
		LogFormat:            "text",
		WebBind:              "127.0.0.1",
		WebPort:              8420,
	}
}

// LLMTimeout returns the per-call gateway timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// RunTimeout returns the whole-run timeout.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

// staleClaimGrace covers the status and result writes that follow a run.
const staleClaimGrace = time.Minute

// StaleClaimAge returns how old a processing claim must be before startup
// recovery may treat its run as dead. Runs are bounded by RunTimeout, so an
// older claim cannot belong to a live run. Without a run timeout the default
// one is assumed.
func (c *Config) StaleClaimAge() time.Duration {
	timeout := c.RunTimeout()
	if timeout <= 0 {
		timeout = DefaultConfig().RunTimeout()
	}
	return timeout + staleClaimGrace
}

// Load loads configuration from baseDir/config.json and applies environment
// overrides. Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.brief.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}

// envBindings maps environment variables to the credential fields they set.
var envBindings = []struct {
	name  string
	field func(*Config) *string
}{
	{"GEMINI_API_KEY", func(c *Config) *string { return &c.GeminiAPIKey }},
	{"GROQ_API_KEY", func(c *Config) *string { return &c.GroqAPIKey }},
	{"FORGE_API_KEY", func(c *Config) *string { return &c.ForgeAPIKey }},
	{"FORGE_API_URL", func(c *Config) *string { return &c.ForgeAPIURL }},
	{"TAVILY_API_KEY", func(c *Config) *string { return &c.TavilyAPIKey }},
	{"BRIEF_LLM_PROVIDER", func(c *Config) *string { return &c.LLMProvider }},
}

// ApplyEnv overrides credential fields from the environment.
// Empty variables leave the file value untouched.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	for _, b := range envBindings {
		if v := strings.TrimSpace(getenv(b.name)); v != "" {
			*b.field(cfg) = v
		}
	}
	if strings.EqualFold(strings.TrimSpace(getenv("LOG_FULL_KEYS")), "true") {
		cfg.LogFullKeys = true
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.InputMaxChars = pickInt(overlay.InputMaxChars, base.InputMaxChars)
	result.SearchPromptMaxChars = pickInt(overlay.SearchPromptMaxChars, base.SearchPromptMaxChars)
	result.MaxSearchQueries = pickInt(overlay.MaxSearchQueries, base.MaxSearchQueries)
	result.MaxSearches = pickInt(overlay.MaxSearches, base.MaxSearches)
	result.SearchMaxResults = pickInt(overlay.SearchMaxResults, base.SearchMaxResults)
	result.LLMTimeoutSeconds = pickInt(overlay.LLMTimeoutSeconds, base.LLMTimeoutSeconds)
	result.RunTimeoutSeconds = pickInt(overlay.RunTimeoutSeconds, base.RunTimeoutSeconds)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.WebPort = pickInt(overlay.WebPort, base.WebPort)

	result.SearchRatePerSecond = overlay.SearchRatePerSecond
	if result.SearchRatePerSecond == 0 {
		result.SearchRatePerSecond = base.SearchRatePerSecond
	}

	result.LLMProvider = pickString(overlay.LLMProvider, base.LLMProvider)
	result.GeminiAPIKey = pickString(overlay.GeminiAPIKey, base.GeminiAPIKey)
	result.GroqAPIKey = pickString(overlay.GroqAPIKey, base.GroqAPIKey)
	result.ForgeAPIKey = pickString(overlay.ForgeAPIKey, base.ForgeAPIKey)
	result.ForgeAPIURL = pickString(overlay.ForgeAPIURL, base.ForgeAPIURL)
	result.TavilyAPIKey = pickString(overlay.TavilyAPIKey, base.TavilyAPIKey)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pickString(overlay.LogFormat, base.LogFormat)
	result.WebBind = pickString(overlay.WebBind, base.WebBind)

	// Booleans: overlay wins if true, else base
	result.LogFullKeys = base.LogFullKeys || overlay.LogFullKeys

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
