package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/brief/internal/config"
	"github.com/hpungsan/brief/internal/logging"
)

// Provider names.
const (
	ProviderAuto   = "auto"
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
	ProviderForge  = "forge"
	ProviderDemo   = "demo"
)

// priority is the auto-selection order among configured providers.
var priority = []string{ProviderGemini, ProviderGroq, ProviderForge}

// ResponseFormat asks the provider for a particular output shape.
type ResponseFormat string

const (
	FormatText       ResponseFormat = "text"
	FormatJSONObject ResponseFormat = "json_object"
	FormatJSONSchema ResponseFormat = "json_schema"
)

// JSONSchema describes the structured output requested with FormatJSONSchema.
type JSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict,omitempty"`
}

// Options tune a single Invoke call.
type Options struct {
	ResponseFormat ResponseFormat
	JSONSchema     *JSONSchema
	MaxTokens      int

	// Provider pins the provider for this call. Empty or "auto" uses the gateway default.
	Provider string
}

// WantsJSON reports whether the caller asked for JSON output.
func (o Options) WantsJSON() bool {
	return o.ResponseFormat == FormatJSONObject || o.ResponseFormat == FormatJSONSchema
}

// Usage is token accounting as reported by the provider. Zero when unreported.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a completed model call.
type Result struct {
	ID           string `json:"id"`
	Created      int64  `json:"created"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Provider is one model backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, messages []Message, opts Options) (*Result, error)
}

// Config configures a Gateway.
type Config struct {
	GeminiAPIKey string
	GroqAPIKey   string
	ForgeAPIKey  string
	ForgeAPIURL  string

	// Provider is the default hint ("" or "auto" to select by priority).
	Provider string

	// Timeout bounds each Invoke call. 0 disables the per-call deadline.
	Timeout time.Duration

	// LogFullKeys prints credentials unredacted in the selection log line.
	LogFullKeys bool

	// Base URLs, overridable for tests.
	GeminiBaseURL string
	GroqBaseURL   string

	HTTPClient *http.Client
}

// ConfigFrom maps application config onto gateway config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		GeminiAPIKey: cfg.GeminiAPIKey,
		GroqAPIKey:   cfg.GroqAPIKey,
		ForgeAPIKey:  cfg.ForgeAPIKey,
		ForgeAPIURL:  cfg.ForgeAPIURL,
		Provider:     cfg.LLMProvider,
		Timeout:      cfg.LLMTimeout(),
		LogFullKeys:  cfg.LogFullKeys,
	}
}

// Gateway routes calls to the selected provider.
type Gateway struct {
	cfg       Config
	providers map[string]Provider
	keys      map[string]string
	logger    *slog.Logger
}

// New builds a gateway with every provider whose credential is present.
// The demo provider is always registered.
func New(cfg Config) *Gateway {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	g := &Gateway{
		cfg:       cfg,
		providers: map[string]Provider{ProviderDemo: demoProvider{}},
		keys: map[string]string{
			ProviderGemini: cfg.GeminiAPIKey,
			ProviderGroq:   cfg.GroqAPIKey,
			ProviderForge:  cfg.ForgeAPIKey,
		},
		logger: logging.New("llm"),
	}
	if cfg.GeminiAPIKey != "" {
		g.providers[ProviderGemini] = newGemini(client, cfg.GeminiBaseURL, cfg.GeminiAPIKey)
	}
	if cfg.GroqAPIKey != "" {
		g.providers[ProviderGroq] = newGroq(client, cfg.GroqBaseURL, cfg.GroqAPIKey)
	}
	if cfg.ForgeAPIKey != "" {
		g.providers[ProviderForge] = newForge(client, cfg.ForgeAPIURL, cfg.ForgeAPIKey)
	}
	return g
}

// Register installs or replaces a provider.
func (g *Gateway) Register(p Provider) {
	g.providers[p.Name()] = p
}

// Select resolves a hint to a provider name.
// An explicit hint naming an unconfigured provider is an error.
func (g *Gateway) Select(hint string) (string, error) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" || hint == ProviderAuto {
		hint = strings.ToLower(strings.TrimSpace(g.cfg.Provider))
	}
	if hint != "" && hint != ProviderAuto {
		if _, ok := g.providers[hint]; !ok {
			if _, known := g.keys[hint]; known {
				return "", &GatewayError{Provider: hint, Err: ErrMissingCredential}
			}
			return "", &GatewayError{Provider: hint, Err: ErrUnknownProvider}
		}
		return hint, nil
	}
	for _, name := range priority {
		if _, ok := g.providers[name]; ok {
			return name, nil
		}
	}
	return ProviderDemo, nil
}

// Invoke sends messages to the selected provider under the per-call timeout.
func (g *Gateway) Invoke(ctx context.Context, messages []Message, opts Options) (*Result, error) {
	name, err := g.Select(opts.Provider)
	if err != nil {
		return nil, err
	}
	g.logger.Info("invoke", "provider", name, "key", RedactKey(g.keys[name], g.cfg.LogFullKeys))

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	res, err := g.providers[name].Complete(ctx, messages, opts)
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			return nil, err
		}
		return nil, &GatewayError{Provider: name, Err: err}
	}
	res.Provider = name
	return res, nil
}

// RedactKey returns the first 6 characters of key followed by "...",
// or the whole key when full is set. Empty keys render as "none".
func RedactKey(key string, full bool) string {
	if key == "" {
		return "none"
	}
	if full {
		return key
	}
	if len(key) > 6 {
		key = key[:6]
	}
	return key + "..."
}

// ErrMissingCredential marks a provider requested without its API key.
var ErrMissingCredential = errors.New("missing credential")

// ErrUnknownProvider marks a provider hint that names no backend.
var ErrUnknownProvider = errors.New("unknown provider")

// GatewayError is returned for any failed model call.
type GatewayError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s invoke failed: status %d: %s", e.Provider, e.StatusCode, truncate(e.Body, 500))
	}
	return fmt.Sprintf("%s invoke failed: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// UpstreamProvider names the provider that failed.
func (e *GatewayError) UpstreamProvider() string {
	return e.Provider
}
