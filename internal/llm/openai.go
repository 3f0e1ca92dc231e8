package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultGroqBaseURL  = "https://api.groq.com"
	defaultGroqModel    = "llama-3.1-8b-instant"
	defaultForgeBaseURL = "https://forge.manus.im"
	defaultForgeModel   = "manus-1"
	defaultMaxTokens    = 4096
)

// chatCompletions speaks the OpenAI-compatible /chat/completions dialect
// used by both groq and forge.
type chatCompletions struct {
	name     string
	client   *http.Client
	endpoint string
	apiKey   string
	model    string

	// flattenParts JSON-encodes multi-part content into a string for
	// backends that only accept string content.
	flattenParts bool
}

func newGroq(client *http.Client, baseURL, apiKey string) *chatCompletions {
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	return &chatCompletions{
		name:         ProviderGroq,
		client:       client,
		endpoint:     strings.TrimRight(baseURL, "/") + "/openai/v1/chat/completions",
		apiKey:       apiKey,
		model:        defaultGroqModel,
		flattenParts: true,
	}
}

func newForge(client *http.Client, baseURL, apiKey string) *chatCompletions {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultForgeBaseURL
	}
	return &chatCompletions{
		name:     ProviderForge,
		client:   client,
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/chat/completions",
		apiKey:   apiKey,
		model:    defaultForgeModel,
	}
}

type chatResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []NormalizedMessage `json:"messages"`
	MaxTokens      int                 `json:"max_tokens"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

func (c *chatCompletions) Name() string { return c.name }

func (c *chatCompletions) Complete(ctx context.Context, messages []Message, opts Options) (*Result, error) {
	normalized, err := NormalizeAll(messages)
	if err != nil {
		return nil, &GatewayError{Provider: c.name, Err: err}
	}
	if c.flattenParts {
		for i, nm := range normalized {
			if parts, ok := nm.Content.([]Part); ok {
				b, err := json.Marshal(parts)
				if err != nil {
					return nil, &GatewayError{Provider: c.name, Err: fmt.Errorf("encode content: %w", err)}
				}
				normalized[i].Content = string(b)
			}
		}
	}

	body := chatRequest{
		Model:     c.model,
		Messages:  normalized,
		MaxTokens: defaultMaxTokens,
	}
	if opts.MaxTokens > 0 {
		body.MaxTokens = opts.MaxTokens
	}
	switch opts.ResponseFormat {
	case FormatJSONObject:
		body.ResponseFormat = &chatResponseFormat{Type: string(FormatJSONObject)}
	case FormatJSONSchema:
		body.ResponseFormat = &chatResponseFormat{Type: string(FormatJSONSchema), JSONSchema: opts.JSONSchema}
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	payload, err := postJSON(ctx, c.client, c.name, c.endpoint, headers, body)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, &GatewayError{Provider: c.name, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &GatewayError{Provider: c.name, Err: fmt.Errorf("no choices in response")}
	}

	choice := resp.Choices[0]
	text, err := contentText(choice.Message.Content)
	if err != nil {
		return nil, &GatewayError{Provider: c.name, Err: err}
	}

	res := &Result{
		ID:      resp.ID,
		Created: resp.Created,
		Model:   resp.Model,
		Text:    text,
	}
	if res.Model == "" {
		res.Model = c.model
	}
	if choice.FinishReason != nil {
		res.FinishReason = *choice.FinishReason
	}
	if resp.Usage != nil {
		res.Usage = *resp.Usage
	}
	return res, nil
}

// contentText reads a choice's content, which may be a string or a part list.
func contentText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var parts []Part
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("decode message content: %w", err)
	}
	pieces := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type == PartText {
			pieces = append(pieces, p.Text)
		}
	}
	return strings.Join(pieces, "\n"), nil
}
