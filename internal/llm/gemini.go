package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL   = "https://generativelanguage.googleapis.com"
	defaultGeminiModel     = "gemini-2.5-flash"
	defaultGeminiMaxTokens = 8192
	geminiTemperature      = 0.2
)

type gemini struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func newGemini(client *http.Client, baseURL, apiKey string) *gemini {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &gemini{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   defaultGeminiModel,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		MaxOutputTokens  int     `json:"maxOutputTokens"`
		ResponseMimeType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (g *gemini) Name() string { return ProviderGemini }

func (g *gemini) Complete(ctx context.Context, messages []Message, opts Options) (*Result, error) {
	var body geminiRequest
	for _, m := range messages {
		role := "model"
		if m.Role == RoleUser || m.Role == RoleSystem {
			role = "user"
		}
		body.Contents = append(body.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.PlainText()}},
		})
	}
	body.GenerationConfig.Temperature = geminiTemperature
	body.GenerationConfig.MaxOutputTokens = defaultGeminiMaxTokens
	if opts.MaxTokens > 0 {
		body.GenerationConfig.MaxOutputTokens = opts.MaxTokens
	}
	body.GenerationConfig.ResponseMimeType = "text/plain"
	if opts.WantsJSON() {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, url.QueryEscape(g.apiKey))
	payload, err := postJSON(ctx, g.client, ProviderGemini, endpoint, nil, body)
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, &GatewayError{Provider: ProviderGemini, Err: fmt.Errorf("decode response: %w", err)}
	}

	var text, finish string
	if len(resp.Candidates) > 0 {
		c := resp.Candidates[0]
		if len(c.Content.Parts) > 0 {
			text = c.Content.Parts[0].Text
		}
		finish = strings.ToLower(c.FinishReason)
	}
	if finish == "" {
		finish = "stop"
	}

	now := time.Now()
	return &Result{
		ID:           fmt.Sprintf("gemini-%d", now.UnixMilli()),
		Created:      now.Unix(),
		Model:        g.model,
		Text:         text,
		FinishReason: finish,
		Usage: Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
