package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	GeminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	GeminiDefaultModel = "gemini-2.5-flash-lite"
)

// Options LLM Provider 的公共参数
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Proxy   string
	Timeout time.Duration
	// Cooldown 两次请求之间的最小间隔
	Cooldown time.Duration
	Retry    RetryPolicy
}

func newRestyClient(opts Options) *resty.Client {
	c := resty.New()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c.SetTimeout(timeout)
	if opts.Proxy != "" {
		c.SetProxy(opts.Proxy)
	}
	c.SetHeader("Content-Type", "application/json")
	return c
}

// GeminiProvider 调用 Gemini generateContent
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *resty.Client
	gate    *Gate
	retry   RetryPolicy
}

func NewGeminiProvider(opts Options) *GeminiProvider {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = GeminiBaseURL
	}
	return &GeminiProvider{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   normalizeGeminiModel(opts.Model),
		baseURL: base,
		client:  newRestyClient(opts),
		gate:    NewGate(opts.Cooldown),
		retry:   opts.Retry,
	}
}

func normalizeGeminiModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return GeminiDefaultModel
	}
	if len(model) > len("models/") && strings.EqualFold(model[:len("models/")], "models/") {
		return model[len("models/"):]
	}
	return model
}

func (p *GeminiProvider) Name() string { return "Google Gemini" }

func (p *GeminiProvider) Close() { p.gate.Close() }

func (p *GeminiProvider) Analyze(ctx context.Context, name string) (*Metadata, error) {
	return analyzeOne(ctx, p, name)
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) AnalyzeBatch(ctx context.Context, names []string) ([]*Metadata, error) {
	if p.apiKey == "" {
		return nil, newError(KindNoKey, "API key is not configured")
	}
	if len(names) == 0 {
		return []*Metadata{}, nil
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": buildBatchPrompt(names)}}},
		},
		"generationConfig": map[string]string{
			"responseMimeType": "application/json",
		},
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)

	body, err := p.retry.Run(ctx, p.gate, func(ctx context.Context) (*resty.Response, error) {
		return p.client.R().
			SetContext(ctx).
			SetHeader("x-goog-api-key", p.apiKey).
			SetBody(payload).
			Post(url)
	})
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return emptyResults(len(names)), nil
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return emptyResults(len(names)), nil
	}
	return parseBatchReply(resp.Candidates[0].Content.Parts[0].Text, len(names)), nil
}
