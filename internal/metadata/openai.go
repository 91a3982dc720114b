package metadata

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	OpenAIDefaultBaseURL = "https://api.chatanywhere.org/v1"
	OpenAIDefaultModel   = "deepseek-chat"
)

// OpenAIProvider 兼容 OpenAI /chat/completions 的转发服务 (DeepSeek、OpenRouter、Groq ...)
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *resty.Client
	gate    *Gate
	retry   RetryPolicy
}

func NewOpenAIProvider(opts Options) *OpenAIProvider {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = OpenAIDefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = OpenAIDefaultModel
	}
	return &OpenAIProvider{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: base,
		client:  newRestyClient(opts),
		gate:    NewGate(opts.Cooldown),
		retry:   opts.Retry,
	}
}

func (p *OpenAIProvider) Name() string { return "OpenAI Compatible" }

func (p *OpenAIProvider) Close() { p.gate.Close() }

func (p *OpenAIProvider) Analyze(ctx context.Context, name string) (*Metadata, error) {
	return analyzeOne(ctx, p, name)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIProvider) AnalyzeBatch(ctx context.Context, names []string) ([]*Metadata, error) {
	if p.apiKey == "" {
		return nil, newError(KindNoKey, "API key is not configured")
	}
	if len(names) == 0 {
		return []*Metadata{}, nil
	}

	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildBatchPrompt(names)},
		},
		Temperature: 0.2,
	}

	body, err := p.retry.Run(ctx, p.gate, func(ctx context.Context) (*resty.Response, error) {
		return p.client.R().
			SetContext(ctx).
			SetAuthToken(p.apiKey).
			SetBody(req).
			Post(p.baseURL + "/chat/completions")
	})
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Choices) == 0 {
		return emptyResults(len(names)), nil
	}
	return parseBatchReply(resp.Choices[0].Message.Content, len(names)), nil
}
