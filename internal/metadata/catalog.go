package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pokerjest/animeFolderOrganizer/internal/config"
	"golang.org/x/sync/singleflight"
)

// ModelCatalog 列出 Provider 可用的模型
type ModelCatalog interface {
	ListModels(ctx context.Context) ([]string, error)
}

// GeminiCatalog 只保留支持 generateContent 的 gemini flash/pro/lite 模型
type GeminiCatalog struct {
	apiKey  string
	baseURL string
	client  *resty.Client
}

func NewGeminiCatalog(apiKey, baseURL string) *GeminiCatalog {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = GeminiBaseURL
	}
	return &GeminiCatalog{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: base,
		client:  resty.New().SetTimeout(30 * time.Second),
	}
}

type geminiModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
	NextPageToken string `json:"nextPageToken"`
}

func (c *GeminiCatalog) ListModels(ctx context.Context) ([]string, error) {
	if c.apiKey == "" {
		return []string{}, nil
	}

	seen := make(map[string]struct{})
	pageToken := ""
	for {
		req := c.client.R().
			SetContext(ctx).
			SetHeader("x-goog-api-key", c.apiKey)
		if pageToken != "" {
			req.SetQueryParam("pageToken", pageToken)
		}
		resp, err := req.Get(c.baseURL + "/models")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, newError(classify(resp.StatusCode()), "list models: HTTP %d", resp.StatusCode())
		}

		var page geminiModelList
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		for _, m := range page.Models {
			if !supportsGenerate(m.SupportedGenerationMethods) {
				continue
			}
			name := strings.TrimPrefix(m.Name, "models/")
			if isPrimaryGeminiModel(name) {
				seen[name] = struct{}{}
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return sortedKeys(seen), nil
}

func supportsGenerate(methods []string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, "generateContent") {
			return true
		}
	}
	return false
}

func isPrimaryGeminiModel(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasPrefix(lower, "gemini-") {
		return false
	}
	return strings.Contains(lower, "-flash") || strings.Contains(lower, "-pro") || strings.Contains(lower, "-lite")
}

// OpenAICatalog GET {base}/models
type OpenAICatalog struct {
	apiKey  string
	baseURL string
	client  *resty.Client
}

func NewOpenAICatalog(apiKey, baseURL string) *OpenAICatalog {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = OpenAIDefaultBaseURL
	}
	return &OpenAICatalog{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: base,
		client:  resty.New().SetTimeout(30 * time.Second),
	}
}

func (c *OpenAICatalog) ListModels(ctx context.Context) ([]string, error) {
	endpoint := c.baseURL
	if !strings.HasSuffix(strings.ToLower(endpoint), "/models") {
		endpoint += "/models"
	}

	req := c.client.R().SetContext(ctx)
	if c.apiKey != "" {
		req.SetAuthToken(c.apiKey)
	}
	resp, err := req.Get(endpoint)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, newError(classify(resp.StatusCode()), "list models: HTTP %d", resp.StatusCode())
	}

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &list); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	seen := make(map[string]struct{}, len(list.Data))
	for _, m := range list.Data {
		if id := strings.TrimSpace(m.ID); id != "" {
			seen[id] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

// StaticCatalog 不需要远程查询的 Provider
type StaticCatalog []string

func (s StaticCatalog) ListModels(context.Context) ([]string, error) {
	return append([]string{}, s...), nil
}

// CachedCatalog 缓存成功结果直到 Invalidate，并发请求合并为一次
type CachedCatalog struct {
	inner ModelCatalog
	group singleflight.Group

	mu     sync.RWMutex
	cached []string
}

func NewCachedCatalog(inner ModelCatalog) *CachedCatalog {
	return &CachedCatalog{inner: inner}
}

func (c *CachedCatalog) ListModels(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	cached := c.cached
	c.mu.RUnlock()
	if cached != nil {
		return append([]string{}, cached...), nil
	}

	v, err, _ := c.group.Do("models", func() (interface{}, error) {
		models, err := c.inner.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cached = models
		c.mu.Unlock()
		return models, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string{}, v.([]string)...), nil
}

func (c *CachedCatalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}

// NewCatalogFromConfig 与 NewFromConfig 对应的模型目录
func NewCatalogFromConfig(cfg config.ProviderConfig) ModelCatalog {
	switch strings.ToLower(cfg.Kind) {
	case "gemini":
		return NewCachedCatalog(NewGeminiCatalog(cfg.APIKey, cfg.BaseURL))
	case "openai":
		return NewCachedCatalog(NewOpenAICatalog(cfg.APIKey, cfg.BaseURL))
	case "mock":
		return StaticCatalog{"mock"}
	default:
		return StaticCatalog{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
