package metadata

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pokerjest/animeFolderOrganizer/internal/config"
)

// Deps Provider 构造时可能用到的外部依赖
type Deps struct {
	Lookup TitleLookup
	Clock  clockwork.Clock
}

type Factory func(cfg config.ProviderConfig, deps Deps) (Provider, error)

// Registry 按 provider.kind 查找构造函数
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("gemini", func(cfg config.ProviderConfig, deps Deps) (Provider, error) {
		return NewGeminiProvider(optionsFromConfig(cfg, deps)), nil
	})
	r.Register("openai", func(cfg config.ProviderConfig, deps Deps) (Provider, error) {
		return NewOpenAIProvider(optionsFromConfig(cfg, deps)), nil
	})
	r.Register("official", func(cfg config.ProviderConfig, deps Deps) (Provider, error) {
		if deps.Lookup == nil {
			return nil, fmt.Errorf("official provider requires a title lookup service")
		}
		return NewOfficialProvider(deps.Lookup), nil
	})
	r.Register("mock", func(config.ProviderConfig, Deps) (Provider, error) {
		return MockProvider{}, nil
	})
	return r
}

func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(kind)] = f
}

func (r *Registry) New(cfg config.ProviderConfig, deps Deps) (Provider, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
	return f(cfg, deps)
}

// Kinds 已注册的类型，按字母排序
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

var DefaultRegistry = NewRegistry()

// NewFromConfig 根据 provider 配置创建 Provider
func NewFromConfig(cfg config.ProviderConfig, deps Deps) (Provider, error) {
	return DefaultRegistry.New(cfg, deps)
}

func optionsFromConfig(cfg config.ProviderConfig, deps Deps) Options {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	if cfg.BackoffBase > 0 {
		policy.BackoffBase = cfg.BackoffBase
	}
	if deps.Clock != nil {
		policy.Clock = deps.Clock
	}
	return Options{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		Proxy:    cfg.Proxy,
		Timeout:  cfg.Timeout,
		Cooldown: cfg.Cooldown,
		Retry:    policy,
	}
}

// Close 释放 Provider 持有的 goroutine (如果有)
func Close(p Provider) {
	if c, ok := p.(interface{ Close() }); ok {
		c.Close()
	}
}
