// Package metadata 通过 LLM 或官方标题库分析番剧文件夹名称。
package metadata

import (
	"context"
	"errors"
	"fmt"
)

// Metadata 单个文件夹的分析结果
type Metadata struct {
	ID         string  `json:"id"`
	TitleJP    string  `json:"title_jp"`
	TitleCN    string  `json:"title_cn"`
	TitleTW    string  `json:"title_tw"`
	TitleEN    string  `json:"title_en"`
	Type       string  `json:"type"`
	Year       *int    `json:"year,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Provider 外部分析来源。
// AnalyzeBatch 返回与输入等长且同序的结果，nil 表示该项没有信息。
type Provider interface {
	Name() string
	Analyze(ctx context.Context, name string) (*Metadata, error)
	AnalyzeBatch(ctx context.Context, names []string) ([]*Metadata, error)
}

// Kind Provider 级失败类型
type Kind int

const (
	KindTransient Kind = iota
	KindNoKey
	KindRateLimited
	KindQuotaExceeded
	KindModelNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNoKey:
		return "no_key"
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindModelNotFound:
		return "model_not_found"
	default:
		return "transient"
	}
}

// Blocking 这类错误重试也不会恢复，需要用户处理
func (k Kind) Blocking() bool {
	return k != KindTransient
}

type ProviderError struct {
	Kind Kind
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return "provider: " + e.Kind.String()
	}
	return fmt.Sprintf("provider: %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) *ProviderError {
	return &ProviderError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf 取出错误链中的 ProviderError 类型
func KindOf(err error) (Kind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return KindTransient, false
}

// IsBlocking 是否为阻断性的 Provider 错误 (缺少 key、限流、配额、模型不存在)
func IsBlocking(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind.Blocking()
}

func emptyResults(n int) []*Metadata {
	return make([]*Metadata, n)
}

// analyzeOne 单项分析走批量接口
func analyzeOne(ctx context.Context, p Provider, name string) (*Metadata, error) {
	results, err := p.AnalyzeBatch(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}
