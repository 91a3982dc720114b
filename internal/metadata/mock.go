package metadata

import "context"

// MockProvider 固定返回同一部作品，用于演示与测试
type MockProvider struct{}

func (MockProvider) Name() string { return "Mock Provider" }

func (MockProvider) Analyze(_ context.Context, _ string) (*Metadata, error) {
	return frieren(), nil
}

func (MockProvider) AnalyzeBatch(ctx context.Context, names []string) ([]*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]*Metadata, len(names))
	for i := range names {
		results[i] = frieren()
	}
	return results, nil
}

func frieren() *Metadata {
	year := 2023
	return &Metadata{
		ID:         "12345",
		TitleJP:    "葬送のフリーレン",
		TitleCN:    "葬送的芙莉莲",
		TitleTW:    "葬送的芙莉蓮",
		TitleEN:    "Frieren: Beyond Journey's End",
		Type:       "TV",
		Year:       &year,
		Confidence: 0.95,
	}
}
