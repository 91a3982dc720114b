package metadata

import (
	"context"
	"strings"

	"github.com/pokerjest/animeFolderOrganizer/internal/lookup"
	"github.com/pokerjest/animeFolderOrganizer/internal/parser"
)

const officialConfidence = 0.8

// TitleLookup 官方标题查询 (lookup.Service)
type TitleLookup interface {
	Lookup(ctx context.Context, title string) (*lookup.Result, error)
}

// OfficialProvider 不经过 LLM，直接用清洗后的文件夹名查询官方标题库
type OfficialProvider struct {
	lookup TitleLookup
}

func NewOfficialProvider(l TitleLookup) *OfficialProvider {
	return &OfficialProvider{lookup: l}
}

func (p *OfficialProvider) Name() string { return "Official Titles" }

func (p *OfficialProvider) Analyze(ctx context.Context, name string) (*Metadata, error) {
	keyword := parser.SearchKeyword(name)
	if strings.TrimSpace(keyword) == "" {
		return nil, nil
	}

	res, err := p.lookup.Lookup(ctx, keyword)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return &Metadata{
		TitleJP:    res.TitleJP,
		TitleCN:    res.TitleCN,
		TitleTW:    res.TitleTW,
		TitleEN:    res.TitleEN,
		Confidence: officialConfidence,
	}, nil
}

func (p *OfficialProvider) AnalyzeBatch(ctx context.Context, names []string) ([]*Metadata, error) {
	results := emptyResults(len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := p.Analyze(ctx, name)
		if err != nil {
			return nil, err
		}
		results[i] = m
	}
	return results, nil
}
