package service

import (
	"context"
	"sync"
	"testing"

	"github.com/pokerjest/animeFolderOrganizer/internal/db"
	"github.com/pokerjest/animeFolderOrganizer/internal/metadata"
	"github.com/pokerjest/animeFolderOrganizer/internal/subshare"
	"github.com/pokerjest/animeFolderOrganizer/internal/verify"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewHistoryStore(conn)
}

func intPtr(v int) *int { return &v }

type fakeProvider struct {
	mu           sync.Mutex
	batchCalls   [][]string
	analyzeCalls []string

	batchFn   func(call int, names []string) ([]*metadata.Metadata, error)
	analyzeFn func(name string) (*metadata.Metadata, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Analyze(_ context.Context, name string) (*metadata.Metadata, error) {
	p.mu.Lock()
	p.analyzeCalls = append(p.analyzeCalls, name)
	p.mu.Unlock()
	if p.analyzeFn == nil {
		return nil, nil
	}
	return p.analyzeFn(name)
}

func (p *fakeProvider) AnalyzeBatch(_ context.Context, names []string) ([]*metadata.Metadata, error) {
	p.mu.Lock()
	p.batchCalls = append(p.batchCalls, names)
	call := len(p.batchCalls)
	p.mu.Unlock()
	if p.batchFn == nil {
		return make([]*metadata.Metadata, len(names)), nil
	}
	return p.batchFn(call, names)
}

// jpIsName 每个名字返回 TitleJP = 名字本身
func jpIsName(_ int, names []string) ([]*metadata.Metadata, error) {
	out := make([]*metadata.Metadata, len(names))
	for i, n := range names {
		out[i] = &metadata.Metadata{TitleJP: n, Confidence: 0.9}
	}
	return out, nil
}

type fakeVerifier struct {
	mu       sync.Mutex
	verified map[string]bool
	calls    []string
}

func newFakeVerifier(titles ...string) *fakeVerifier {
	v := &fakeVerifier{verified: make(map[string]bool)}
	for _, t := range titles {
		v.verified[t] = true
	}
	return v
}

func (v *fakeVerifier) Verify(_ context.Context, title string) verify.Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, title)
	if v.verified[title] {
		return verify.Verified
	}
	return verify.Failed
}

type fakeMatcher map[string]*subshare.TitleMatch

func (m fakeMatcher) FindBestMatch(_ context.Context, title string) (*subshare.TitleMatch, error) {
	return m[title], nil
}

type fakeRenamed map[string]bool

func (r fakeRenamed) IsRenamed(_ context.Context, path string) (bool, error) {
	return r[path], nil
}
