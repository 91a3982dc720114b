// Package verify 用公开的动画数据库确认识别出的标题确实存在。
package verify

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/pokerjest/animeFolderOrganizer/internal/parser"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://db.animedb.jp/index.php/searchdata/?word="
	UserAgent      = "AnimeFolderOrganizer/1.0"
	termsCookie    = "wptp_terms_261"
)

// titleSelector 搜索结果中每部作品的标题
const titleSelector = "h2.ttitle"

type Status int

const (
	Unverified Status = iota
	Verified
	Failed
)

func (s Status) String() string {
	switch s {
	case Verified:
		return "verified"
	case Failed:
		return "failed"
	default:
		return "unverified"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Verifier interface {
	Verify(ctx context.Context, title string) Status
}

// AnimeDBVerifier 在 db.animedb.jp 上搜索标题，结果按标题缓存
type AnimeDBVerifier struct {
	client  *resty.Client
	baseURL string

	mu    sync.RWMutex
	cache map[string]Status
}

func NewAnimeDBVerifier(baseURL string) *AnimeDBVerifier {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := resty.New().
		SetTimeout(20*time.Second).
		SetHeader("User-Agent", UserAgent).
		SetHeader("Accept", "text/html")
	return &AnimeDBVerifier{
		client:  c,
		baseURL: baseURL,
		cache:   make(map[string]Status),
	}
}

func (v *AnimeDBVerifier) SetProxy(proxyURL string) {
	if proxyURL != "" {
		v.client.SetProxy(proxyURL)
	}
}

func (v *AnimeDBVerifier) Verify(ctx context.Context, title string) Status {
	key := parser.NormalizeTitle(title)
	if key == "" {
		return Failed
	}

	v.mu.RLock()
	cached, ok := v.cache[key]
	v.mu.RUnlock()
	if ok {
		return cached
	}

	status, err := v.query(ctx, key, title)
	if err != nil {
		if ctx.Err() != nil {
			// 取消不是校验结论，不写缓存
			return Failed
		}
		log.Debugf("Verify: %s: %v", key, err)
		status = Failed
	}

	v.mu.Lock()
	v.cache[key] = status
	v.mu.Unlock()
	return status
}

func (v *AnimeDBVerifier) query(ctx context.Context, key, title string) (Status, error) {
	resp, err := v.client.R().
		SetContext(ctx).
		SetHeader("Cookie", termsCookie+"=accepted").
		Get(v.baseURL + escapeWord(key))
	if err != nil {
		return Failed, err
	}
	if resp.IsError() {
		log.Debugf("Verify: %s: HTTP %d", key, resp.StatusCode())
		return Failed, nil
	}

	requested := parser.NormalizeForMatch(title)
	if requested == "" {
		return Failed, nil
	}
	for _, candidate := range ExtractTitles(resp.String()) {
		if isMatch(requested, candidate) {
			return Verified, nil
		}
	}
	return Failed, nil
}

// escapeWord 空格编码为 %20
func escapeWord(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ExtractTitles 搜索结果页中的作品标题，解析失败时返回空
func ExtractTitles(page string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		log.Debugf("Verify: parse result page: %v", err)
		return nil
	}
	var titles []string
	doc.Find(titleSelector).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			titles = append(titles, text)
		}
	})
	return titles
}

func isMatch(requested, candidate string) bool {
	c := parser.NormalizeForMatch(candidate)
	if c == "" {
		return false
	}
	return strings.Contains(c, requested) || strings.Contains(requested, c)
}

// Reset 清空缓存
func (v *AnimeDBVerifier) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache = make(map[string]Status)
}

// TrustVerifier 关闭在线校验时使用，非空标题一律视为通过
type TrustVerifier struct{}

func (TrustVerifier) Verify(_ context.Context, title string) Status {
	if strings.TrimSpace(title) == "" {
		return Failed
	}
	return Verified
}
