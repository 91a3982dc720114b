package subshare

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/pokerjest/animeFolderOrganizer/internal/parser"
)

// 五个标题字段的顺序，线性扫描和包含校验都按此顺序
const (
	fieldChs = iota
	fieldCht
	fieldJp
	fieldEn
	fieldRome
	fieldCount
)

// ctxCheckEvery 扫描时每隔多少条检查一次取消
const ctxCheckEvery = 1024

// gramSet 保持插入顺序的 bigram 集合
type gramSet struct {
	seen  map[uint32]struct{}
	order []uint32
}

func newGramSet() *gramSet {
	return &gramSet{seen: make(map[uint32]struct{})}
}

func (g *gramSet) add(key uint32) {
	if _, ok := g.seen[key]; ok {
		return
	}
	g.seen[key] = struct{}{}
	g.order = append(g.order, key)
}

func (g *gramSet) reset() {
	clear(g.seen)
	g.order = g.order[:0]
}

func (g *gramSet) len() int { return len(g.order) }

// packBigram 两个 UTF-16 code unit 合成一个 32 位 key
func packBigram(a, b uint16) uint32 {
	return uint32(a)<<16 | uint32(b)
}

// addDistinctBigrams 把已标准化字符串的所有相邻二元组加入 dest。
// 长度不足 2 的字符串不贡献任何 key。
func addDistinctBigrams(normalized string, dest *gramSet) {
	units := utf16.Encode([]rune(normalized))
	if len(units) < 2 {
		return
	}
	for i := 0; i < len(units)-1; i++ {
		dest.add(packBigram(units[i], units[i+1]))
	}
}

// utf16Len 以 UTF-16 code unit 计的长度
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// snapshot 一次加载的完整索引，发布后不再修改
type snapshot struct {
	matches  []TitleMatch
	norm     [fieldCount][]string
	postings map[uint32][]int32
	best     map[string]int
}

var emptySnapshot = &snapshot{
	postings: map[uint32][]int32{},
	best:     map[string]int{},
}

func (s *snapshot) len() int { return len(s.matches) }

// indexBuilder 一次遍历构建记录、标准化数组、倒排与精确表
type indexBuilder struct {
	snap        *snapshot
	recordGrams *gramSet
}

func newIndexBuilder(capacity int) *indexBuilder {
	snap := &snapshot{
		matches:  make([]TitleMatch, 0, capacity),
		postings: make(map[uint32][]int32),
		best:     make(map[string]int),
	}
	for i := range snap.norm {
		snap.norm[i] = make([]string, 0, capacity)
	}
	return &indexBuilder{snap: snap, recordGrams: newGramSet()}
}

func (b *indexBuilder) add(rec Record) {
	m := newTitleMatch(rec)
	idx := len(b.snap.matches)
	b.snap.matches = append(b.snap.matches, m)

	fields := [fieldCount]string{
		parser.Normalize(m.TitleChs),
		parser.Normalize(m.TitleCht),
		parser.Normalize(m.TitleJp),
		parser.Normalize(m.TitleEn),
		parser.Normalize(m.TitleRome),
	}

	// 按记录去重，一条记录在每个 posting list 里最多出现一次
	b.recordGrams.reset()
	for i, f := range fields {
		b.snap.norm[i] = append(b.snap.norm[i], f)
		addDistinctBigrams(f, b.recordGrams)
	}
	for _, gram := range b.recordGrams.order {
		b.snap.postings[gram] = append(b.snap.postings[gram], int32(idx))
	}

	for _, f := range fields {
		b.updateBest(f, idx)
	}
}

// updateBest 时间较新者优先，无时间视为最小值，相同时保留先插入的
func (b *indexBuilder) updateBest(normalized string, idx int) {
	if normalized == "" {
		return
	}
	existing, ok := b.snap.best[normalized]
	if !ok {
		b.snap.best[normalized] = idx
		return
	}
	if timeOrMin(b.snap.matches[idx].Time).After(timeOrMin(b.snap.matches[existing].Time)) {
		b.snap.best[normalized] = idx
	}
}

func (b *indexBuilder) build() *snapshot {
	return b.snap
}

func timeOrMin(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func newTitleMatch(rec Record) TitleMatch {
	typ := strings.TrimSpace(rec.Type)
	return TitleMatch{
		Key:       parser.Normalize(rec.NameJp) + "_" + typ,
		TitleChs:  rec.NameChs,
		TitleCht:  rec.NameCht,
		TitleJp:   rec.NameJp,
		TitleEn:   rec.NameEn,
		TitleRome: rec.NameRome,
		Type:      typ,
		Time:      parseTime(rec.Time),
		RepoPath:  normalizeRepoPath(rec.Path),
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// unix 秒的合法区间 (0001-01-01 ~ 9999-12-31)
const (
	minUnixSeconds = -62135596800
	maxUnixSeconds = 253402300799
)

// parseTime 支持 unix 秒和常见 ISO 格式，失败返回 nil
func parseTime(text string) *time.Time {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs < minUnixSeconds || secs > maxUnixSeconds {
			return nil
		}
		t := time.Unix(secs, 0).UTC()
		return &t
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// normalizeRepoPath 统一为 subs_list/ 开头的正斜杠相对路径
func normalizeRepoPath(p string) string {
	s := strings.TrimSpace(p)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, `\`, "/")
	s = strings.TrimLeft(s, "/")
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, RepoRootPrefix) {
		s = RepoRootPrefix + s
	}
	return s
}

// isMatch 任一标准化标题包含关键字即命中
func (s *snapshot) isMatch(idx int, keyword string) bool {
	for f := 0; f < fieldCount; f++ {
		if strings.Contains(s.norm[f][idx], keyword) {
			return true
		}
	}
	return false
}

// collector 跨变体共享的去重与结果收集
type collector struct {
	limit   int
	seen    map[string]struct{}
	results []TitleMatch
}

func newCollector(limit int) *collector {
	return &collector{
		limit:   limit,
		seen:    make(map[string]struct{}),
		results: make([]TitleMatch, 0, min(limit, 32)),
	}
}

// accept 去重后加入结果，返回是否已满
func (c *collector) accept(m TitleMatch) bool {
	if m.Key == "" {
		return c.full()
	}
	if _, dup := c.seen[m.Key]; dup {
		return c.full()
	}
	c.seen[m.Key] = struct{}{}
	c.results = append(c.results, m)
	return c.full()
}

func (c *collector) full() bool {
	return len(c.results) >= c.limit
}

// search 依次处理各个变体，不做全局排序
func (s *snapshot) search(ctx context.Context, variants []string, limit int) ([]TitleMatch, error) {
	c := newCollector(limit)

	for _, variant := range variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		k := parser.Normalize(variant)
		if k == "" {
			continue
		}

		var err error
		if utf16Len(k) >= 2 && len(s.postings) > 0 {
			err = s.searchIndexed(ctx, k, c)
		} else {
			err = s.linearScan(ctx, k, c)
		}
		if err != nil {
			return nil, err
		}
		if c.full() {
			break
		}
	}
	return c.results, nil
}

// searchIndexed bigram 计数过滤后再做包含校验。
// 计数相等只说明每个 bigram 都出现过，不保证连续，必须再校验。
func (s *snapshot) searchIndexed(ctx context.Context, keyword string, c *collector) error {
	grams := newGramSet()
	addDistinctBigrams(keyword, grams)
	if grams.len() == 0 {
		return s.linearScan(ctx, keyword, c)
	}

	counts := make(map[int32]int, 1024)
	var order []int32
	for _, gram := range grams.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		list, ok := s.postings[gram]
		if !ok {
			// 有 bigram 不在索引中，不可能有记录命中
			return nil
		}
		for _, idx := range list {
			if _, seen := counts[idx]; !seen {
				order = append(order, idx)
			}
			counts[idx]++
		}
	}

	required := grams.len()
	for i, idx := range order {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if counts[idx] != required {
			continue
		}
		if int(idx) >= len(s.matches) || !s.isMatch(int(idx), keyword) {
			continue
		}
		if c.accept(s.matches[idx]) {
			return nil
		}
	}
	return nil
}

func (s *snapshot) linearScan(ctx context.Context, keyword string, c *collector) error {
	for i := range s.matches {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if !s.isMatch(i, keyword) {
			continue
		}
		if c.accept(s.matches[i]) {
			return nil
		}
	}
	return nil
}

// exact 精确表查找
func (s *snapshot) exact(normalized string) (TitleMatch, bool) {
	idx, ok := s.best[normalized]
	if !ok || idx < 0 || idx >= len(s.matches) {
		return TitleMatch{}, false
	}
	return s.matches[idx], true
}
