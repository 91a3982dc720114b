package subshare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pokerjest/animeFolderOrganizer/internal/parser"
	"github.com/pokerjest/animeFolderOrganizer/internal/textconv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const fingerprintMissing = "missing"

// Service 字幕库标题检索。
// 读者只读取已发布的 snapshot，加载在 loadMu 下串行进行，完成后原子替换。
type Service struct {
	fs     afero.Fs
	dbPath string
	conv   textconv.Converter

	loadMu sync.Mutex
	snap   atomic.Pointer[snapshot]

	stateMu     sync.RWMutex
	fingerprint string
	diag        Diagnostics
}

func NewService(fs afero.Fs, dbPath string, conv textconv.Converter) *Service {
	if conv == nil {
		conv = textconv.Default()
	}
	s := &Service{
		fs:     fs,
		dbPath: dbPath,
		conv:   conv,
	}
	s.snap.Store(emptySnapshot)
	s.diag.DbPath = dbPath
	return s
}

// DBPath 字幕库文件路径
func (s *Service) DBPath() string {
	return s.dbPath
}

// EnsureLoaded 文件指纹未变化时不重复解析。
// 只有取消会返回错误，其余加载问题记录在 Diagnostics 中。
func (s *Service) EnsureLoaded(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := s.fs.Stat(s.dbPath)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("SubShare: stat %s failed: %v", s.dbPath, err)
		}
		s.publishEmpty()
		return nil
	}

	fingerprint := fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UTC().UnixNano())
	if s.upToDate(fingerprint) {
		return nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	// 等锁期间可能已被其他调用加载
	if s.upToDate(fingerprint) {
		return nil
	}

	res, err := loadCorpus(ctx, s.fs, s.dbPath)
	if err != nil {
		if isCanceled(err) {
			return err
		}
		// 解析失败：保留旧数据，清空指纹让下次重试
		log.Errorf("SubShare: failed to load %s: %v", s.dbPath, err)
		s.stateMu.Lock()
		s.fingerprint = ""
		s.diag.Fingerprint = ""
		s.diag.FileSize = info.Size()
		s.diag.LastError = err.Error()
		s.stateMu.Unlock()
		return nil
	}

	s.snap.Store(res.snap)

	s.stateMu.Lock()
	s.fingerprint = fingerprint
	s.diag = Diagnostics{
		DbPath:           s.dbPath,
		RecordCount:      res.snap.len(),
		SubsElementCount: res.subsElementCount,
		ParsedCount:      res.parsedCount,
		FileSize:         info.Size(),
		RawSubsTagCount:  res.rawTagCount,
		Fingerprint:      fingerprint,
		LoadCount:        s.diag.LoadCount + 1,
		LoadedAt:         time.Now(),
	}
	s.stateMu.Unlock()

	if res.usedFallback {
		log.Warnf("SubShare: stream parse found %d of %d tags, used document parse (%d records)",
			res.subsElementCount, res.rawTagCount, res.parsedCount)
	}
	log.Infof("SubShare: loaded %d records from %s", res.snap.len(), s.dbPath)
	return nil
}

// upToDate 指纹一致且原始标签数与记录数不矛盾
func (s *Service) upToDate(fingerprint string) bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if s.fingerprint == "" || s.fingerprint != fingerprint {
		return false
	}
	// 原始标签很多但只解析出 1 条，视为错误缓存，强制重载
	return s.diag.RawSubsTagCount <= 1 || s.snap.Load().len() > 1
}

func (s *Service) publishEmpty() {
	s.snap.Store(emptySnapshot)

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.fingerprint = fingerprintMissing
	s.diag = Diagnostics{
		DbPath:      s.dbPath,
		Fingerprint: fingerprintMissing,
		LoadCount:   s.diag.LoadCount,
	}
}

// Invalidate 清空指纹，下次调用会重新解析 (db.xml 被替换后调用)
func (s *Service) Invalidate() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.fingerprint = ""
}

// Search 相当于 LIKE '%keyword%'，结果按 Key 去重且不超过 limit
func (s *Service) Search(ctx context.Context, keyword string, limit int) ([]TitleMatch, error) {
	if limit <= 0 {
		return []TitleMatch{}, nil
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []TitleMatch{}, nil
	}

	if err := s.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.snap.Load().search(ctx, s.variants(keyword), limit)
}

// FindBestMatch 先查精确表，没有再退回 Search(title, 1)
func (s *Service) FindBestMatch(ctx context.Context, title string) (*TitleMatch, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}

	if err := s.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	snap := s.snap.Load()
	normalized := parser.Normalize(title)
	if normalized == "" {
		return nil, nil
	}
	if m, ok := snap.exact(normalized); ok {
		return &m, nil
	}

	results, err := snap.search(ctx, s.variants(title), 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// Diagnostics 返回最近一次加载的统计
func (s *Service) Diagnostics(ctx context.Context) (Diagnostics, error) {
	if err := s.EnsureLoaded(ctx); err != nil {
		return Diagnostics{}, err
	}
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.diag, nil
}

// variants 原关键字，含中文时追加繁体与简体版本
func (s *Service) variants(keyword string) []string {
	out := []string{keyword}
	if !parser.ContainsCJK(keyword) {
		return out
	}

	for _, v := range []string{s.conv.ToTraditional(keyword), s.conv.ToSimplified(keyword)} {
		if strings.TrimSpace(v) == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}
