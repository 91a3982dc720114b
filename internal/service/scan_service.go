package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pokerjest/animeFolderOrganizer/internal/event"
	"github.com/pokerjest/animeFolderOrganizer/internal/metadata"
	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"github.com/pokerjest/animeFolderOrganizer/internal/parser"
	"github.com/pokerjest/animeFolderOrganizer/internal/renamer"
	"github.com/pokerjest/animeFolderOrganizer/internal/subshare"
	"github.com/pokerjest/animeFolderOrganizer/internal/textconv"
	"github.com/pokerjest/animeFolderOrganizer/internal/verify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const DefaultBatchSize = 10

// TitleMatcher 字幕库精确/模糊匹配 (subshare.Service)
type TitleMatcher interface {
	FindBestMatch(ctx context.Context, title string) (*subshare.TitleMatch, error)
}

// RenamedChecker 路径是否来自以前的改名 (HistoryStore)
type RenamedChecker interface {
	IsRenamed(ctx context.Context, path string) (bool, error)
}

type ScanOptions struct {
	BatchSize int
	Template  string
	Language  model.NamingLanguage
}

type ScanDeps struct {
	Fs        afero.Fs
	Provider  metadata.Provider
	Verifier  verify.Verifier
	Matcher   TitleMatcher
	History   RenamedChecker
	Converter textconv.Converter
	Bus       event.Bus
}

type ScanResult struct {
	Root             string               `json:"root"`
	Total            int                  `json:"total"`
	Identified       int                  `json:"identified"`
	AlreadyOrganized int                  `json:"already_organized"`
	Retried          int                  `json:"retried"`
	ProviderError    string               `json:"provider_error,omitempty"`
	Folders          []*model.AnimeFolder `json:"folders"`
}

// ScanService 扫描目录下的番剧文件夹，调用 Provider 识别并校验
type ScanService struct {
	fs       afero.Fs
	provider metadata.Provider
	verifier verify.Verifier
	matcher  TitleMatcher
	history  RenamedChecker
	conv     textconv.Converter
	bus      event.Bus
	opts     ScanOptions
}

func NewScanService(deps ScanDeps, opts ScanOptions) *ScanService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if strings.TrimSpace(opts.Template) == "" {
		opts.Template = renamer.DefaultTemplate
	}
	if opts.Language == "" {
		opts.Language = model.LanguageTW
	}
	if deps.Converter == nil {
		deps.Converter = textconv.Default()
	}
	if deps.Verifier == nil {
		deps.Verifier = verify.TrustVerifier{}
	}
	return &ScanService{
		fs:       deps.Fs,
		provider: deps.Provider,
		verifier: deps.Verifier,
		matcher:  deps.Matcher,
		history:  deps.History,
		conv:     deps.Converter,
		bus:      event.Or(deps.Bus),
		opts:     opts,
	}
}

// Options 当前的扫描参数
func (s *ScanService) Options() ScanOptions {
	return s.opts
}

// Scan 处理 root 下的直接子目录。
// 取消时停止并返回已经处理完的文件夹和 ctx.Err()。
func (s *ScanService) Scan(ctx context.Context, root string) (*ScanResult, error) {
	log.Infof("ScanService: Starting scan for %s", root)

	entries, err := afero.ReadDir(s.fs, root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var folders, pending []*model.AnimeFolder
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		f := model.NewAnimeFolder(filepath.Join(root, entry.Name()), entry.Name())
		folders = append(folders, f)

		if s.alreadyOrganized(ctx, f) {
			f.State = model.StateAlreadyOrganized
			continue
		}
		pending = append(pending, f)
	}

	res := &ScanResult{Root: root, Total: len(folders)}
	total := len(pending)

	var scanErr error
	for start := 0; start < total; start += s.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			scanErr = err
			break
		}
		end := start + s.opts.BatchSize
		if end > total {
			end = total
		}
		if err := s.processBatch(ctx, pending[start:end], res); err != nil {
			scanErr = err
			break
		}
		s.bus.Publish(event.EventScanProgress, event.Progress{Processed: end, Total: total, Current: pending[end-1].Name})
	}

	for _, f := range folders {
		switch {
		case f.State == model.StateUnprocessed:
			continue
		case f.State == model.StateAlreadyOrganized:
			res.AlreadyOrganized++
		case f.IsIdentified:
			res.Identified++
		}
		if f.Retried {
			res.Retried++
		}
		res.Folders = append(res.Folders, f)
	}
	if res.Folders == nil {
		res.Folders = []*model.AnimeFolder{}
	}

	log.Infof("ScanService: %s done, %d folders, %d identified, %d already organized",
		root, len(res.Folders), res.Identified, res.AlreadyOrganized)
	s.bus.Publish(event.EventScanComplete, res)
	return res, scanErr
}

func (s *ScanService) alreadyOrganized(ctx context.Context, f *model.AnimeFolder) bool {
	if renamer.MatchesTemplate(s.opts.Template, f.Name) {
		return true
	}
	if s.history == nil {
		return false
	}
	renamed, err := s.history.IsRenamed(ctx, f.Path)
	if err != nil {
		log.Warnf("ScanService: history check for %s failed: %v", f.Path, err)
		return false
	}
	return renamed
}

// processBatch 一次 AnalyzeBatch。
// 整批失败时这批文件夹保持 Provisional 且没有标题，不影响其他批次。
func (s *ScanService) processBatch(ctx context.Context, batch []*model.AnimeFolder, res *ScanResult) error {
	names := make([]string, len(batch))
	for i, f := range batch {
		names[i] = f.Name
	}

	results, err := s.provider.AnalyzeBatch(ctx, names)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnf("ScanService: batch of %d failed: %v", len(batch), err)
		kind := providerErrorKind(err)
		if kind != "" && res.ProviderError == "" {
			res.ProviderError = kind
		}
		for _, f := range batch {
			f.State = model.StateProvisional
			f.ProviderError = kind
			finalize(f, s.opts.Language, s.conv, s.opts.Template)
		}
		return nil
	}

	for i, f := range batch {
		var m *metadata.Metadata
		if i < len(results) {
			m = results[i]
		}
		applyMetadata(f, m)
		f.State = model.StateProvisional

		if err := s.reconcile(ctx, f, res); err != nil {
			return err
		}
	}
	return nil
}

// reconcile Provisional → 补全字幕库信息 → 校验；失败时用清洗后的名字重试一次
func (s *ScanService) reconcile(ctx context.Context, f *model.AnimeFolder, res *ScanResult) error {
	s.enrich(ctx, f)
	s.verifyFolder(ctx, f)

	if f.State == model.StateVerificationFailed && !f.Retried {
		cleaned := parser.CleanFolderName(f.Name)
		if cleaned != f.Name && utf8.RuneCountInString(cleaned) > 2 {
			f.Retried = true
			log.Debugf("ScanService: retry %q as %q", f.Name, cleaned)

			m, err := s.provider.Analyze(ctx, cleaned)
			switch {
			case err != nil && ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				log.Warnf("ScanService: retry for %s failed: %v", f.Name, err)
				if kind := providerErrorKind(err); kind != "" {
					f.ProviderError = kind
					if res.ProviderError == "" {
						res.ProviderError = kind
					}
				}
			case m != nil:
				f.ClearTitles()
				applyMetadata(f, m)
				s.enrich(ctx, f)
				s.verifyFolder(ctx, f)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	finalize(f, s.opts.Language, s.conv, s.opts.Template)
	return nil
}

func (s *ScanService) verifyFolder(ctx context.Context, f *model.AnimeFolder) {
	title := BestNativeTitle(f)
	status := verify.Failed
	if title != "" {
		status = s.verifier.Verify(ctx, title)
	}
	if status == verify.Verified {
		f.State = model.StateVerified
		f.Verification = model.VerificationVerified
		return
	}
	f.State = model.StateVerificationFailed
	f.Verification = model.VerificationFailed
}

// enrich 用日文标题在字幕库里找同一部作品，补全中文标题
func (s *ScanService) enrich(ctx context.Context, f *model.AnimeFolder) {
	if s.matcher == nil || strings.TrimSpace(f.TitleJP) == "" {
		return
	}
	match, err := s.matcher.FindBestMatch(ctx, f.TitleJP)
	if err != nil || match == nil {
		return
	}
	if f.TitleCN == "" {
		f.TitleCN = match.TitleChs
	}
	if f.TitleTW == "" {
		f.TitleTW = match.TitleCht
	}
	f.SubShare = &model.SubShareRef{Key: match.Key, RepoPath: match.RepoPath}
}

func applyMetadata(f *model.AnimeFolder, m *metadata.Metadata) {
	if m == nil {
		return
	}
	f.TitleJP = strings.TrimSpace(m.TitleJP)
	f.TitleCN = strings.TrimSpace(m.TitleCN)
	f.TitleTW = strings.TrimSpace(m.TitleTW)
	f.TitleEN = strings.TrimSpace(m.TitleEN)
	f.Type = strings.TrimSpace(m.Type)
	f.Year = m.Year
	f.MetadataID = m.ID
	f.Confidence = m.Confidence
}

// providerErrorKind 阻断型错误返回其类型名，其余返回空
func providerErrorKind(err error) string {
	if !metadata.IsBlocking(err) {
		return ""
	}
	kind, _ := metadata.KindOf(err)
	return kind.String()
}
