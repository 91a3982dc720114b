// Package lookup 从 TMDB / Bangumi / AniList 查询作品的官方译名。
package lookup

import (
	"context"
	"strings"

	"github.com/pokerjest/animeFolderOrganizer/internal/anilist"
	"github.com/pokerjest/animeFolderOrganizer/internal/bangumi"
	"github.com/pokerjest/animeFolderOrganizer/internal/parser"
	"github.com/pokerjest/animeFolderOrganizer/internal/textconv"
	"github.com/pokerjest/animeFolderOrganizer/internal/tmdb"
	log "github.com/sirupsen/logrus"
)

// Result 合并后的官方标题
type Result struct {
	TitleJP string `json:"title_jp"`
	TitleCN string `json:"title_cn"`
	TitleTW string `json:"title_tw"`
	TitleEN string `json:"title_en"`
}

type Service struct {
	tmdb    *tmdb.Client
	bangumi *bangumi.Client
	anilist *anilist.Client
	conv    textconv.Converter
}

// NewService tmdbClient 为 nil 时跳过 TMDB (未配置 token)
func NewService(tmdbClient *tmdb.Client, bgm *bangumi.Client, al *anilist.Client, conv textconv.Converter) *Service {
	if conv == nil {
		conv = textconv.Default()
	}
	return &Service{
		tmdb:    tmdbClient,
		bangumi: bgm,
		anilist: al,
		conv:    conv,
	}
}

// Lookup 依次查询 TMDB → Bangumi → AniList，字段取第一个非空值。
// 各来源的失败只记录日志；中文与英文标题都缺失时返回 nil。
func (s *Service) Lookup(ctx context.Context, japaneseTitle string) (*Result, error) {
	title := strings.TrimSpace(japaneseTitle)
	if title == "" {
		return nil, nil
	}

	fromTMDB := s.fromTMDB(ctx, title)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fromBangumi *Result
	if fromTMDB == nil || fromTMDB.TitleCN == "" || fromTMDB.TitleTW == "" || fromTMDB.TitleEN == "" {
		fromBangumi = s.fromBangumi(ctx, title)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	var fromAniList *Result
	if firstNonEmpty(field(fromTMDB, en), field(fromBangumi, en)) == "" {
		fromAniList = s.fromAniList(ctx, title)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	res := &Result{
		TitleJP: firstNonEmpty(field(fromTMDB, jp), field(fromBangumi, jp), field(fromAniList, jp), title),
		TitleCN: firstNonEmpty(field(fromTMDB, cn), field(fromBangumi, cn)),
		TitleTW: firstNonEmpty(field(fromTMDB, tw), field(fromBangumi, tw)),
		TitleEN: firstNonEmpty(field(fromTMDB, en), field(fromBangumi, en), field(fromAniList, en)),
	}
	if res.TitleTW == "" && res.TitleCN != "" {
		res.TitleTW = s.conv.ToTraditional(res.TitleCN)
	}
	if res.TitleCN == "" && res.TitleTW == "" && res.TitleEN == "" {
		return nil, nil
	}
	return res, nil
}

func (s *Service) fromTMDB(ctx context.Context, title string) *Result {
	if s.tmdb == nil || s.tmdb.Token == "" {
		return nil
	}

	results, err := s.tmdb.SearchMulti(ctx, title, "ja-JP")
	if err != nil {
		log.Debugf("Lookup: TMDB search failed: %v", err)
		return nil
	}

	var mediaType string
	var id int
	for _, r := range results {
		if r.ID > 0 && (r.MediaType == "tv" || r.MediaType == "movie") {
			mediaType, id = r.MediaType, r.ID
			break
		}
	}
	if id == 0 {
		return nil
	}

	translations, err := s.tmdb.Translations(ctx, mediaType, id)
	if err != nil {
		log.Debugf("Lookup: TMDB translations failed: %v", err)
		return nil
	}

	res := &Result{}
	for _, t := range translations {
		name := strings.TrimSpace(t.Title())
		if name == "" {
			continue
		}
		switch {
		case t.Language == "zh" && t.Region == "TW":
			setOnce(&res.TitleTW, name)
		case t.Language == "zh" && t.Region == "CN":
			setOnce(&res.TitleCN, name)
		case t.Language == "en":
			setOnce(&res.TitleEN, name)
		case t.Language == "ja":
			setOnce(&res.TitleJP, name)
		}
	}
	if res.TitleCN == "" && res.TitleTW == "" && res.TitleEN == "" {
		return nil
	}
	return res
}

func (s *Service) fromBangumi(ctx context.Context, title string) *Result {
	if s.bangumi == nil {
		return nil
	}

	list, err := s.bangumi.SearchSubjects(ctx, title)
	if err != nil {
		log.Debugf("Lookup: Bangumi search failed: %v", err)
		return nil
	}

	// 名字完全一致的优先，否则取第一条
	want := parser.NormalizeForMatch(title)
	selected := 0
	for _, item := range list {
		if item.ID <= 0 {
			continue
		}
		if item.Name != "" && parser.NormalizeForMatch(item.Name) == want {
			selected = item.ID
			break
		}
		if selected == 0 {
			selected = item.ID
		}
	}
	if selected == 0 {
		return nil
	}

	subject, err := s.bangumi.GetSubject(ctx, selected)
	if err != nil {
		log.Debugf("Lookup: Bangumi subject %d failed: %v", selected, err)
		return nil
	}
	if strings.TrimSpace(subject.NameCN) == "" {
		return nil
	}
	return &Result{TitleJP: strings.TrimSpace(subject.Name), TitleCN: strings.TrimSpace(subject.NameCN)}
}

func (s *Service) fromAniList(ctx context.Context, title string) *Result {
	if s.anilist == nil {
		return nil
	}

	media, err := s.anilist.SearchAnime(ctx, title)
	if err != nil {
		log.Debugf("Lookup: AniList search failed: %v", err)
		return nil
	}
	if media == nil {
		return nil
	}
	res := &Result{TitleJP: strings.TrimSpace(media.Title.Native), TitleEN: strings.TrimSpace(media.Title.English)}
	if res.TitleJP == "" && res.TitleEN == "" {
		return nil
	}
	return res
}

type lang int

const (
	jp lang = iota
	cn
	tw
	en
)

func field(r *Result, l lang) string {
	if r == nil {
		return ""
	}
	switch l {
	case jp:
		return r.TitleJP
	case cn:
		return r.TitleCN
	case tw:
		return r.TitleTW
	default:
		return r.TitleEN
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
