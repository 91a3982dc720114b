package service

import (
	"strings"

	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"github.com/pokerjest/animeFolderOrganizer/internal/renamer"
	"github.com/pokerjest/animeFolderOrganizer/internal/textconv"
)

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// BestNativeTitle 校验用的标题: JP → TW → CN → EN
func BestNativeTitle(f *model.AnimeFolder) string {
	return firstNonEmpty(f.TitleJP, f.TitleTW, f.TitleCN, f.TitleEN)
}

// PreferredTitle 按偏好语言挑选标题，缺失时用其他语言换算或回退
func PreferredTitle(f *model.AnimeFolder, lang model.NamingLanguage, conv textconv.Converter) string {
	switch lang {
	case model.LanguageTW:
		if strings.TrimSpace(f.TitleTW) != "" {
			return f.TitleTW
		}
		return conv.ToTraditional(firstNonEmpty(f.TitleCN, f.TitleJP, f.TitleEN))
	case model.LanguageCN:
		if strings.TrimSpace(f.TitleCN) != "" {
			return f.TitleCN
		}
		return conv.ToSimplified(firstNonEmpty(f.TitleTW, f.TitleJP, f.TitleEN))
	case model.LanguageJP:
		return firstNonEmpty(f.TitleJP, f.TitleTW, f.TitleCN, f.TitleEN)
	case model.LanguageEN:
		return firstNonEmpty(f.TitleEN, f.TitleJP, f.TitleTW, f.TitleCN)
	default:
		return firstNonEmpty(f.TitleTW, f.TitleCN, f.TitleJP, f.TitleEN)
	}
}

// AvailableTitles 可供选择的标题，按 TW CN JP EN Analyzed Selected 顺序去重 (不区分大小写)
func AvailableTitles(f *model.AnimeFolder) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, t := range []string{f.TitleTW, f.TitleCN, f.TitleJP, f.TitleEN, f.AnalyzedTitle, f.SelectedTitle} {
		if strings.TrimSpace(t) == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// FolderFields 渲染命名模板用的字段，优先使用用户选择的标题
func FolderFields(f *model.AnimeFolder) renamer.Fields {
	return renamer.Fields{
		Title:    firstNonEmpty(f.SelectedTitle, f.AnalyzedTitle),
		TitleTW:  f.TitleTW,
		TitleCN:  f.TitleCN,
		TitleJP:  f.TitleJP,
		TitleEN:  f.TitleEN,
		Type:     f.Type,
		Year:     f.Year,
		Original: f.Name,
	}
}

// finalize 根据当前标题刷新派生字段
func finalize(f *model.AnimeFolder, lang model.NamingLanguage, conv textconv.Converter, template string) {
	f.AnalyzedTitle = firstNonEmpty(f.TitleTW, f.TitleCN, f.TitleJP)
	if f.HasTitles() {
		f.SelectedTitle = PreferredTitle(f, lang, conv)
	}
	f.AvailableTitles = AvailableTitles(f)
	f.IsIdentified = f.Verification == model.VerificationVerified && f.ProviderError == ""
	f.SuggestedName = renamer.Render(template, FolderFields(f))
}
