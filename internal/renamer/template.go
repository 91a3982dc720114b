package renamer

import (
	"regexp"
	"strconv"
	"strings"
)

const DefaultTemplate = "{Title} ({Year})"

var spaceRun = regexp.MustCompile(`\s+`)

// Fields 渲染文件夹名所需的值，标题类字段为空时回退到 Title
type Fields struct {
	Title    string `json:"title"`
	TitleTW  string `json:"title_tw"`
	TitleCN  string `json:"title_cn"`
	TitleJP  string `json:"title_jp"`
	TitleEN  string `json:"title_en"`
	Type     string `json:"type"`
	Year     *int   `json:"year"`
	Original string `json:"original"`
}

// Render 按模板生成新的文件夹名。
// 没有标题时原样返回 Original；没有年份/类型时整段 "({Year})" / "({Type})" 去掉。
func Render(template string, f Fields) string {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return f.Original
	}
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}

	if f.Year == nil {
		template = strings.ReplaceAll(template, "({Year})", "")
	}
	if strings.TrimSpace(f.Type) == "" {
		template = strings.ReplaceAll(template, "({Type})", "")
	}

	year := ""
	if f.Year != nil {
		year = strconv.Itoa(*f.Year)
	}
	r := strings.NewReplacer(
		"{TitleTW}", orTitle(f.TitleTW, title),
		"{TitleCN}", orTitle(f.TitleCN, title),
		"{TitleJP}", orTitle(f.TitleJP, title),
		"{TitleEN}", orTitle(f.TitleEN, title),
		"{Title}", title,
		"{Type}", strings.TrimSpace(f.Type),
		"{Year}", year,
		"{Original}", f.Original,
	)
	name := r.Replace(template)
	return SanitizeName(spaceRun.ReplaceAllString(name, " "))
}

func orTitle(v, title string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return title
}

const (
	markYear   = "\x00Y"
	markType   = "\x00T"
	markTitle  = "\x00N"
	markYearV  = "\x00y"
	markTypeV  = "\x00t"
	markOrigin = "\x00O"
)

// TemplatePattern 匹配按模板生成的名字。
// 标题不允许出现 [] 【】，避免把带压制组标签的原始名字当成已整理。
func TemplatePattern(template string) *regexp.Regexp {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	t := strings.TrimSpace(spaceRun.ReplaceAllString(template, " "))
	t = strings.NewReplacer(
		"({Year})", markYear,
		"({Type})", markType,
		"{TitleTW}", markTitle,
		"{TitleCN}", markTitle,
		"{TitleJP}", markTitle,
		"{TitleEN}", markTitle,
		"{Title}", markTitle,
		"{Year}", markYearV,
		"{Type}", markTypeV,
		"{Original}", markOrigin,
	).Replace(t)

	expr := regexp.QuoteMeta(t)
	expr = strings.NewReplacer(
		markYear, `\(\d{4}\)`,
		markType, `\([^()]+\)`,
		markTitle, `[^\[\]【】]+?`,
		markYearV, `\d{4}`,
		markTypeV, `[^()\[\]]+?`,
		markOrigin, `.+?`,
	).Replace(expr)
	return regexp.MustCompile("^" + expr + "$")
}

// MatchesTemplate 名字是否已经是模板的输出。
// 模板只有标题占位符时无法区分，一律返回 false。
func MatchesTemplate(template, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || !hasConstraint(template) {
		return false
	}
	return TemplatePattern(template).MatchString(name)
}

func hasConstraint(template string) bool {
	if strings.TrimSpace(template) == "" {
		return true
	}
	rest := strings.NewReplacer(
		"{TitleTW}", "", "{TitleCN}", "", "{TitleJP}", "", "{TitleEN}", "",
		"{Title}", "", "{Original}", "",
	).Replace(template)
	return strings.TrimSpace(rest) != ""
}

var invalidNameChars = strings.NewReplacer(
	"/", "／",
	`\`, "＼",
	":", "：",
	"*", "＊",
	"?", "？",
	`"`, "＂",
	"<", "＜",
	">", "＞",
	"|", "｜",
)

// SanitizeName 把文件夹名中不允许的字符换成全角字符，去掉控制字符和结尾的点
func SanitizeName(name string) string {
	name = invalidNameChars.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	return strings.TrimRight(strings.TrimSpace(name), ". ")
}
