package parser

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

var (
	// 半角/全角括号段: (..) （..） [..] 【..】 〈..〉 ＜..＞ <..>
	bracketGroupRegex = regexp.MustCompile(`[\(（\[【〈＜<].*?[\)）\]】〉＞>]`)
	htmlTagRegex      = regexp.MustCompile(`<[^>]*>`)
	matchSymbolRegex  = regexp.MustCompile(`[・･：:！!？?～〜‐‑−\-—–.]`)
	matchSpaceRegex   = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// Normalize 索引与查询共用的标准化: 去掉所有空白 (含全角空格) 后转小写。
// 建索引和查询必须走同一个函数。
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NormalizeForMatch 用于和外部标题库比对，额外去掉括号段、HTML 和标点。
// 不参与 bigram 索引。
func NormalizeForMatch(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	s := bracketGroupRegex.ReplaceAllString(text, "")
	s = htmlTagRegex.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = width.Fold.String(s)
	s = matchSymbolRegex.ReplaceAllString(s, "")
	s = matchSpaceRegex.ReplaceAllString(s, "")
	return strings.ToLower(s)
}

// NormalizeTitle trim 并去掉括号段，作为校验缓存的 key
func NormalizeTitle(text string) string {
	s := strings.TrimSpace(text)
	s = bracketGroupRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ContainsCJK 是否包含中日韩统一表意文字
func ContainsCJK(text string) bool {
	for _, r := range text {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF,
			r >= 0x3400 && r <= 0x4DBF,
			r >= 0xF900 && r <= 0xFAFF:
			return true
		}
	}
	return false
}
