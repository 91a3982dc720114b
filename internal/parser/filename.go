package parser

import (
	"regexp"
	"strings"
)

// 技术噪声标签: 分辨率、编码、音轨、位深、片源、封装格式、压制组常见字样。
// 这些词不会出现在正常标题里，任何位置都去掉。
var noiseRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(1080p|720p|2160p|4k|360p|480p|FHD|1920x1080|1280x720|3840x2160)\b`),
	regexp.MustCompile(`(?i)\b(h[. ]?264|h[. ]?265|x264|x265|av1|hevc|avc|vp9)\b`),
	regexp.MustCompile(`(?i)\b(flac|aac|aacx2|aacx3|aacx4|ac3|eac3|dts-hd|dts|truehd|mp3)\b`),
	regexp.MustCompile(`(?i)\b(10bit|8bit|hi10p|ma10p)\b`),
	regexp.MustCompile(`(?i)\b(web-?rip|bd-?rip|web-?dl|bluray|blu-ray|dvd-?rip|hdtv|bdmv)\b`),
	regexp.MustCompile(`(?i)\b(mkv|mp4|flv|wmv|rmvb|webm|m2ts)\b`),
	regexp.MustCompile(`(?i)\b(vcb-studio|vcb|lilith-raws|nc-raws|sakurato|dual[ -]audio|multi[ -]subs?|jpsc|jptc)\b`),
}

// ambiguousNoiseRegex 也是普通单词 (Ani ni Tsukeru Kusuri, Web Ghost)，
// 只在第一个确定的噪声标签之后去掉
var ambiguousNoiseRegex = regexp.MustCompile(`(?i)\b(hd|bd|web|ts|avi|mov|ani|gb|big5|chs|cht|opus)\b`)

var (
	extensionRegex = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|mov|flv|wmv|ts|rmvb|webm|m2ts)$`)
	separatorRegex = regexp.MustCompile(`[._]+`)
	spacesRegex    = regexp.MustCompile(`\s+`)
)

// CleanFolderName 去掉括号段与技术噪声，返回适合重新查询的名称。
// 全部被去掉时返回空串。
func CleanFolderName(name string) string {
	s := extensionRegex.ReplaceAllString(name, "")
	s = bracketGroupRegex.ReplaceAllString(s, " ")
	s = separatorRegex.ReplaceAllString(s, " ")

	if i := firstNoise(s); i >= 0 {
		s = s[:i] + ambiguousNoiseRegex.ReplaceAllString(s[i:], " ")
	}
	for _, re := range noiseRegexes {
		s = re.ReplaceAllString(s, " ")
	}

	s = strings.TrimSpace(spacesRegex.ReplaceAllString(s, " "))
	return strings.Trim(s, "-_ ")
}

// firstNoise 第一个确定噪声标签的位置，没有时返回 -1
func firstNoise(s string) int {
	first := -1
	for _, re := range noiseRegexes {
		if loc := re.FindStringIndex(s); loc != nil && (first < 0 || loc[0] < first) {
			first = loc[0]
		}
	}
	return first
}
