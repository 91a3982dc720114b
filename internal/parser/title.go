package parser

import (
	"regexp"
	"strings"
)

var (
	squareRegex = regexp.MustCompile(`[\[【].*?[\]】]`)
	roundRegex  = regexp.MustCompile(`[\(（].*?[\)）]`)
	seasonRegex = regexp.MustCompile(`(?i)(season\s*\d+|\bs\d{1,2}\b|第\s*[\d一二三四五六七八九十]+\s*[季期]|part\s*\d+)`)
)

// CleanTitle removes common tags like [Group] or [1080p] to get a search-friendly title
func CleanTitle(raw string) string {
	s := raw

	// 1. Remove all [...] content
	s = squareRegex.ReplaceAllString(s, "")

	// 2. Remove all (...) content
	s = roundRegex.ReplaceAllString(s, "")

	// 3. Remove Season info (Series/Season X, Sxx, 第x季, Part x)
	s = seasonRegex.ReplaceAllString(s, "")

	// 4. Cleanup: Remove extra spaces and leading/trailing dashes/spaces
	s = strings.TrimSpace(spacesRegex.ReplaceAllString(s, " "))
	s = strings.Trim(s, "- ")

	if s == "" {
		return strings.TrimSpace(raw) // Fallback if we stripped everything
	}
	return s
}

// SearchKeyword 文件夹名 -> 适合在外部标题库检索的关键字
func SearchKeyword(folderName string) string {
	cleaned := CleanFolderName(folderName)
	if cleaned == "" {
		return CleanTitle(folderName)
	}
	return CleanTitle(cleaned)
}
