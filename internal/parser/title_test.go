package parser

import (
	"testing"
)

func TestCleanFolderName(t *testing.T) {
	cases := []struct {
		Name     string
		Expected string
	}{
		{
			Name:     "[LoliHouse] Sousou no Frieren [WebRip 1080p HEVC-10bit AAC]",
			Expected: "Sousou no Frieren",
		},
		{
			Name:     "Bocchi.the.Rock.1080p.x265.FLAC.mkv",
			Expected: "Bocchi the Rock",
		},
		{
			Name:     "[ANi] 迷宮飯 (BD 1920x1080 x264 Flac)",
			Expected: "迷宮飯",
		},
		{
			Name:     "葬送のフリーレン",
			Expected: "葬送のフリーレン",
		},
		{
			Name:     "[VCB-Studio] 1080p x265",
			Expected: "",
		},
		// 普通单词不能当作噪声
		{
			Name:     "Ani ni Tsukeru Kusuri wa Nai!",
			Expected: "Ani ni Tsukeru Kusuri wa Nai!",
		},
		{
			Name:     "Web Ghost Pipopa HD Remaster",
			Expected: "Web Ghost Pipopa HD Remaster",
		},
		{
			Name:     "Ani ni Tsukeru Kusuri 1080p WEB CHS",
			Expected: "Ani ni Tsukeru Kusuri",
		},
		{
			Name:     "Gintama.ts",
			Expected: "Gintama",
		},
	}

	for _, c := range cases {
		got := CleanFolderName(c.Name)
		if got != c.Expected {
			t.Errorf("CleanFolderName(%q): expected %q, got %q", c.Name, c.Expected, got)
		}
	}
}

func TestCleanTitle(t *testing.T) {
	cases := []struct {
		Raw      string
		Expected string
	}{
		{"[Group] Spy x Family Season 2 [1080p]", "Spy x Family"},
		{"迷宮飯 第2季", "迷宮飯"},
		{"Oshi no Ko (2023)", "Oshi no Ko"},
		{"[only tags]", "[only tags]"},
	}

	for _, c := range cases {
		got := CleanTitle(c.Raw)
		if got != c.Expected {
			t.Errorf("CleanTitle(%q): expected %q, got %q", c.Raw, c.Expected, got)
		}
	}
}

func TestSearchKeyword(t *testing.T) {
	got := SearchKeyword("[Sakurato] Spy x Family Season 2 [WEB-DL 1080p AVC AAC]")
	if got != "Spy x Family" {
		t.Errorf("SearchKeyword: expected %q, got %q", "Spy x Family", got)
	}
}
