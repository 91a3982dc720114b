package model

import (
	"time"
)

// FolderState 扫描流程中单个文件夹的状态
type FolderState string

const (
	StateUnprocessed        FolderState = "unprocessed"
	StateProvisional        FolderState = "provisional"
	StateVerified           FolderState = "verified"
	StateVerificationFailed FolderState = "verification_failed"
	StateAlreadyOrganized   FolderState = "already_organized"
)

// VerificationStatus 外部标题库校验结果
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationFailed     VerificationStatus = "failed"
)

// NamingLanguage 偏好标题语言
type NamingLanguage string

const (
	LanguageTW      NamingLanguage = "tw"
	LanguageCN      NamingLanguage = "cn"
	LanguageJP      NamingLanguage = "jp"
	LanguageEN      NamingLanguage = "en"
	LanguageDefault NamingLanguage = "default"
)

// SubShareRef 文件夹关联到的字幕库记录
type SubShareRef struct {
	Key      string `json:"key"`
	RepoPath string `json:"repo_path"`
}

// AnimeFolder 代表一个待整理的番剧文件夹
type AnimeFolder struct {
	Path string `json:"path"`
	Name string `json:"name"`

	TitleJP string `json:"title_jp,omitempty"`
	TitleCN string `json:"title_cn,omitempty"` // 简体
	TitleTW string `json:"title_tw,omitempty"` // 繁体
	TitleEN string `json:"title_en,omitempty"`
	Type    string `json:"type,omitempty"`
	Year    *int   `json:"year,omitempty"`

	MetadataID    string  `json:"metadata_id,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	AnalyzedTitle string  `json:"analyzed_title,omitempty"`
	SelectedTitle string  `json:"selected_title,omitempty"`

	AvailableTitles []string `json:"available_titles,omitempty"`
	SuggestedName   string   `json:"suggested_name,omitempty"`

	State        FolderState        `json:"state"`
	Verification VerificationStatus `json:"verification"`
	// ProviderError 为 Provider 级失败类型 (no_key, rate_limited ...)，空表示无
	ProviderError string `json:"provider_error,omitempty"`
	IsIdentified  bool   `json:"is_identified"`
	Retried       bool   `json:"retried"`

	SubShare *SubShareRef `json:"subshare,omitempty"`
}

// NewAnimeFolder 创建未处理状态的文件夹
func NewAnimeFolder(path, name string) *AnimeFolder {
	return &AnimeFolder{
		Path:         path,
		Name:         name,
		State:        StateUnprocessed,
		Verification: VerificationUnverified,
	}
}

// HasTitles 是否有任何语言的标题
func (f *AnimeFolder) HasTitles() bool {
	return f.TitleJP != "" || f.TitleCN != "" || f.TitleTW != "" || f.TitleEN != ""
}

// ClearTitles 清空 Provider 写入的元数据
func (f *AnimeFolder) ClearTitles() {
	f.TitleJP, f.TitleCN, f.TitleTW, f.TitleEN = "", "", "", ""
	f.Type = ""
	f.Year = nil
	f.MetadataID = ""
	f.Confidence = 0
	f.AnalyzedTitle = ""
	f.SelectedTitle = ""
	f.AvailableTitles = nil
	f.SuggestedName = ""
}

// History status
const (
	HistorySuccess        = "Success"
	HistoryFailed         = "Failed"
	HistorySkipped        = "Skipped"
	HistoryRestoreSuccess = "RestoreSuccess"
	HistoryRestoreSkipped = "RestoreSkipped"
	HistoryRestoreFailed  = "RestoreFailed"
)

// RenameHistory 改名/还原记录
type RenameHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TimestampUTC time.Time `gorm:"index" json:"timestamp_utc"`
	OriginalPath string    `gorm:"index" json:"original_path"`
	NewPath      string    `gorm:"index" json:"new_path"`
	Status       string    `json:"status"`
	Message      string    `json:"message"`
}
