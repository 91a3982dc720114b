// Package subshare 提供 sub_share 字幕库 (db.xml) 的加载、索引与标题检索。
package subshare

import (
	"time"
)

// RepoRootPrefix 字幕仓库内的根目录
const RepoRootPrefix = "subs_list/"

// TitleMatch 字幕库中的一部作品
type TitleMatch struct {
	// Key = Normalize(TitleJp) + "_" + Type，用于结果去重
	Key       string     `json:"key"`
	TitleChs  string     `json:"title_chs"`
	TitleCht  string     `json:"title_cht"`
	TitleJp   string     `json:"title_jp"`
	TitleEn   string     `json:"title_en"`
	TitleRome string     `json:"title_rome"`
	Type      string     `json:"type,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
	RepoPath  string     `json:"repo_path"`
}

// Record db.xml 中一个 <subs> 元素的原始字段
type Record struct {
	Time      string
	NameChs   string
	NameCht   string
	NameJp    string
	NameEn    string
	NameRome  string
	Type      string
	Source    string
	SubName   string
	Extension string
	Providers string
	Desc      string
	Path      string
}

// set 按字段名赋值，未知字段忽略
func (r *Record) set(field, value string) {
	switch field {
	case "time":
		r.Time = value
	case "name_chs":
		r.NameChs = value
	case "name_cht":
		r.NameCht = value
	case "name_jp":
		r.NameJp = value
	case "name_en":
		r.NameEn = value
	case "name_rome":
		r.NameRome = value
	case "type":
		r.Type = value
	case "source":
		r.Source = value
	case "sub_name":
		r.SubName = value
	case "extension":
		r.Extension = value
	case "providers":
		r.Providers = value
	case "desc":
		r.Desc = value
	case "path":
		r.Path = value
	}
}

// Diagnostics 最近一次加载的诊断信息
type Diagnostics struct {
	DbPath           string    `json:"db_path"`
	RecordCount      int       `json:"record_count"`
	SubsElementCount int       `json:"subs_element_count"`
	ParsedCount      int       `json:"parsed_count"`
	FileSize         int64     `json:"file_size"`
	RawSubsTagCount  int       `json:"raw_subs_tag_count"`
	Fingerprint      string    `json:"fingerprint"`
	LastError        string    `json:"last_error"`
	LoadCount        int64     `json:"load_count"`
	LoadedAt         time.Time `json:"loaded_at,omitempty"`
}
