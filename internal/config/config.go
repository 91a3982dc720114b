package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	SubShare SubShareConfig `mapstructure:"subshare"`
	Provider ProviderConfig `mapstructure:"provider"`
	Lookup   LookupConfig   `mapstructure:"lookup"`
	Verify   VerifyConfig   `mapstructure:"verify"`
	Naming   NamingConfig   `mapstructure:"naming"`
	Scan     ScanConfig     `mapstructure:"scan"`
}

type ServerConfig struct {
	Host     string `mapstructure:"host"` // 默认只监听本机
	Port     int    `mapstructure:"port"`
	Mode     string `mapstructure:"mode"`      // debug or release
	APIToken string `mapstructure:"api_token"` // 为空则不校验
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SubShareConfig 字幕库 db.xml 的位置与来源
type SubShareConfig struct {
	DBPath          string        `mapstructure:"db_path"`
	PrimaryURL      string        `mapstructure:"primary_url"`
	BackupURL       string        `mapstructure:"backup_url"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	AutoUpdate      bool          `mapstructure:"auto_update"`
}

// ProviderConfig 元数据 Provider (LLM 或官方标题查询)
type ProviderConfig struct {
	Kind        string        `mapstructure:"kind"` // gemini, openai, official, mock
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Proxy       string        `mapstructure:"proxy"`
}

type LookupConfig struct {
	TMDBToken string `mapstructure:"tmdb_token"`
	Proxy     string `mapstructure:"proxy"`
}

type VerifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
}

type NamingConfig struct {
	Template string `mapstructure:"template"`
	Language string `mapstructure:"language"` // tw, cn, jp, en, default
}

type ScanConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

var AppConfig *Config

func LoadConfig(configPath string) error {
	v := viper.New()

	// 默认值
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8306)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.api_token", "")
	v.SetDefault("database.path", "data/organizer.db")
	v.SetDefault("log.level", "info")

	v.SetDefault("subshare.db_path", "data/sub_share/db.xml")
	v.SetDefault("subshare.primary_url", "https://svn.acgdev.com:505/!/#sub_share/view/head/trunk/Subtitles%20DataBase/Files/db.xml")
	v.SetDefault("subshare.backup_url", "https://raw.githubusercontent.com/foxofice/sub_share/master/Subtitles%20DataBase/Files/db.xml")
	v.SetDefault("subshare.refresh_interval", 6*time.Hour)
	v.SetDefault("subshare.auto_update", false)

	v.SetDefault("provider.kind", "gemini")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.model", "") // 为空时使用各 Provider 的默认模型
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.cooldown", 1200*time.Millisecond)
	v.SetDefault("provider.max_retries", 2)
	v.SetDefault("provider.backoff_base", 800*time.Millisecond)
	v.SetDefault("provider.timeout", 60*time.Second)
	v.SetDefault("provider.proxy", "")

	v.SetDefault("lookup.tmdb_token", "")
	v.SetDefault("lookup.proxy", "")

	v.SetDefault("verify.enabled", true)
	v.SetDefault("verify.base_url", "https://db.animedb.jp/index.php/searchdata/?word=")

	v.SetDefault("naming.template", "{Title} ({Year})")
	v.SetDefault("naming.language", "tw")

	v.SetDefault("scan.batch_size", 10)

	// 配置文件路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	// 环境变量替换 (使用 ANIME_ 前缀)
	// 比如 ANIME_SERVER_PORT=9090, ANIME_PROVIDER_API_KEY=xxx
	v.SetEnvPrefix("ANIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

var (
	validKinds     = []string{"gemini", "openai", "official", "mock"}
	validLanguages = []string{"tw", "cn", "jp", "en", "default"}
)

// Validate 检查枚举类字段
func (c *Config) Validate() error {
	if !contains(validKinds, strings.ToLower(c.Provider.Kind)) {
		return fmt.Errorf("invalid provider.kind %q (want one of %s)", c.Provider.Kind, strings.Join(validKinds, ", "))
	}
	if !contains(validLanguages, strings.ToLower(c.Naming.Language)) {
		return fmt.Errorf("invalid naming.language %q (want one of %s)", c.Naming.Language, strings.Join(validLanguages, ", "))
	}
	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("scan.batch_size must be positive, got %d", c.Scan.BatchSize)
	}
	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("provider.max_retries must not be negative, got %d", c.Provider.MaxRetries)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
