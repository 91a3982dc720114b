// Package app 把配置变成一组已经连好的服务，cmd/server 和 cmd/organizer 共用。
package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pokerjest/animeFolderOrganizer/internal/anilist"
	"github.com/pokerjest/animeFolderOrganizer/internal/api"
	"github.com/pokerjest/animeFolderOrganizer/internal/bangumi"
	"github.com/pokerjest/animeFolderOrganizer/internal/config"
	"github.com/pokerjest/animeFolderOrganizer/internal/event"
	"github.com/pokerjest/animeFolderOrganizer/internal/lookup"
	"github.com/pokerjest/animeFolderOrganizer/internal/metadata"
	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"github.com/pokerjest/animeFolderOrganizer/internal/renamer"
	"github.com/pokerjest/animeFolderOrganizer/internal/scheduler"
	"github.com/pokerjest/animeFolderOrganizer/internal/service"
	"github.com/pokerjest/animeFolderOrganizer/internal/subshare"
	"github.com/pokerjest/animeFolderOrganizer/internal/textconv"
	"github.com/pokerjest/animeFolderOrganizer/internal/tmdb"
	"github.com/pokerjest/animeFolderOrganizer/internal/verify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Bus    event.Bus

	Corpus    *subshare.Service
	Store     *subshare.Store
	Lookup    *lookup.Service
	Provider  metadata.Provider
	Catalog   metadata.ModelCatalog
	Verifier  verify.Verifier
	History   *service.HistoryStore
	Scanner   *service.ScanService
	Renamer   *service.RenameService
	Scheduler *scheduler.Manager
}

// New 按配置构造全部服务。conn 为已经迁移过的数据库连接。
func New(cfg *config.Config, fs afero.Fs, conn *gorm.DB, bus event.Bus) (*App, error) {
	bus = event.Or(bus)
	conv := textconv.Default()

	corpus := subshare.NewService(fs, cfg.SubShare.DBPath, conv)
	store := subshare.NewStore(fs, cfg.SubShare.DBPath, cfg.SubShare.PrimaryURL, cfg.SubShare.BackupURL)
	store.SetProxy(cfg.Lookup.Proxy)
	store.OnReplaced = func() {
		bus.Publish(event.EventCorpusUpdated, cfg.SubShare.DBPath)
	}

	lookupSvc := newLookup(cfg.Lookup, conv)

	provider, err := metadata.NewFromConfig(cfg.Provider, metadata.Deps{Lookup: lookupSvc})
	if err != nil {
		return nil, fmt.Errorf("metadata provider: %w", err)
	}

	var verifier verify.Verifier = verify.TrustVerifier{}
	if cfg.Verify.Enabled {
		v := verify.NewAnimeDBVerifier(cfg.Verify.BaseURL)
		v.SetProxy(cfg.Lookup.Proxy)
		verifier = v
	}

	history := service.NewHistoryStore(conn)
	scanner := service.NewScanService(service.ScanDeps{
		Fs:        fs,
		Provider:  provider,
		Verifier:  verifier,
		Matcher:   corpus,
		History:   history,
		Converter: conv,
		Bus:       bus,
	}, service.ScanOptions{
		BatchSize: cfg.Scan.BatchSize,
		Template:  cfg.Naming.Template,
		Language:  model.NamingLanguage(strings.ToLower(cfg.Naming.Language)),
	})

	var updater scheduler.CorpusUpdater
	if cfg.SubShare.AutoUpdate {
		updater = store
	}

	log.Infof("App: provider %s, verification enabled=%t, corpus at %s",
		provider.Name(), cfg.Verify.Enabled, cfg.SubShare.DBPath)

	return &App{
		Config:    cfg,
		Bus:       bus,
		Corpus:    corpus,
		Store:     store,
		Lookup:    lookupSvc,
		Provider:  provider,
		Catalog:   metadata.NewCatalogFromConfig(cfg.Provider),
		Verifier:  verifier,
		History:   history,
		Scanner:   scanner,
		Renamer:   service.NewRenameService(history, renamer.NewMover(fs), bus),
		Scheduler: scheduler.NewManager(corpus, updater, cfg.SubShare.RefreshInterval, nil),
	}, nil
}

// newLookup 未配置 TMDB token 时只用 Bangumi 和 AniList
func newLookup(cfg config.LookupConfig, conv textconv.Converter) *lookup.Service {
	var tmdbClient *tmdb.Client
	if strings.TrimSpace(cfg.TMDBToken) != "" {
		tmdbClient = tmdb.NewClient(cfg.TMDBToken, cfg.Proxy)
	}
	bgm := bangumi.NewClient()
	bgm.SetProxy(cfg.Proxy)
	return lookup.NewService(tmdbClient, bgm, anilist.NewClient(cfg.Proxy), conv)
}

// Handlers HTTP 层依赖
func (a *App) Handlers() *api.Handlers {
	return api.NewHandlers(api.Deps{
		Corpus:    a.Corpus,
		Store:     a.Store,
		Scanner:   a.Scanner,
		Renamer:   a.Renamer,
		History:   a.History,
		Catalog:   a.Catalog,
		Bus:       a.Bus,
		Template:  a.Scanner.Options().Template,
		APIToken:  a.Config.Server.APIToken,
		ImportDir: filepath.Dir(a.Config.SubShare.DBPath),
	})
}

// Close 停止后台任务并释放 Provider
func (a *App) Close() {
	a.Scheduler.Stop()
	metadata.Close(a.Provider)
}
