package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animeFolderOrganizer/internal/event"
	"github.com/pokerjest/animeFolderOrganizer/internal/metadata"
	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"github.com/pokerjest/animeFolderOrganizer/internal/renamer"
	"github.com/pokerjest/animeFolderOrganizer/internal/service"
	"github.com/pokerjest/animeFolderOrganizer/internal/subshare"
)

// CorpusSearcher subshare.Service
type CorpusSearcher interface {
	Search(ctx context.Context, keyword string, limit int) ([]subshare.TitleMatch, error)
	FindBestMatch(ctx context.Context, title string) (*subshare.TitleMatch, error)
	Diagnostics(ctx context.Context) (subshare.Diagnostics, error)
}

// CorpusStore subshare.Store
type CorpusStore interface {
	Status() subshare.DBStatus
	UpdateFromRemote(ctx context.Context) subshare.UpdateResult
	ImportFromFile(ctx context.Context, src string) subshare.UpdateResult
}

type Scanner interface {
	Scan(ctx context.Context, root string) (*service.ScanResult, error)
}

type Renamer interface {
	Apply(ctx context.Context, folders []*model.AnimeFolder, template string) (service.RenameSummary, error)
	Restore(ctx context.Context, id uint) (service.RenameOutcome, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, n int) ([]model.RenameHistory, error)
}

// Deps 路由用到的服务，nil 的服务对应的接口返回 503
type Deps struct {
	Corpus   CorpusSearcher
	Store    CorpusStore
	Scanner  Scanner
	Renamer  Renamer
	History  HistoryReader
	Catalog  metadata.ModelCatalog
	Bus      event.Bus
	Template string
	APIToken string

	// ImportDir 允许导入 db.xml 的目录，为空时禁用导入接口
	ImportDir string
}

// Handlers 持有依赖，每个接口一个方法
type Handlers struct {
	deps  Deps
	scans *scanCache
}

func NewHandlers(deps Deps) *Handlers {
	if deps.Template == "" {
		deps.Template = renamer.DefaultTemplate
	}
	deps.Bus = event.Or(deps.Bus)
	return &Handlers{deps: deps, scans: newScanCache()}
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// statusFor 取消和超时不算服务端错误
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// queryInt 缺省返回 def，非数字返回错误
func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}

func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ModelsHandler 列出当前 Provider 可用的模型
func (h *Handlers) ModelsHandler(c *gin.Context) {
	if h.deps.Catalog == nil {
		c.JSON(http.StatusOK, gin.H{"models": []string{}})
		return
	}
	models, err := h.deps.Catalog.ListModels(c.Request.Context())
	if err != nil {
		status := http.StatusBadGateway
		if kind, ok := metadata.KindOf(err); ok {
			if kind == metadata.KindNoKey {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": kind.String()})
			return
		}
		abortError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}
