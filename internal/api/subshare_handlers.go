package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

var errCorpusUnavailable = errors.New("subshare corpus is not configured")

// === Sub Share ===

func (h *Handlers) SearchCorpusHandler(c *gin.Context) {
	if h.deps.Corpus == nil {
		abortError(c, http.StatusServiceUnavailable, errCorpusUnavailable)
		return
	}
	limit, err := queryInt(c, "limit", defaultSearchLimit)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	matches, err := h.deps.Corpus.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": matches, "count": len(matches)})
}

func (h *Handlers) BestMatchHandler(c *gin.Context) {
	if h.deps.Corpus == nil {
		abortError(c, http.StatusServiceUnavailable, errCorpusUnavailable)
		return
	}
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		abortError(c, http.StatusBadRequest, errors.New("title is required"))
		return
	}

	match, err := h.deps.Corpus.FindBestMatch(c.Request.Context(), title)
	if err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

func (h *Handlers) DiagnosticsHandler(c *gin.Context) {
	if h.deps.Corpus == nil {
		abortError(c, http.StatusServiceUnavailable, errCorpusUnavailable)
		return
	}
	diag, err := h.deps.Corpus.Diagnostics(c.Request.Context())
	if err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, diag)
}

func (h *Handlers) CorpusStatusHandler(c *gin.Context) {
	if h.deps.Store == nil {
		abortError(c, http.StatusServiceUnavailable, errCorpusUnavailable)
		return
	}
	c.JSON(http.StatusOK, h.deps.Store.Status())
}

// UpdateCorpusHandler 从远程下载 db.xml，失败返回 502 和结果详情
func (h *Handlers) UpdateCorpusHandler(c *gin.Context) {
	if h.deps.Store == nil {
		abortError(c, http.StatusServiceUnavailable, errCorpusUnavailable)
		return
	}
	res := h.deps.Store.UpdateFromRemote(c.Request.Context())
	if !res.Success {
		log.Warnf("API: corpus update failed: %s", res.Error)
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

type importRequest struct {
	Path string `json:"path" binding:"required"`
}

func (h *Handlers) ImportCorpusHandler(c *gin.Context) {
	if h.deps.Store == nil {
		abortError(c, http.StatusServiceUnavailable, errCorpusUnavailable)
		return
	}
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	src, err := h.importPath(req.Path)
	if err != nil {
		log.Warnf("API: import of %s rejected: %v", req.Path, err)
		abortError(c, http.StatusForbidden, err)
		return
	}
	res := h.deps.Store.ImportFromFile(c.Request.Context(), src)
	if !res.Success {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

var errImportOutside = errors.New("import source must be inside the db.xml directory")

// importPath 相对路径按 ImportDir 解析，结果必须位于 ImportDir 之内
func (h *Handlers) importPath(p string) (string, error) {
	if strings.TrimSpace(h.deps.ImportDir) == "" {
		return "", errors.New("import is disabled")
	}
	dir, err := filepath.Abs(h.deps.ImportDir)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	src := filepath.Clean(p)
	rel, err := filepath.Rel(dir, src)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errImportOutside
	}
	return src, nil
}
