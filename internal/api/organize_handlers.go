package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animeFolderOrganizer/internal/model"
	"github.com/pokerjest/animeFolderOrganizer/internal/renamer"
	"github.com/pokerjest/animeFolderOrganizer/internal/service"
	log "github.com/sirupsen/logrus"
)

const defaultHistoryLimit = 200

// === Scan ===

type scanRequest struct {
	Root string `json:"root" binding:"required"`
}

type scanResponse struct {
	*service.ScanResult
	ScanID string `json:"scan_id"`
	Error  string `json:"error,omitempty"`
}

// ScanHandler 同步执行扫描，进度通过 /api/events 推送。
// 中途取消时返回已经处理完的部分。
func (h *Handlers) ScanHandler(c *gin.Context) {
	if h.deps.Scanner == nil {
		abortError(c, http.StatusServiceUnavailable, errors.New("scanner is not configured"))
		return
	}
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}

	res, err := h.deps.Scanner.Scan(c.Request.Context(), strings.TrimSpace(req.Root))
	if res == nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	scanID := h.scans.put(res)
	if err != nil {
		log.Warnf("API: scan of %s stopped: %v", req.Root, err)
		c.JSON(statusFor(err), scanResponse{ScanResult: res, ScanID: scanID, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, scanResponse{ScanResult: res, ScanID: scanID})
}

// === Rename ===

// renameSelection 只带路径和用户选的标题，其余字段取自扫描结果
type renameSelection struct {
	Path          string `json:"path" binding:"required"`
	SelectedTitle string `json:"selected_title"`
}

type renameRequest struct {
	ScanID   string            `json:"scan_id" binding:"required"`
	Folders  []renameSelection `json:"folders" binding:"required,dive"`
	Template string            `json:"template"`
}

var errUnknownScan = errors.New("unknown or expired scan id")

func (h *Handlers) RenameHandler(c *gin.Context) {
	if h.deps.Renamer == nil {
		abortError(c, http.StatusServiceUnavailable, errors.New("renamer is not configured"))
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	folders := make([]*model.AnimeFolder, 0, len(req.Folders))
	oldPaths := make([]string, 0, len(req.Folders))
	for _, sel := range req.Folders {
		f, known, ok := h.scans.folder(req.ScanID, sel.Path)
		if !known {
			abortError(c, http.StatusNotFound, errUnknownScan)
			return
		}
		if !ok {
			log.Warnf("API: rename rejected, %s is not part of scan %s", sel.Path, req.ScanID)
			abortError(c, http.StatusForbidden, fmt.Errorf("folder %s is not part of scan %s", sel.Path, req.ScanID))
			return
		}
		if t := strings.TrimSpace(sel.SelectedTitle); t != "" {
			f.SelectedTitle = t
		}
		folders = append(folders, f)
		oldPaths = append(oldPaths, f.Path)
	}

	template := strings.TrimSpace(req.Template)
	if template == "" {
		template = h.deps.Template
	}

	sum, err := h.deps.Renamer.Apply(c.Request.Context(), folders, template)
	for i, f := range folders {
		if f.Path != oldPaths[i] {
			h.scans.update(req.ScanID, oldPaths[i], f)
		}
	}
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "summary": sum})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// === History ===

func (h *Handlers) HistoryHandler(c *gin.Context) {
	if h.deps.History == nil {
		abortError(c, http.StatusServiceUnavailable, errors.New("history is not configured"))
		return
	}
	limit, err := queryInt(c, "limit", defaultHistoryLimit)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	items, err := h.deps.History.Recent(c.Request.Context(), limit)
	if err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handlers) RestoreHandler(c *gin.Context) {
	if h.deps.Renamer == nil {
		abortError(c, http.StatusServiceUnavailable, errors.New("renamer is not configured"))
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		abortError(c, http.StatusBadRequest, errors.New("invalid history id"))
		return
	}

	out, err := h.deps.Renamer.Restore(c.Request.Context(), uint(id))
	if errors.Is(err, service.ErrHistoryNotFound) {
		abortError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		abortError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// === Naming ===

type previewRequest struct {
	Template string         `json:"template"`
	Fields   renamer.Fields `json:"fields"`
}

// PreviewNameHandler 渲染模板，并告诉前端生成的名字是否会被识别为已整理
func (h *Handlers) PreviewNameHandler(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	template := strings.TrimSpace(req.Template)
	if template == "" {
		template = h.deps.Template
	}

	name := renamer.Render(template, req.Fields)
	c.JSON(http.StatusOK, gin.H{
		"template":  template,
		"name":      name,
		"organized": renamer.MatchesTemplate(template, name),
	})
}
