package api

import (
	"github.com/gin-gonic/gin"
)

// InitRoutes 注册 /healthz 和 /api 下的全部接口
func InitRoutes(r *gin.Engine, h *Handlers) {
	r.GET("/healthz", h.HealthHandler)

	apiGroup := r.Group("/api")
	if h.deps.APIToken != "" {
		apiGroup.Use(TokenAuthMiddleware(h.deps.APIToken))
	}
	{
		// Sub Share
		apiGroup.GET("/subshare/search", h.SearchCorpusHandler)
		apiGroup.GET("/subshare/best", h.BestMatchHandler)
		apiGroup.GET("/subshare/diagnostics", h.DiagnosticsHandler)
		apiGroup.GET("/subshare/status", h.CorpusStatusHandler)
		apiGroup.POST("/subshare/update", h.UpdateCorpusHandler)
		apiGroup.POST("/subshare/import", h.ImportCorpusHandler)

		// Organize
		apiGroup.POST("/scan", h.ScanHandler)
		apiGroup.POST("/rename", h.RenameHandler)
		apiGroup.GET("/history", h.HistoryHandler)
		apiGroup.POST("/history/:id/restore", h.RestoreHandler)
		apiGroup.POST("/naming/preview", h.PreviewNameHandler)

		apiGroup.GET("/models", h.ModelsHandler)
		apiGroup.GET("/events", h.SSEHandler)
	}
}
