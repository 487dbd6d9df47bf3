package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// AdminHandler は運用系エンドポイントのハンドラー
type AdminHandler struct {
	scheduler *scheduler.Scheduler
	startedAt time.Time
}

func NewAdminHandler(sched *scheduler.Scheduler) *AdminHandler {
	return &AdminHandler{
		scheduler: sched,
		startedAt: time.Now(),
	}
}

// Health はヘルスチェック
// GET /health
func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// RunCleanup は保持ポリシーのクリーンアップを即時実行する
// POST /api/v1/admin/cleanup/run
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "maintenance is not configured"})
		return
	}

	result, err := h.scheduler.RunNow()
	if err != nil {
		log.Printf("AdminHandler: cleanup run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
