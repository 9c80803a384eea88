package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/response"
)

// SyncRecordHandler 同步记录运维 HTTP 处理器
type SyncRecordHandler struct {
	repo *repository.Repository
}

// NewSyncRecordHandler 创建 SyncRecordHandler
func NewSyncRecordHandler(repo *repository.Repository) *SyncRecordHandler {
	return &SyncRecordHandler{repo: repo}
}

// ListSyncRecords 查询同步记录
// GET /api/v1/sync-records?entity_type=
func (h *SyncRecordHandler) ListSyncRecords(c *gin.Context) {
	entityType := model.EntityType(c.Query("entity_type"))
	if entityType != "" && !entityType.Valid() {
		response.BadRequest(c, 10001, "非法的实体类型")
		return
	}

	records, err := h.repo.SyncRecord.List(c.Request.Context(), entityType)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": records})
}

// PurgeSyncRecords 管理员清理同步记录
// DELETE /api/v1/sync-records?entity_type=
func (h *SyncRecordHandler) PurgeSyncRecords(c *gin.Context) {
	entityType := model.EntityType(c.Query("entity_type"))
	if entityType != "" && !entityType.Valid() {
		response.BadRequest(c, 10001, "非法的实体类型")
		return
	}

	purged, err := h.repo.SyncRecord.Purge(c.Request.Context(), entityType)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"purged": purged})
}
