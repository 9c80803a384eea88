package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/response"
)

// ProfessorHandler 教授评分查询 HTTP 处理器
type ProfessorHandler struct {
	repo *repository.Repository
}

// NewProfessorHandler 创建 ProfessorHandler
func NewProfessorHandler(repo *repository.Repository) *ProfessorHandler {
	return &ProfessorHandler{repo: repo}
}

// GetProfessor 查询教授评分与评价
// GET /api/v1/professors/:name?institution=
func (h *ProfessorHandler) GetProfessor(c *gin.Context) {
	name := c.Param("name")
	institution := c.Query("institution")
	if name == "" || institution == "" {
		response.BadRequest(c, 10001, "教授名与 institution 不能为空")
		return
	}

	prof, err := h.repo.Professor.GetByName(c.Request.Context(), institution, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, 10002, "教授不存在")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, prof)
}
