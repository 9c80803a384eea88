package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/dto"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/service"
	apperrors "github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/errors"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/response"
)

// PopulationHandler 数据填充模块 HTTP 处理器
type PopulationHandler struct {
	populationSvc service.PopulationService
}

// NewPopulationHandler 创建 PopulationHandler
func NewPopulationHandler(populationSvc service.PopulationService) *PopulationHandler {
	return &PopulationHandler{populationSvc: populationSvc}
}

// EnsureData 确保作用域数据可用（必要时触发抓取）
// POST /api/v1/population/ensure
//
// 两条数据源均失败时同样返回 200，data_quality=degraded 并携带警告——
// 调用方永远拿到结构化结果而非不透明的 500
func (h *PopulationHandler) EnsureData(c *gin.Context) {
	var req dto.EnsureDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	scope := req.Scope()
	if err := scope.Validate(); err != nil {
		// 作用域本身非法属于请求参数错误，与数据源失败（仍返回 200）区分开
		if errors.Is(err, apperrors.ErrInvalidScope) {
			response.BadRequest(c, 10001, err.Error())
			return
		}
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result := h.populationSvc.EnsureData(c.Request.Context(), scope)
	response.OK(c, result)
}

// Stats 填充层运行统计（缓存命中率、熔断器状态）
// GET /api/v1/population/stats
func (h *PopulationHandler) Stats(c *gin.Context) {
	response.OK(c, h.populationSvc.Stats())
}
