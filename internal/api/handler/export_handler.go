package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/service"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportCoursesXLSX 导出课程表为 Excel
// GET /api/v1/export/courses.xlsx?institution=&term=&subject=
func (h *ExportHandler) ExportCoursesXLSX(c *gin.Context) {
	institution := c.Query("institution")
	term := c.Query("term")
	if institution == "" || term == "" {
		response.BadRequest(c, 10001, "institution 与 term 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportCoursesXLSX(c.Request.Context(), institution, term, c.Query("subject"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ExportCoursesICS 导出课程表为 iCalendar
// GET /api/v1/export/courses.ics?institution=&term=&subject=
func (h *ExportHandler) ExportCoursesICS(c *gin.Context) {
	institution := c.Query("institution")
	term := c.Query("term")
	if institution == "" || term == "" {
		response.BadRequest(c, 10001, "institution 与 term 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportCoursesICS(c.Request.Context(), institution, term, c.Query("subject"))
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/calendar", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoCourses):
		response.NotFound(c, 10002, err.Error())
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
