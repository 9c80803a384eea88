package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/response"
)

// CourseHandler 课程查询 HTTP 处理器
// 填充完成后调用方直接读库，不再经过填充层
type CourseHandler struct {
	repo *repository.Repository
}

// NewCourseHandler 创建 CourseHandler
func NewCourseHandler(repo *repository.Repository) *CourseHandler {
	return &CourseHandler{repo: repo}
}

// ListCourses 查询一个作用域下的课程与班次
// GET /api/v1/courses?institution=&term=&subject=
func (h *CourseHandler) ListCourses(c *gin.Context) {
	institution := c.Query("institution")
	term := c.Query("term")
	if institution == "" || term == "" {
		response.BadRequest(c, 10001, "institution 与 term 不能为空")
		return
	}

	courses, err := h.repo.Course.ListByScope(c.Request.Context(), institution, term, c.Query("subject"))
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": courses})
}
