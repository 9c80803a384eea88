package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/config"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/api/handler"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/api/middleware"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil（限流中间件降级放行）
func Setup(cfg *config.Config, h *handler.Handler, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20)) // 1MB

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 数据填充模块（触发外部抓取，需限流）
		population := v1.Group("/population")
		{
			population.POST("/ensure", middleware.RateLimit(rdb, 30, time.Minute), h.Population.EnsureData)
			population.GET("/stats", h.Population.Stats)
		}

		// 课程与教授查询（纯读库）
		v1.GET("/courses", h.Course.ListCourses)
		v1.GET("/professors/:name", h.Professor.GetProfessor)

		// 同步记录运维
		syncRecords := v1.Group("/sync-records")
		{
			syncRecords.GET("", h.SyncRecord.ListSyncRecords)
			syncRecords.DELETE("", h.SyncRecord.PurgeSyncRecords)
		}

		// 导出模块
		export := v1.Group("/export")
		{
			export.GET("/courses.xlsx", h.Export.ExportCoursesXLSX)
			export.GET("/courses.ics", h.Export.ExportCoursesICS)
		}
	}

	return r
}
