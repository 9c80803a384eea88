package handler

import (
	"github.com/KBesada24/ScheduleFirst-AI-sub001/config"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Population *PopulationHandler
	Course     *CourseHandler
	Professor  *ProfessorHandler
	SyncRecord *SyncRecordHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service, repo *repository.Repository) *Handler {
	return &Handler{
		Population: NewPopulationHandler(svc.Population),
		Course:     NewCourseHandler(repo),
		Professor:  NewProfessorHandler(repo),
		SyncRecord: NewSyncRecordHandler(repo),
		Export:     NewExportHandler(svc.Export),
	}
}
