package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	SyncRecord SyncRecordRepository
	Course     CourseRepository
	Professor  ProfessorRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		SyncRecord: NewSyncRecordRepo(db),
		Course:     NewCourseRepo(db),
		Professor:  NewProfessorRepo(db),
	}
}
