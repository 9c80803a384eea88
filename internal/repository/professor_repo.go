package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
)

// ProfessorRepository 教授数据访问接口
type ProfessorRepository interface {
	// Replace 在单个事务内整体替换一名教授及其评价
	Replace(ctx context.Context, institution string, professors []model.Professor) error
	GetByName(ctx context.Context, institution, name string) (*model.Professor, error)
	CountByName(ctx context.Context, institution, name string) (int64, error)
}

type professorRepo struct {
	db *gorm.DB
}

// NewProfessorRepo 创建 ProfessorRepository 实例
func NewProfessorRepo(db *gorm.DB) ProfessorRepository {
	return &professorRepo{db: db}
}

func (r *professorRepo) Replace(ctx context.Context, institution string, professors []model.Professor) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range professors {
			professors[i].Institution = institution

			// 同名教授的旧记录连同评价一并删除
			var oldIDs []uint
			if err := tx.Model(&model.Professor{}).
				Where("institution = ? AND name = ?", institution, professors[i].Name).
				Pluck("id", &oldIDs).Error; err != nil {
				return err
			}
			if len(oldIDs) > 0 {
				if err := tx.Where("professor_id IN ?", oldIDs).Delete(&model.Review{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", oldIDs).Delete(&model.Professor{}).Error; err != nil {
					return err
				}
			}
		}

		if len(professors) == 0 {
			return nil
		}
		return tx.Create(&professors).Error
	})
}

func (r *professorRepo) GetByName(ctx context.Context, institution, name string) (*model.Professor, error) {
	var prof model.Professor
	err := r.db.WithContext(ctx).
		Preload("Reviews").
		Where("institution = ? AND name = ?", institution, name).
		First(&prof).Error
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

func (r *professorRepo) CountByName(ctx context.Context, institution, name string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Professor{}).
		Where("institution = ? AND name = ?", institution, name).
		Count(&count).Error
	return count, err
}
