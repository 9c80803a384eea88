package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
)

// CourseRepository 课程数据访问接口
type CourseRepository interface {
	// ReplaceScope 在单个事务内用新抓取的数据整体替换一个作用域的课程
	ReplaceScope(ctx context.Context, institution, term, subject string, courses []model.Course) error
	ListByScope(ctx context.Context, institution, term, subject string) ([]model.Course, error)
	CountByScope(ctx context.Context, institution, term, subject string) (int64, error)
}

type courseRepo struct {
	db *gorm.DB
}

// NewCourseRepo 创建 CourseRepository 实例
func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

// scopeQuery 构造作用域过滤条件（subject 为空时不过滤学科）
func scopeQuery(q *gorm.DB, institution, term, subject string) *gorm.DB {
	q = q.Where("institution = ? AND term = ?", institution, term)
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}
	return q
}

func (r *courseRepo) ReplaceScope(ctx context.Context, institution, term, subject string, courses []model.Course) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先删旧数据（班次随外键级联删除）
		var oldIDs []uint
		if err := scopeQuery(tx.Model(&model.Course{}), institution, term, subject).
			Pluck("id", &oldIDs).Error; err != nil {
			return err
		}
		if len(oldIDs) > 0 {
			if err := tx.Where("course_id IN ?", oldIDs).Delete(&model.Section{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", oldIDs).Delete(&model.Course{}).Error; err != nil {
				return err
			}
		}

		if len(courses) == 0 {
			return nil
		}

		for i := range courses {
			courses[i].Institution = institution
			courses[i].Term = term
		}
		return tx.Create(&courses).Error
	})
}

func (r *courseRepo) ListByScope(ctx context.Context, institution, term, subject string) ([]model.Course, error) {
	var courses []model.Course
	err := scopeQuery(r.db.WithContext(ctx).Preload("Sections"), institution, term, subject).
		Order("subject, number").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepo) CountByScope(ctx context.Context, institution, term, subject string) (int64, error) {
	var count int64
	err := scopeQuery(r.db.WithContext(ctx).Model(&model.Course{}), institution, term, subject).
		Count(&count).Error
	return count, err
}
