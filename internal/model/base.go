package model

import "time"

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// EntityType 可摄取数据的实体类型
type EntityType string

const (
	// EntityCourseSections 某学期/院校的课程与班次数据
	EntityCourseSections EntityType = "course-sections"
	// EntityProfessor 教授评分数据
	EntityProfessor EntityType = "professor"
	// EntityReviews 教授评价数据
	EntityReviews EntityType = "reviews"
)

// Valid 校验实体类型是否合法
func (e EntityType) Valid() bool {
	switch e {
	case EntityCourseSections, EntityProfessor, EntityReviews:
		return true
	}
	return false
}
