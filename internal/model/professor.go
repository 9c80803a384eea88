package model

// Professor 教授评分记录（来源于外部评分站点的抓取）
type Professor struct {
	ID             uint    `gorm:"primaryKey"                       json:"id"`
	Name           string  `gorm:"type:varchar(128);not null;index" json:"name"`
	Institution    string  `gorm:"type:varchar(128);not null;index" json:"institution"`
	Department     string  `gorm:"type:varchar(128)"                json:"department"`
	Rating         float64 `gorm:"not null;default:0"               json:"rating"`
	Difficulty     float64 `gorm:"not null;default:0"               json:"difficulty"`
	WouldTakeAgain float64 `gorm:"not null;default:0"               json:"would_take_again"` // 百分比 0-100
	RatingCount    int     `gorm:"not null;default:0"               json:"rating_count"`

	Reviews []Review `gorm:"constraint:OnDelete:CASCADE" json:"reviews"`
	BaseModel
}

// TableName 指定表名
func (Professor) TableName() string {
	return "professors"
}

// Review 教授的一条学生评价（子项）
type Review struct {
	ID          uint    `gorm:"primaryKey"                json:"id"`
	ProfessorID uint    `gorm:"not null;index"            json:"professor_id"`
	CourseCode  string  `gorm:"type:varchar(32)"          json:"course_code"`
	Rating      float64 `gorm:"not null;default:0"        json:"rating"`
	Difficulty  float64 `gorm:"not null;default:0"        json:"difficulty"`
	Comment     string  `gorm:"type:text"                 json:"comment"`
	Date        string  `gorm:"type:varchar(32)"          json:"date"`
	BaseModel
}

// TableName 指定表名
func (Review) TableName() string {
	return "reviews"
}
