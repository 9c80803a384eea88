package model

// Course 一门课程（如 COSC 1436），归属于 (院校, 学期, 学科) 作用域
type Course struct {
	ID          uint   `gorm:"primaryKey"                                        json:"id"`
	Institution string `gorm:"type:varchar(128);not null;index:idx_course_scope" json:"institution"`
	Term        string `gorm:"type:varchar(64);not null;index:idx_course_scope"  json:"term"`
	Subject     string `gorm:"type:varchar(16);not null;index:idx_course_scope"  json:"subject"`
	Number      string `gorm:"type:varchar(16);not null"                         json:"number"`
	Title       string `gorm:"type:varchar(255)"                                 json:"title"`
	Credits     int    `gorm:"not null;default:0"                                json:"credits"`

	Sections []Section `gorm:"constraint:OnDelete:CASCADE" json:"sections"`
	BaseModel
}

// TableName 指定表名
func (Course) TableName() string {
	return "courses"
}

// Section 课程的一个班次（子项），含上课时间与席位信息
type Section struct {
	ID         uint   `gorm:"primaryKey"                         json:"id"`
	CourseID   uint   `gorm:"not null;index"                     json:"course_id"`
	CRN        string `gorm:"type:varchar(32);not null"          json:"crn"`
	Instructor string `gorm:"type:varchar(128)"                  json:"instructor"`
	Days       string `gorm:"type:varchar(16)"                   json:"days"` // 如 "MWF"
	StartTime  string `gorm:"type:varchar(8)"                    json:"start_time"`
	EndTime    string `gorm:"type:varchar(8)"                    json:"end_time"`
	Location   string `gorm:"type:varchar(128)"                  json:"location"`
	Seats      int    `gorm:"not null;default:0"                 json:"seats"`
	Waitlist   int    `gorm:"not null;default:0"                 json:"waitlist"`
	BaseModel
}

// TableName 指定表名
func (Section) TableName() string {
	return "sections"
}
