package dto

import (
	"fmt"
	"strings"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	apperrors "github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/errors"
)

// ── 作用域 ──

// Scope 一次摄取的数据作用域
// course-sections: (院校, 学期[, 学科])；professor/reviews: (院校, 教授名)
type Scope struct {
	EntityType  model.EntityType `json:"entity_type"`
	Institution string           `json:"institution"`
	Term        string           `json:"term,omitempty"`
	Subject     string           `json:"subject,omitempty"`
	Professor   string           `json:"professor,omitempty"`
}

// Key 作用域的规范化键，用于缓存键、锁表键与 SyncRecord.ScopeKey
func (s Scope) Key() string {
	parts := []string{s.Institution}
	if s.Term != "" {
		parts = append(parts, s.Term)
	}
	if s.Subject != "" {
		parts = append(parts, s.Subject)
	}
	if s.Professor != "" {
		parts = append(parts, s.Professor)
	}
	return strings.ToLower(strings.Join(parts, ":"))
}

// Validate 校验作用域完整性
func (s Scope) Validate() error {
	if !s.EntityType.Valid() {
		return fmt.Errorf("%w: 非法的实体类型 %q", apperrors.ErrInvalidScope, s.EntityType)
	}
	if s.Institution == "" {
		return fmt.Errorf("%w: 缺少院校", apperrors.ErrInvalidScope)
	}
	switch s.EntityType {
	case model.EntityCourseSections:
		if s.Term == "" {
			return fmt.Errorf("%w: 课程数据缺少学期", apperrors.ErrInvalidScope)
		}
	case model.EntityProfessor, model.EntityReviews:
		if s.Professor == "" {
			return fmt.Errorf("%w: 教授数据缺少教授名", apperrors.ErrInvalidScope)
		}
	}
	return nil
}

// ParseScopeKey 将 SyncRecord.ScopeKey 还原为作用域（供后台刷新使用）
// 键格式见 Scope.Key：course-sections 为 院校:学期[:学科]，教授类为 院校:教授名
func ParseScopeKey(entityType model.EntityType, key string) (Scope, error) {
	parts := strings.Split(key, ":")
	scope := Scope{EntityType: entityType}

	switch entityType {
	case model.EntityCourseSections:
		switch len(parts) {
		case 2:
			scope.Institution, scope.Term = parts[0], parts[1]
		case 3:
			scope.Institution, scope.Term, scope.Subject = parts[0], parts[1], parts[2]
		default:
			return Scope{}, fmt.Errorf("%w: 无法解析课程作用域键 %q", apperrors.ErrInvalidScope, key)
		}
	case model.EntityProfessor, model.EntityReviews:
		if len(parts) != 2 {
			return Scope{}, fmt.Errorf("%w: 无法解析教授作用域键 %q", apperrors.ErrInvalidScope, key)
		}
		scope.Institution, scope.Professor = parts[0], parts[1]
	default:
		return Scope{}, fmt.Errorf("%w: 非法的实体类型 %q", apperrors.ErrInvalidScope, entityType)
	}

	return scope, scope.Validate()
}

// ── 摄取结果信封 ──

// IngestSource 摄取结果的数据来源
type IngestSource string

const (
	// SourcePrimary 仅主连接器
	SourcePrimary IngestSource = "primary"
	// SourceFallback 仅备用连接器
	SourceFallback IngestSource = "fallback"
	// SourcePrimaryFallback 主连接器结果不可用，由备用连接器兜底
	SourcePrimaryFallback IngestSource = "primary+fallback"
	// SourceNone 两条路径均失败
	SourceNone IngestSource = "none"
)

// QualitySignals 质量信号：项数、子项数、零子项的项数
type QualitySignals struct {
	Items      int `json:"items"`
	SubItems   int `json:"sub_items"`
	EmptyItems int `json:"empty_items"`
}

// ScrapedSection 连接器归一化后的班次
type ScrapedSection struct {
	CRN        string `json:"crn"`
	Instructor string `json:"instructor"`
	Days       string `json:"days"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Location   string `json:"location"`
	Seats      int    `json:"seats"`
	Waitlist   int    `json:"waitlist"`
}

// ScrapedCourse 连接器归一化后的课程（含班次子项）
type ScrapedCourse struct {
	Subject  string           `json:"subject"`
	Number   string           `json:"number"`
	Title    string           `json:"title"`
	Credits  int              `json:"credits"`
	Sections []ScrapedSection `json:"sections"`
}

// ScrapedReview 连接器归一化后的教授评价
type ScrapedReview struct {
	CourseCode string  `json:"course_code"`
	Rating     float64 `json:"rating"`
	Difficulty float64 `json:"difficulty"`
	Comment    string  `json:"comment"`
	Date       string  `json:"date"`
}

// ScrapedProfessor 连接器归一化后的教授（含评价子项）
type ScrapedProfessor struct {
	Name           string          `json:"name"`
	Department     string          `json:"department"`
	Rating         float64         `json:"rating"`
	Difficulty     float64         `json:"difficulty"`
	WouldTakeAgain float64         `json:"would_take_again"`
	RatingCount    int             `json:"rating_count"`
	Reviews        []ScrapedReview `json:"reviews"`
}

// IngestionResult 连接器与编排器统一返回的结果信封
//
// 不变式：
//   - Success=false 时 Courses/Professors 为空且 Error 非空
//   - Warnings 只承载"降级但可用"的信号，绝不承载失败本身
type IngestionResult struct {
	Success    bool               `json:"success"`
	Source     IngestSource       `json:"source"`
	Courses    []ScrapedCourse    `json:"courses,omitempty"`
	Professors []ScrapedProfessor `json:"professors,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
	Error      string             `json:"error,omitempty"`
	Signals    QualitySignals     `json:"signals"`
}

// ComputeSignals 根据已填充的项重新计算质量信号
func (r *IngestionResult) ComputeSignals() {
	sig := QualitySignals{}
	for _, c := range r.Courses {
		sig.Items++
		sig.SubItems += len(c.Sections)
		if len(c.Sections) == 0 {
			sig.EmptyItems++
		}
	}
	for _, p := range r.Professors {
		sig.Items++
		sig.SubItems += len(p.Reviews)
		if len(p.Reviews) == 0 {
			sig.EmptyItems++
		}
	}
	r.Signals = sig
}

// FailedResult 构造失败信封（满足 Success=false 的不变式）
func FailedResult(source IngestSource, errMsg string) IngestionResult {
	return IngestionResult{
		Success: false,
		Source:  source,
		Error:   errMsg,
	}
}
