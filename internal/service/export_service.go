package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoCourses    = errors.New("该作用域暂无课程数据")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - Excel 导出按学科分 Sheet，每行一个班次
//   - ICS 导出将班次的上课时间生成为每周重复事件，供日历应用订阅
//   - 均以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response
type ExportService interface {
	// ExportCoursesXLSX 导出一个作用域的课程与班次为 Excel
	ExportCoursesXLSX(ctx context.Context, institution, term, subject string) (*bytes.Buffer, string, error)
	// ExportCoursesICS 导出一个作用域的班次上课时间为 iCalendar
	ExportCoursesICS(ctx context.Context, institution, term, subject string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ────────────────────── ExportCoursesXLSX ──────────────────────

func (s *exportService) ExportCoursesXLSX(ctx context.Context, institution, term, subject string) (*bytes.Buffer, string, error) {
	courses, err := s.loadCourses(ctx, institution, term, subject)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	header := []interface{}{"学科", "课程号", "课程名", "学分", "CRN", "教师", "上课日", "开始", "结束", "地点", "余位", "候补"}

	// 按学科分 Sheet
	sheets := make(map[string]int) // subject → 下一行号
	for _, course := range courses {
		sheet := course.Subject
		if sheet == "" {
			sheet = "Sheet1"
		}
		if _, ok := sheets[sheet]; !ok {
			idx, err := f.NewSheet(sheet)
			if err != nil {
				s.logger.Error("创建 Sheet 失败", zap.String("sheet", sheet), zap.Error(err))
				return nil, "", ErrExportGenerateFail
			}
			_ = idx
			cell, _ := excelize.CoordinatesToCellName(1, 1)
			if err := f.SetSheetRow(sheet, cell, &header); err != nil {
				return nil, "", ErrExportGenerateFail
			}
			sheets[sheet] = 2
		}

		if len(course.Sections) == 0 {
			row := []interface{}{course.Subject, course.Number, course.Title, course.Credits, "", "", "", "", "", "", "", ""}
			s.writeRow(f, sheet, sheets[sheet], row)
			sheets[sheet]++
			continue
		}

		for _, sec := range course.Sections {
			row := []interface{}{
				course.Subject, course.Number, course.Title, course.Credits,
				sec.CRN, sec.Instructor, sec.Days, sec.StartTime, sec.EndTime,
				sec.Location, sec.Seats, sec.Waitlist,
			}
			s.writeRow(f, sheet, sheets[sheet], row)
			sheets[sheet]++
		}
	}

	// 删除默认 Sheet（若未被使用）
	if _, used := sheets["Sheet1"]; !used {
		_ = f.DeleteSheet("Sheet1")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.logger.Error("写出 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("courses_%s_%s.xlsx", institution, term)
	return buf, filename, nil
}

// writeRow 写一行数据（错误只记日志，导出尽量继续）
func (s *exportService) writeRow(f *excelize.File, sheet string, rowNum int, row []interface{}) {
	cell, _ := excelize.CoordinatesToCellName(1, rowNum)
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		s.logger.Warn("写入 Excel 行失败", zap.String("sheet", sheet), zap.Int("row", rowNum), zap.Error(err))
	}
}

// ────────────────────── ExportCoursesICS ──────────────────────

// dayLetters 上课日缩写 → time.Weekday
// 美式课表惯例：T=周二，R=周四
var dayLetters = map[byte]time.Weekday{
	'M': time.Monday,
	'T': time.Tuesday,
	'W': time.Wednesday,
	'R': time.Thursday,
	'F': time.Friday,
	'S': time.Saturday,
	'U': time.Sunday,
}

func (s *exportService) ExportCoursesICS(ctx context.Context, institution, term, subject string) (*bytes.Buffer, string, error) {
	courses, err := s.loadCourses(ctx, institution, term, subject)
	if err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//ScheduleFirst//Course Export//EN")

	now := time.Now()
	for _, course := range courses {
		for _, sec := range course.Sections {
			start, errS := time.Parse("15:04", sec.StartTime)
			end, errE := time.Parse("15:04", sec.EndTime)
			if errS != nil || errE != nil || sec.Days == "" {
				// 缺少可用的时间信息，跳过该班次
				continue
			}

			for i := 0; i < len(sec.Days); i++ {
				weekday, ok := dayLetters[sec.Days[i]]
				if !ok {
					continue
				}

				event := cal.AddEvent(uuid.New().String())
				event.SetCreatedTime(now)
				event.SetDtStampTime(now)
				event.SetSummary(fmt.Sprintf("%s %s - %s", course.Subject, course.Number, course.Title))
				if sec.Location != "" {
					event.SetLocation(sec.Location)
				}
				if sec.Instructor != "" {
					event.SetDescription(fmt.Sprintf("CRN %s · %s", sec.CRN, sec.Instructor))
				}

				// 以下一个对应星期几为首次发生时间，按周重复
				first := nextWeekday(now, weekday)
				event.SetStartAt(time.Date(first.Year(), first.Month(), first.Day(), start.Hour(), start.Minute(), 0, 0, time.Local))
				event.SetEndAt(time.Date(first.Year(), first.Month(), first.Day(), end.Hour(), end.Minute(), 0, 0, time.Local))
				event.AddRrule("FREQ=WEEKLY")
			}
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("courses_%s_%s.ics", institution, term)
	return buf, filename, nil
}

// nextWeekday 返回 from 之后（含当天）最近的指定星期几
func nextWeekday(from time.Time, weekday time.Weekday) time.Time {
	days := (int(weekday) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, days)
}

// loadCourses 读取作用域下的课程，无数据时返回业务错误
func (s *exportService) loadCourses(ctx context.Context, institution, term, subject string) ([]model.Course, error) {
	courses, err := s.repo.Course.ListByScope(ctx, institution, term, subject)
	if err != nil {
		s.logger.Error("查询课程数据失败", zap.Error(err))
		return nil, err
	}
	if len(courses) == 0 {
		return nil, ErrExportNoCourses
	}
	return courses, nil
}
