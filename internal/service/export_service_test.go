package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
)

// ── 测试辅助 ──

func setupTestExport() (ExportService, *testRepos) {
	repos := newTestRepos()
	svc := NewExportService(repos.repo, zap.NewNop())
	return svc, repos
}

func seedCourses(repos *testRepos) {
	repos.course.courses = []model.Course{
		{
			Institution: "hcc", Term: "spring-2026", Subject: "COSC",
			Number: "1436", Title: "Programming Fundamentals I", Credits: 4,
			Sections: []model.Section{
				{CRN: "88001", Instructor: "Smith", Days: "MWF", StartTime: "09:00", EndTime: "09:50", Location: "ENG 205", Seats: 12},
				{CRN: "88002", Instructor: "Jones", Days: "TR", StartTime: "13:00", EndTime: "14:20", Location: "ENG 310", Seats: 3},
			},
		},
		{
			Institution: "hcc", Term: "spring-2026", Subject: "MATH",
			Number: "2413", Title: "Calculus I", Credits: 4,
			Sections: []model.Section{
				{CRN: "91001", Instructor: "Lee", Days: "MW", StartTime: "10:00", EndTime: "11:20", Location: "SCI 120", Seats: 8},
			},
		},
	}
}

// ── Excel 导出 ──

func TestExport_XLSX_Success(t *testing.T) {
	svc, repos := setupTestExport()
	seedCourses(repos)

	buf, filename, err := svc.ExportCoursesXLSX(context.Background(), "hcc", "spring-2026", "")
	if err != nil {
		t.Fatalf("导出应成功: %v", err)
	}
	if buf == nil || buf.Len() == 0 {
		t.Fatal("导出文件不应为空")
	}
	if filename != "courses_hcc_spring-2026.xlsx" {
		t.Errorf("文件名不符: %s", filename)
	}
}

func TestExport_XLSX_NoCourses(t *testing.T) {
	svc, _ := setupTestExport()

	_, _, err := svc.ExportCoursesXLSX(context.Background(), "hcc", "spring-2026", "")
	if !errors.Is(err, ErrExportNoCourses) {
		t.Errorf("期望 ErrExportNoCourses，实际: %v", err)
	}
}

// ── ICS 导出 ──

func TestExport_ICS_Success(t *testing.T) {
	svc, repos := setupTestExport()
	seedCourses(repos)

	buf, filename, err := svc.ExportCoursesICS(context.Background(), "hcc", "spring-2026", "")
	if err != nil {
		t.Fatalf("导出应成功: %v", err)
	}
	if filename != "courses_hcc_spring-2026.ics" {
		t.Errorf("文件名不符: %s", filename)
	}

	content := buf.String()
	if !strings.Contains(content, "BEGIN:VCALENDAR") {
		t.Error("输出应为 iCalendar 格式")
	}
	if !strings.Contains(content, "COSC 1436 - Programming Fundamentals I") {
		t.Error("事件摘要应包含课程信息")
	}
	if !strings.Contains(content, "FREQ=WEEKLY") {
		t.Error("班次事件应按周重复")
	}
	// MWF(3) + TR(2) + MW(2) = 7 个事件
	if n := strings.Count(content, "BEGIN:VEVENT"); n != 7 {
		t.Errorf("期望 7 个事件（每个上课日一个），实际 %d 个", n)
	}
}

func TestExport_ICS_SkipsSectionsWithoutTime(t *testing.T) {
	svc, repos := setupTestExport()
	repos.course.courses = []model.Course{{
		Institution: "hcc", Term: "spring-2026", Subject: "COSC",
		Number: "1436", Title: "Programming Fundamentals I",
		Sections: []model.Section{
			{CRN: "88001", Days: "", StartTime: "", EndTime: ""}, // 线上课，无固定时间
			{CRN: "88002", Days: "MW", StartTime: "10:00", EndTime: "11:20"},
		},
	}}

	buf, _, err := svc.ExportCoursesICS(context.Background(), "hcc", "spring-2026", "")
	if err != nil {
		t.Fatalf("导出应成功: %v", err)
	}
	if n := strings.Count(buf.String(), "BEGIN:VEVENT"); n != 2 {
		t.Errorf("无时间信息的班次应被跳过，期望 2 个事件，实际 %d 个", n)
	}
}

// ── nextWeekday ──

func TestNextWeekday(t *testing.T) {
	// 2026-08-31 是周一
	monday := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	if got := nextWeekday(monday, time.Monday); !got.Equal(monday) {
		t.Errorf("当天即目标星期几时应返回当天，实际 %v", got)
	}
	if got := nextWeekday(monday, time.Thursday); got.Day() != 3 || got.Month() != time.September {
		t.Errorf("周一之后最近的周四应为 9 月 3 日，实际 %v", got)
	}
}
