package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/config"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/dto"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
)

// ── Mock SyncRecordRepository ──

type mockSyncRecordRepo struct {
	mu          sync.Mutex
	records     map[string]*model.SyncRecord
	getErr      error
	upsertErr   error
	upsertCalls int
	staleScopes map[model.EntityType][]string
}

func newMockSyncRecordRepo() *mockSyncRecordRepo {
	return &mockSyncRecordRepo{
		records:     make(map[string]*model.SyncRecord),
		staleScopes: make(map[model.EntityType][]string),
	}
}

func syncKey(entityType model.EntityType, scopeKey string) string {
	return string(entityType) + "|" + scopeKey
}

func (m *mockSyncRecordRepo) Get(_ context.Context, entityType model.EntityType, scopeKey string) (*model.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if r, ok := m.records[syncKey(entityType, scopeKey)]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSyncRecordRepo) Upsert(_ context.Context, entityType model.EntityType, scopeKey string, status model.SyncStatus, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertErr != nil {
		return m.upsertErr
	}

	key := syncKey(entityType, scopeKey)
	record, ok := m.records[key]
	if !ok {
		record = &model.SyncRecord{EntityType: entityType, ScopeKey: scopeKey}
		m.records[key] = record
	}
	record.Status = status
	record.LastError = lastError
	if status == model.SyncSuccess {
		now := time.Now()
		record.LastSyncAt = &now
	}
	return nil
}

func (m *mockSyncRecordRepo) List(_ context.Context, entityType model.EntityType) ([]model.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.SyncRecord
	for _, r := range m.records {
		if entityType == "" || r.EntityType == entityType {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockSyncRecordRepo) GetStaleScopes(_ context.Context, entityType model.EntityType, _ time.Duration) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.staleScopes[entityType], nil
}

func (m *mockSyncRecordRepo) Purge(_ context.Context, entityType model.EntityType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for key, r := range m.records {
		if entityType == "" || r.EntityType == entityType {
			delete(m.records, key)
			purged++
		}
	}
	return purged, nil
}

// status 返回某作用域当前同步状态（测试断言用）
func (m *mockSyncRecordRepo) status(entityType model.EntityType, scopeKey string) model.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[syncKey(entityType, scopeKey)]; ok {
		return r.Status
	}
	return ""
}

// seedFresh 预置一条新鲜的 success 记录
func (m *mockSyncRecordRepo) seedFresh(entityType model.EntityType, scopeKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.records[syncKey(entityType, scopeKey)] = &model.SyncRecord{
		EntityType: entityType,
		ScopeKey:   scopeKey,
		Status:     model.SyncSuccess,
		LastSyncAt: &now,
	}
}

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	mu           sync.Mutex
	courses      []model.Course
	count        int64
	countErr     error
	replaceErr   error
	replaceCalls int
	listErr      error
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{}
}

func (m *mockCourseRepo) ReplaceScope(_ context.Context, institution, term, _ string, courses []model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	for i := range courses {
		courses[i].Institution = institution
		courses[i].Term = term
	}
	m.courses = courses
	m.count = int64(len(courses))
	return nil
}

func (m *mockCourseRepo) ListByScope(_ context.Context, _, _, _ string) ([]model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.courses, nil
}

func (m *mockCourseRepo) CountByScope(_ context.Context, _, _, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.count, nil
}

// ── Mock ProfessorRepository ──

type mockProfessorRepo struct {
	mu           sync.Mutex
	professors   []model.Professor
	count        int64
	replaceErr   error
	replaceCalls int
}

func newMockProfessorRepo() *mockProfessorRepo {
	return &mockProfessorRepo{}
}

func (m *mockProfessorRepo) Replace(_ context.Context, institution string, professors []model.Professor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	for i := range professors {
		professors[i].Institution = institution
	}
	m.professors = professors
	m.count = int64(len(professors))
	return nil
}

func (m *mockProfessorRepo) GetByName(_ context.Context, _, name string) (*model.Professor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.professors {
		if m.professors[i].Name == name {
			return &m.professors[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProfessorRepo) CountByName(_ context.Context, _, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, nil
}

// ── Mock Connector ──

// mockConnector 可编程的连接器桩：按调用次序返回预设结果
// 结果耗尽后重复返回最后一个
type mockConnector struct {
	name    string
	results []dto.IngestionResult
	delay   time.Duration
	calls   atomic.Int64
}

func newMockConnector(name string, results ...dto.IngestionResult) *mockConnector {
	return &mockConnector{name: name, results: results}
}

func (m *mockConnector) Name() string {
	return m.name
}

func (m *mockConnector) Fetch(ctx context.Context, _ dto.Scope) dto.IngestionResult {
	n := m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}

	idx := int(n) - 1
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	if idx < 0 {
		return dto.FailedResult(dto.IngestSource(m.name), "未预设结果")
	}
	return m.results[idx]
}

func (m *mockConnector) callCount() int {
	return int(m.calls.Load())
}

// cancelSensitiveConnector 感知取消的连接器桩：
// 延迟期间上下文被取消则中止抓取并返回失败信封
type cancelSensitiveConnector struct {
	name    string
	result  dto.IngestionResult
	delay   time.Duration
	calls   atomic.Int64
	aborted atomic.Int64
}

func (m *cancelSensitiveConnector) Name() string {
	return m.name
}

func (m *cancelSensitiveConnector) Fetch(ctx context.Context, _ dto.Scope) dto.IngestionResult {
	m.calls.Add(1)
	select {
	case <-time.After(m.delay):
		return m.result
	case <-ctx.Done():
		m.aborted.Add(1)
		return dto.FailedResult(dto.IngestSource(m.name), fmt.Sprintf("抓取被上下文中止: %v", ctx.Err()))
	}
}

// ── 测试结果构造辅助 ──

// healthyCourseResult 构造一个含班次的成功抓取结果
func healthyCourseResult(source dto.IngestSource, courses, sectionsPer int) dto.IngestionResult {
	result := dto.IngestionResult{Success: true, Source: source}
	for i := 0; i < courses; i++ {
		course := dto.ScrapedCourse{
			Subject: "COSC",
			Number:  fmt.Sprintf("14%02d", 36+i),
			Title:   "Programming Fundamentals",
			Credits: 4,
		}
		for j := 0; j < sectionsPer; j++ {
			course.Sections = append(course.Sections, dto.ScrapedSection{
				CRN:        fmt.Sprintf("88%03d", i*10+j),
				Instructor: "Smith",
				Days:       "MWF",
				StartTime:  "09:00",
				EndTime:    "09:50",
				Location:   "ENG 205",
				Seats:      30,
			})
		}
		result.Courses = append(result.Courses, course)
	}
	result.ComputeSignals()
	return result
}

// emptyResult 构造一个成功但零项的抓取结果
func emptyResult(source dto.IngestSource) dto.IngestionResult {
	result := dto.IngestionResult{Success: true, Source: source}
	result.ComputeSignals()
	return result
}

// ── 测试配置与仓储聚合 ──

func testConfig() *config.Config {
	return &config.Config{
		Scraper: config.ScraperConfig{
			BaseURL:              "http://localhost:9400",
			PrimaryEnabled:       true,
			FallbackEnabled:      true,
			PrimaryTimeout:       time.Second,
			FallbackTimeout:      time.Second,
			EmptyWithoutBaseline: config.EmptyAccept,
		},
		Breaker: config.BreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  time.Minute,
		},
		Cache: config.CacheConfig{
			MaxEntries:    100,
			DefaultTTL:    time.Minute,
			PopulationTTL: time.Minute,
		},
		Freshness: config.FreshnessConfig{
			CourseSectionsTTL: 168 * time.Hour,
			ProfessorTTL:      168 * time.Hour,
			ReviewsTTL:        720 * time.Hour,
		},
		Refresh: config.RefreshConfig{
			Interval:    time.Hour,
			Concurrency: 5,
		},
	}
}

type testRepos struct {
	repo       *repository.Repository
	syncRecord *mockSyncRecordRepo
	course     *mockCourseRepo
	professor  *mockProfessorRepo
}

func newTestRepos() *testRepos {
	syncRecord := newMockSyncRecordRepo()
	course := newMockCourseRepo()
	professor := newMockProfessorRepo()
	return &testRepos{
		repo: &repository.Repository{
			SyncRecord: syncRecord,
			Course:     course,
			Professor:  professor,
		},
		syncRecord: syncRecord,
		course:     course,
		professor:  professor,
	}
}

// courseScope 课程类测试作用域
func courseScope() dto.Scope {
	return dto.Scope{
		EntityType:  model.EntityCourseSections,
		Institution: "hcc",
		Term:        "spring-2026",
		Subject:     "cosc",
	}
}
