package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/config"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/dto"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/breaker"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/cache"
)

// ── 测试辅助 ──

var errStoreUnavailable = errors.New("存储暂时不可用")

type populationFixture struct {
	svc      PopulationService
	repos    *testRepos
	primary  *mockConnector
	fallback *mockConnector
}

func setupTestPopulation(cfg *config.Config, primary, fallback *mockConnector) *populationFixture {
	repos := newTestRepos()
	logger := zap.NewNop()

	freshness := NewFreshnessService(cfg, repos.repo, logger)
	orch := NewIngestOrchestrator(cfg, repos.repo, primary, fallback, logger)
	c := cache.New(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)
	svc := NewPopulationService(cfg, repos.repo, freshness, orch, c, nil, logger)

	return &populationFixture{svc: svc, repos: repos, primary: primary, fallback: fallback}
}

// ── 新鲜度短路 ──

func TestPopulation_FreshRecord_ZeroConnectorCalls(t *testing.T) {
	primary := newMockConnector("primary", healthyCourseResult(dto.SourcePrimary, 5, 3))
	fallback := newMockConnector("fallback")
	f := setupTestPopulation(testConfig(), primary, fallback)

	scope := courseScope()
	f.repos.syncRecord.seedFresh(scope.EntityType, scope.Key())

	result := f.svc.EnsureData(context.Background(), scope)

	if !result.Success {
		t.Fatal("新鲜数据应直接成功返回")
	}
	if result.Source != dto.PopSourceStore {
		t.Errorf("期望来源 store，实际 %s", result.Source)
	}
	if primary.callCount() != 0 || fallback.callCount() != 0 {
		t.Errorf("新鲜数据不应触发任何抓取，实际 primary=%d fallback=%d",
			primary.callCount(), fallback.callCount())
	}
}

// ── 首次填充与缓存 ──

func TestPopulation_FirstCallFetchesAndPersists(t *testing.T) {
	primary := newMockConnector("primary", healthyCourseResult(dto.SourcePrimary, 5, 3))
	fallback := newMockConnector("fallback")
	f := setupTestPopulation(testConfig(), primary, fallback)

	scope := courseScope()
	result := f.svc.EnsureData(context.Background(), scope)

	if !result.Success {
		t.Fatalf("首次填充应成功: %v", result.Warnings)
	}
	if result.Source != dto.PopSourcePrimary {
		t.Errorf("期望来源 primary，实际 %s", result.Source)
	}
	if result.DataQuality != dto.QualityFull {
		t.Errorf("期望质量 full，实际 %s", result.DataQuality)
	}
	if result.ItemCount != 5 {
		t.Errorf("期望 5 项，实际 %d", result.ItemCount)
	}
	if f.repos.course.replaceCalls != 1 {
		t.Errorf("期望持久化 1 次，实际 %d 次", f.repos.course.replaceCalls)
	}
	if status := f.repos.syncRecord.status(scope.EntityType, scope.Key()); status != model.SyncSuccess {
		t.Errorf("期望同步记录状态 success，实际 %s", status)
	}

	// 第二次调用命中缓存，不再触发抓取
	second := f.svc.EnsureData(context.Background(), scope)
	if !second.Success {
		t.Fatal("缓存命中应成功返回")
	}
	if second.Source != dto.PopSourceCache {
		t.Errorf("缓存命中应标记来源 cache，实际 %s", second.Source)
	}
	if primary.callCount() != 1 {
		t.Errorf("第二次调用不应再抓取，主连接器实际调用 %d 次", primary.callCount())
	}
}

func TestPopulation_PersistedProfessorScope(t *testing.T) {
	prof := dto.IngestionResult{
		Success: true,
		Source:  dto.SourcePrimary,
		Professors: []dto.ScrapedProfessor{{
			Name:        "Jane Doe",
			Department:  "Computer Science",
			Rating:      4.2,
			RatingCount: 37,
			Reviews: []dto.ScrapedReview{
				{CourseCode: "COSC1436", Rating: 5, Comment: "讲得很清楚"},
			},
		}},
	}
	prof.ComputeSignals()

	primary := newMockConnector("primary", prof)
	fallback := newMockConnector("fallback")
	f := setupTestPopulation(testConfig(), primary, fallback)

	scope := dto.Scope{
		EntityType:  model.EntityProfessor,
		Institution: "hcc",
		Professor:   "jane doe",
	}
	result := f.svc.EnsureData(context.Background(), scope)

	if !result.Success {
		t.Fatalf("教授填充应成功: %v", result.Warnings)
	}
	if f.repos.professor.replaceCalls != 1 {
		t.Errorf("期望教授持久化 1 次，实际 %d 次", f.repos.professor.replaceCalls)
	}
	if len(f.repos.professor.professors) != 1 || f.repos.professor.professors[0].Name != "Jane Doe" {
		t.Error("教授数据应被持久化")
	}
}

// ── 单飞合并 ──

func TestPopulation_ConcurrentRequests_SingleFetch(t *testing.T) {
	primary := newMockConnector("primary", healthyCourseResult(dto.SourcePrimary, 5, 3))
	primary.delay = 50 * time.Millisecond
	fallback := newMockConnector("fallback")
	f := setupTestPopulation(testConfig(), primary, fallback)

	scope := courseScope()
	const workers = 10

	var wg sync.WaitGroup
	results := make([]dto.PopulationResult, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = f.svc.EnsureData(context.Background(), scope)
		}(i)
	}
	wg.Wait()

	if primary.callCount() != 1 {
		t.Errorf("同键并发请求应合并为一次抓取，实际 %d 次", primary.callCount())
	}
	for i, r := range results {
		if !r.Success {
			t.Errorf("第 %d 个并发请求应观察到成功结果: %v", i, r.Warnings)
		}
		if r.ItemCount != results[0].ItemCount {
			t.Errorf("所有并发请求应观察到同一结果，第 %d 个 ItemCount=%d", i, r.ItemCount)
		}
	}
	if f.repos.course.replaceCalls != 1 {
		t.Errorf("并发请求应只持久化 1 次，实际 %d 次", f.repos.course.replaceCalls)
	}
}

// ── 兜底与降级 ──

func TestPopulation_PrimaryFails_FallbackServes(t *testing.T) {
	primary := newMockConnector("primary", dto.FailedResult(dto.SourcePrimary, "导航步骤超时"))
	fallback := newMockConnector("fallback", healthyCourseResult(dto.SourceFallback, 12, 1))
	f := setupTestPopulation(testConfig(), primary, fallback)

	result := f.svc.EnsureData(context.Background(), courseScope())

	if !result.Success {
		t.Fatalf("备用兜底应成功: %v", result.Warnings)
	}
	if result.Source != dto.PopSourcePrimaryFallback {
		t.Errorf("期望来源 primary+fallback，实际 %s", result.Source)
	}
	if !result.FallbackUsed {
		t.Error("FallbackUsed 应为 true")
	}
	if result.DataQuality != dto.QualityPartial {
		t.Errorf("兜底结果携带警告，期望质量 partial，实际 %s", result.DataQuality)
	}
	if result.ItemCount != 12 {
		t.Errorf("期望 12 项，实际 %d", result.ItemCount)
	}
}

func TestPopulation_BothFail_DegradedNotError(t *testing.T) {
	primary := newMockConnector("primary", dto.FailedResult(dto.SourcePrimary, "导航步骤超时"))
	fallback := newMockConnector("fallback", dto.FailedResult(dto.SourceFallback, "静态接口 502"))
	f := setupTestPopulation(testConfig(), primary, fallback)

	scope := courseScope()
	result := f.svc.EnsureData(context.Background(), scope)

	if result.Success {
		t.Fatal("两条路径均失败时不应成功")
	}
	if result.DataQuality != dto.QualityDegraded {
		t.Errorf("期望质量 degraded，实际 %s", result.DataQuality)
	}
	if len(result.Warnings) == 0 {
		t.Error("降级结果必须携带警告")
	}
	if status := f.repos.syncRecord.status(scope.EntityType, scope.Key()); status != model.SyncFailed {
		t.Errorf("期望同步记录状态 failed，实际 %s", status)
	}
	if f.repos.course.replaceCalls != 0 {
		t.Error("失败结果不应触发持久化")
	}

	// 降级结果同样进入短缓存，避免失败风暴
	f.svc.EnsureData(context.Background(), scope)
	if primary.callCount() != 1 {
		t.Errorf("降级结果缓存期间不应重复抓取，实际 %d 次", primary.callCount())
	}
}

func TestPopulation_PersistFailure_Degraded(t *testing.T) {
	primary := newMockConnector("primary", healthyCourseResult(dto.SourcePrimary, 5, 3))
	fallback := newMockConnector("fallback")
	f := setupTestPopulation(testConfig(), primary, fallback)
	f.repos.course.replaceErr = errStoreUnavailable

	scope := courseScope()
	result := f.svc.EnsureData(context.Background(), scope)

	if result.Success {
		t.Fatal("持久化失败时不应声明成功")
	}
	if result.DataQuality != dto.QualityDegraded {
		t.Errorf("期望质量 degraded，实际 %s", result.DataQuality)
	}
	if status := f.repos.syncRecord.status(scope.EntityType, scope.Key()); status != model.SyncFailed {
		t.Errorf("期望同步记录状态 failed，实际 %s", status)
	}
}

func TestPopulation_InvalidScope_DegradedWithoutFetch(t *testing.T) {
	primary := newMockConnector("primary", healthyCourseResult(dto.SourcePrimary, 1, 1))
	fallback := newMockConnector("fallback")
	f := setupTestPopulation(testConfig(), primary, fallback)

	// 课程作用域缺少学期
	result := f.svc.EnsureData(context.Background(), dto.Scope{
		EntityType:  model.EntityCourseSections,
		Institution: "hcc",
	})

	if result.Success {
		t.Fatal("非法作用域不应成功")
	}
	if result.DataQuality != dto.QualityDegraded {
		t.Errorf("期望质量 degraded，实际 %s", result.DataQuality)
	}
	if primary.callCount() != 0 {
		t.Error("非法作用域不应触发抓取")
	}
}

// ── 在途填充与发起方解耦 ──

func TestPopulation_CallerCancelDoesNotAbortInFlight(t *testing.T) {
	primary := &cancelSensitiveConnector{
		name:   "primary",
		result: healthyCourseResult(dto.SourcePrimary, 5, 3),
		delay:  100 * time.Millisecond,
	}
	fallback := newMockConnector("fallback")

	repos := newTestRepos()
	cfg := testConfig()
	logger := zap.NewNop()
	freshness := NewFreshnessService(cfg, repos.repo, logger)
	orch := NewIngestOrchestrator(cfg, repos.repo, primary, fallback, logger)
	c := cache.New(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)
	svc := NewPopulationService(cfg, repos.repo, freshness, orch, c, nil, logger)

	scope := courseScope()

	// 发起方在抓取进行到一半时断开
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := svc.EnsureData(ctx, scope)

	if primary.aborted.Load() != 0 {
		t.Fatalf("发起方取消不得中止在途填充，实际中止 %d 次", primary.aborted.Load())
	}
	if !result.Success {
		t.Fatalf("填充应运行到完成: %v", result.Warnings)
	}
	if status := repos.syncRecord.status(scope.EntityType, scope.Key()); status != model.SyncSuccess {
		t.Errorf("期望同步记录状态 success，实际 %s", status)
	}

	// 后续调用方直接复用已完成的填充结果
	second := svc.EnsureData(context.Background(), scope)
	if !second.Success || second.DataQuality == dto.QualityDegraded {
		t.Errorf("后续调用应观察到完成的填充结果: success=%v quality=%s", second.Success, second.DataQuality)
	}
	if primary.calls.Load() != 1 {
		t.Errorf("后续调用不应重新抓取，实际 %d 次", primary.calls.Load())
	}
}

// ── 编排器缺陷兜底 ──

type panickingOrchestrator struct{}

func (panickingOrchestrator) FetchWithFallback(context.Context, dto.Scope) dto.IngestionResult {
	panic("编排器缺陷")
}

func (panickingOrchestrator) BreakerSnapshots() []breaker.Snapshot {
	return nil
}

func TestPopulation_OrchestratorPanic_DegradedAndRecordNotStuck(t *testing.T) {
	repos := newTestRepos()
	cfg := testConfig()
	logger := zap.NewNop()
	freshness := NewFreshnessService(cfg, repos.repo, logger)
	c := cache.New(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)
	svc := NewPopulationService(cfg, repos.repo, freshness, panickingOrchestrator{}, c, nil, logger)

	scope := courseScope()
	result := svc.EnsureData(context.Background(), scope)

	if result.Success {
		t.Fatal("编排器缺陷不应产生成功结果")
	}
	if result.DataQuality != dto.QualityDegraded {
		t.Errorf("期望质量 degraded，实际 %s", result.DataQuality)
	}
	if len(result.Warnings) == 0 {
		t.Error("缺陷兜底结果应携带警告")
	}
	// 同步记录不得停留在 in-progress
	if status := repos.syncRecord.status(scope.EntityType, scope.Key()); status != model.SyncFailed {
		t.Errorf("期望同步记录状态 failed，实际 %s", status)
	}
}

// ── 运维统计 ──

func TestPopulation_Stats(t *testing.T) {
	primary := newMockConnector("primary", healthyCourseResult(dto.SourcePrimary, 2, 2))
	fallback := newMockConnector("fallback")
	f := setupTestPopulation(testConfig(), primary, fallback)

	scope := courseScope()
	f.svc.EnsureData(context.Background(), scope)
	f.svc.EnsureData(context.Background(), scope)

	stats := f.svc.Stats()
	if len(stats.Breakers) != 2 {
		t.Errorf("期望 2 个熔断器快照，实际 %d 个", len(stats.Breakers))
	}
	if stats.Cache.Hits == 0 {
		t.Error("第二次调用应命中缓存")
	}
}
