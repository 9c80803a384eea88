package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/config"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/dto"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/cache"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/redis"
)

// PopulationService 数据填充入口：所有需要外部数据的调用方都经由 EnsureData
//
// 分层：一级缓存 → (可选)Redis 二级缓存 → 新鲜度判定 → 单飞合并 →
// 信号量限流 → 摄取编排器 → 持久化 → 标记完成 → 回填缓存
//
// 核心韧性性质：同一 (实体类型, 作用域) 的 N 个并发请求只触发一次外部抓取，
// 所有请求观察到同一个完成结果
type PopulationService interface {
	EnsureData(ctx context.Context, scope dto.Scope) dto.PopulationResult
	Stats() dto.PopulationStats
}

type populationService struct {
	cfg          *config.Config
	repo         *repository.Repository
	freshness    FreshnessService
	orchestrator IngestOrchestrator
	cache        *cache.Cache
	rdb          *redis.Client // 可为 nil，二级缓存降级关闭
	group        singleflight.Group
	sem          *semaphore.Weighted // 并发外部抓取上限
	logger       *zap.Logger
}

// NewPopulationService 创建 PopulationService 实例
// rdb 可为 nil（Redis 不可用时二级缓存自动关闭）
func NewPopulationService(
	cfg *config.Config,
	repo *repository.Repository,
	freshness FreshnessService,
	orchestrator IngestOrchestrator,
	c *cache.Cache,
	rdb *redis.Client,
	logger *zap.Logger,
) PopulationService {
	return &populationService{
		cfg:          cfg,
		repo:         repo,
		freshness:    freshness,
		orchestrator: orchestrator,
		cache:        c,
		rdb:          rdb,
		sem:          semaphore.NewWeighted(int64(cfg.Refresh.Concurrency)),
		logger:       logger,
	}
}

// populationKey 缓存键与单飞键
func populationKey(scope dto.Scope) string {
	return fmt.Sprintf("population:%s:%s", scope.EntityType, scope.Key())
}

// EnsureData 实现 PopulationService
// 任何失败形态都编码在返回结果里（QualityDegraded + 警告），绝不向上抛错
func (s *populationService) EnsureData(ctx context.Context, scope dto.Scope) dto.PopulationResult {
	if err := scope.Validate(); err != nil {
		return dto.PopulationResult{
			Success:     false,
			Source:      dto.PopSourceNone,
			Warnings:    []string{err.Error()},
			DataQuality: dto.QualityDegraded,
		}
	}

	key := populationKey(scope)

	// 1. 一级缓存（进程内，短 TTL）
	if v, ok := s.cache.Get(key); ok {
		if cached, ok := v.(dto.PopulationResult); ok {
			cached.Source = dto.PopSourceCache
			return cached
		}
	}

	// 2. 二级缓存（Redis，跨副本共享；不可用时静默跳过）
	if s.rdb != nil {
		if cached, err := s.rdb.GetPopulationResult(ctx, key); err == nil && cached != nil {
			s.cache.Set(key, *cached, s.cfg.Cache.PopulationTTL)
			served := *cached
			served.Source = dto.PopSourceCache
			return served
		}
	}

	// 3. 新鲜度短路：同步记录仍在 TTL 内，调用方直接读库即可
	if s.freshness.IsFresh(ctx, scope.EntityType, scope.Key()) {
		return dto.PopulationResult{
			Success:     true,
			Source:      dto.PopSourceStore,
			DataQuality: dto.QualityFull,
		}
	}

	// 4. 单飞合并：同键并发请求等待同一次填充的结果，而不是各自重复抓取
	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		return s.populate(ctx, scope, key), nil
	})

	result, ok := v.(dto.PopulationResult)
	if !ok {
		// 防御性兜底，正常不可达
		return dto.PopulationResult{
			Success:     false,
			Source:      dto.PopSourceNone,
			Warnings:    []string{"填充结果类型异常"},
			DataQuality: dto.QualityDegraded,
		}
	}
	return result
}

// populate 执行一次真正的填充（单飞回调内，单键串行）
func (s *populationService) populate(ctx context.Context, scope dto.Scope, key string) (result dto.PopulationResult) {
	// 编排器之外的最后一道防线：任何漏网的缺陷都折叠为降级结果，
	// 同时保证同步记录不会停留在 in-progress
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("填充流程发生未预期缺陷",
				zap.String("scope", key),
				zap.Any("panic", r),
			)
			s.completeQuietly(scope, model.SyncFailed, fmt.Sprintf("填充流程缺陷: %v", r))
			result = dto.PopulationResult{
				Success:     false,
				Source:      dto.PopSourceNone,
				Warnings:    []string{fmt.Sprintf("填充流程发生内部缺陷: %v", r)},
				DataQuality: dto.QualityDegraded,
			}
		}
	}()

	// 并发外部抓取上限（保护抓取后端）
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return dto.PopulationResult{
			Success:     false,
			Source:      dto.PopSourceNone,
			Warnings:    []string{fmt.Sprintf("等待抓取名额时请求被取消: %v", err)},
			DataQuality: dto.QualityDegraded,
		}
	}
	defer s.sem.Release(1)

	// 填充一旦开始就与发起方请求解耦：运行到完成或连接器自身超时为止。
	// 发起方断开不得中止在途填充，否则半途的降级结果会污染缓存
	ctx = context.WithoutCancel(ctx)

	// 标记 in-progress；存储不可用只告警，填充照常进行
	if err := s.freshness.MarkInProgress(ctx, scope.EntityType, scope.Key()); err != nil {
		s.logger.Warn("写入 in-progress 同步记录失败", zap.String("scope", key), zap.Error(err))
	}

	ingest := s.orchestrator.FetchWithFallback(ctx, scope)

	result = dto.PopulationResult{
		Success:      ingest.Success,
		Source:       dto.PopulationSource(ingest.Source),
		FallbackUsed: ingest.Source == dto.SourceFallback || ingest.Source == dto.SourcePrimaryFallback,
		Warnings:     ingest.Warnings,
		ItemCount:    ingest.Signals.Items,
	}

	if !ingest.Success {
		s.completeQuietly(scope, model.SyncFailed, ingest.Error)
		result.Warnings = append(result.Warnings, ingest.Error)
		result.DataQuality = dto.QualityDegraded
		// 降级结果同样写入短缓存：避免失败风暴期间反复触发外部抓取
		s.cache.Set(key, result, s.cfg.Cache.PopulationTTL)
		return result
	}

	// 持久化抓取结果
	if err := s.persist(ctx, scope, &ingest); err != nil {
		s.logger.Error("持久化抓取结果失败", zap.String("scope", key), zap.Error(err))
		s.completeQuietly(scope, model.SyncFailed, fmt.Sprintf("持久化失败: %v", err))
		result.Success = false
		result.Warnings = append(result.Warnings, fmt.Sprintf("抓取成功但持久化失败: %v", err))
		result.DataQuality = dto.QualityDegraded
		return result
	}

	s.completeQuietly(scope, model.SyncSuccess, "")

	if len(result.Warnings) > 0 {
		result.DataQuality = dto.QualityPartial
	} else {
		result.DataQuality = dto.QualityFull
	}

	// 回填两级缓存
	s.cache.Set(key, result, s.cfg.Cache.PopulationTTL)
	if s.rdb != nil {
		if err := s.rdb.SetPopulationResult(ctx, key, &result, s.cfg.Cache.PopulationTTL); err != nil {
			s.logger.Warn("写入二级缓存失败", zap.String("scope", key), zap.Error(err))
		}
	}

	s.logger.Info("数据填充完成",
		zap.String("scope", key),
		zap.String("source", string(result.Source)),
		zap.Bool("fallback_used", result.FallbackUsed),
		zap.String("quality", string(result.DataQuality)),
		zap.Int("items", result.ItemCount),
	)
	return result
}

// persist 将摄取结果写入存储（按作用域整体替换）
func (s *populationService) persist(ctx context.Context, scope dto.Scope, ingest *dto.IngestionResult) error {
	switch scope.EntityType {
	case model.EntityCourseSections:
		courses := make([]model.Course, 0, len(ingest.Courses))
		for _, c := range ingest.Courses {
			course := model.Course{
				Subject: c.Subject,
				Number:  c.Number,
				Title:   c.Title,
				Credits: c.Credits,
			}
			for _, sec := range c.Sections {
				course.Sections = append(course.Sections, model.Section{
					CRN:        sec.CRN,
					Instructor: sec.Instructor,
					Days:       sec.Days,
					StartTime:  sec.StartTime,
					EndTime:    sec.EndTime,
					Location:   sec.Location,
					Seats:      sec.Seats,
					Waitlist:   sec.Waitlist,
				})
			}
			courses = append(courses, course)
		}
		return s.repo.Course.ReplaceScope(ctx, scope.Institution, scope.Term, scope.Subject, courses)

	case model.EntityProfessor, model.EntityReviews:
		professors := make([]model.Professor, 0, len(ingest.Professors))
		for _, p := range ingest.Professors {
			prof := model.Professor{
				Name:           p.Name,
				Department:     p.Department,
				Rating:         p.Rating,
				Difficulty:     p.Difficulty,
				WouldTakeAgain: p.WouldTakeAgain,
				RatingCount:    p.RatingCount,
			}
			for _, rv := range p.Reviews {
				prof.Reviews = append(prof.Reviews, model.Review{
					CourseCode: rv.CourseCode,
					Rating:     rv.Rating,
					Difficulty: rv.Difficulty,
					Comment:    rv.Comment,
					Date:       rv.Date,
				})
			}
			professors = append(professors, prof)
		}
		return s.repo.Professor.Replace(ctx, scope.Institution, professors)

	default:
		return fmt.Errorf("不支持持久化的实体类型: %s", scope.EntityType)
	}
}

// completeQuietly 写入完成状态；失败只告警，不影响返回结果
func (s *populationService) completeQuietly(scope dto.Scope, status model.SyncStatus, errMsg string) {
	// 与调用方请求解耦：即使请求已取消也要落盘完成状态
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.freshness.MarkComplete(ctx, scope.EntityType, scope.Key(), status, errMsg); err != nil {
		s.logger.Warn("写入同步完成状态失败",
			zap.String("entity_type", string(scope.EntityType)),
			zap.String("scope", scope.Key()),
			zap.Error(err),
		)
	}
}

// Stats 实现 PopulationService
func (s *populationService) Stats() dto.PopulationStats {
	return dto.PopulationStats{
		Cache:    s.cache.Stats(),
		Breakers: s.orchestrator.BreakerSnapshots(),
	}
}
