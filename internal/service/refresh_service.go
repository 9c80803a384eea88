package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/config"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/dto"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
)

// RefreshService 后台主动刷新
//
// 周期性扫描过期作用域并提前重新填充，让请求路径尽量命中新鲜数据。
// 刷新完全走 PopulationService，复用其单飞合并与信号量限流
type RefreshService interface {
	// Run 阻塞运行刷新循环，直到 ctx 取消
	Run(ctx context.Context)
	// RefreshOnce 立即执行一轮刷新，返回触发的填充次数
	RefreshOnce(ctx context.Context) int
}

type refreshService struct {
	cfg        *config.Config
	repo       *repository.Repository
	population PopulationService
	freshness  FreshnessService
	logger     *zap.Logger
}

// NewRefreshService 创建 RefreshService 实例
func NewRefreshService(
	cfg *config.Config,
	repo *repository.Repository,
	population PopulationService,
	freshness FreshnessService,
	logger *zap.Logger,
) RefreshService {
	return &refreshService{
		cfg:        cfg,
		repo:       repo,
		population: population,
		freshness:  freshness,
		logger:     logger,
	}
}

// Run 实现 RefreshService
func (s *refreshService) Run(ctx context.Context) {
	interval := s.cfg.Refresh.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	s.logger.Info("后台刷新循环已启动", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("后台刷新循环已停止")
			return
		case <-ticker.C:
			n := s.RefreshOnce(ctx)
			if n > 0 {
				s.logger.Info("本轮后台刷新完成", zap.Int("refreshed", n))
			}
		}
	}
}

// RefreshOnce 实现 RefreshService
func (s *refreshService) RefreshOnce(ctx context.Context) int {
	refreshed := 0

	for _, entityType := range []model.EntityType{
		model.EntityCourseSections,
		model.EntityProfessor,
		model.EntityReviews,
	} {
		scopes, err := s.repo.SyncRecord.GetStaleScopes(ctx, entityType, s.freshness.TTLFor(entityType))
		if err != nil {
			s.logger.Warn("过期作用域扫描失败",
				zap.String("entity_type", string(entityType)),
				zap.Error(err),
			)
			continue
		}

		for _, key := range scopes {
			if ctx.Err() != nil {
				return refreshed
			}

			scope, err := dto.ParseScopeKey(entityType, key)
			if err != nil {
				s.logger.Warn("作用域键无法还原，跳过",
					zap.String("entity_type", string(entityType)),
					zap.String("scope_key", key),
					zap.Error(err),
				)
				continue
			}

			result := s.population.EnsureData(ctx, scope)
			refreshed++
			if result.DataQuality == dto.QualityDegraded {
				s.logger.Warn("后台刷新降级",
					zap.String("scope", key),
					zap.Strings("warnings", result.Warnings),
				)
			}
		}
	}

	return refreshed
}
