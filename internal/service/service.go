package service

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/config"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/scraper"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/cache"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Freshness  FreshnessService
	Population PopulationService
	Refresh    RefreshService
	Export     ExportService
}

// NewService 创建 Service 聚合
// rdb 可为 nil（Redis 不可用时相关功能降级）
func NewService(cfg *config.Config, repo *repository.Repository, rdb *redis.Client, logger *zap.Logger) *Service {
	// 两条连接器共享同一个限流器：它们打的是同一个外部站点
	limiter := rate.NewLimiter(rate.Limit(cfg.Scraper.RateLimitRPS), cfg.Scraper.RateLimitBurst)

	primary := scraper.NewPrimaryConnector(
		cfg.Scraper.BaseURL, limiter,
		cfg.Scraper.PrimaryTimeout, cfg.Scraper.PrimaryMaxRetries, logger,
	)
	fallback := scraper.NewFallbackConnector(
		cfg.Scraper.BaseURL, limiter,
		cfg.Scraper.FallbackTimeout, cfg.Scraper.FallbackMaxRetries, logger,
	)

	freshness := NewFreshnessService(cfg, repo, logger)
	orchestrator := NewIngestOrchestrator(cfg, repo, primary, fallback, logger)

	c := cache.New(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)
	population := NewPopulationService(cfg, repo, freshness, orchestrator, c, rdb, logger)

	return &Service{
		Freshness:  freshness,
		Population: population,
		Refresh:    NewRefreshService(cfg, repo, population, freshness, logger),
		Export:     NewExportService(repo, logger),
	}
}
