package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/config"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
)

// FreshnessService 新鲜度判定接口
//
// IsFresh 是软信号：任何查库失败都按"不新鲜"处理并记告警日志，
// 绝不向调用方抛错——新鲜度判定失败只意味着多做一次抓取
type FreshnessService interface {
	IsFresh(ctx context.Context, entityType model.EntityType, scopeKey string) bool
	MarkInProgress(ctx context.Context, entityType model.EntityType, scopeKey string) error
	MarkComplete(ctx context.Context, entityType model.EntityType, scopeKey string, status model.SyncStatus, errMsg string) error
	TTLFor(entityType model.EntityType) time.Duration
}

type freshnessService struct {
	cfg    *config.Config
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewFreshnessService 创建 FreshnessService 实例
func NewFreshnessService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) FreshnessService {
	return &freshnessService{cfg: cfg, repo: repo, logger: logger, now: time.Now}
}

// TTLFor 返回实体类型对应的新鲜度 TTL
func (s *freshnessService) TTLFor(entityType model.EntityType) time.Duration {
	switch entityType {
	case model.EntityProfessor:
		return s.cfg.Freshness.ProfessorTTL
	case model.EntityReviews:
		return s.cfg.Freshness.ReviewsTTL
	default:
		return s.cfg.Freshness.CourseSectionsTTL
	}
}

// IsFresh 判断 (实体类型, 作用域) 的持久化数据是否仍在 TTL 内
// 无记录、状态非 success、超过 TTL、查询失败——一律视为不新鲜
func (s *freshnessService) IsFresh(ctx context.Context, entityType model.EntityType, scopeKey string) bool {
	record, err := s.repo.SyncRecord.Get(ctx, entityType, scopeKey)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			// 存储不可用只是软信号，按不新鲜处理
			s.logger.Warn("新鲜度查询失败，按不新鲜处理",
				zap.String("entity_type", string(entityType)),
				zap.String("scope", scopeKey),
				zap.Error(err),
			)
		}
		return false
	}

	return record.Fresh(s.now(), s.TTLFor(entityType))
}

// MarkInProgress 将同步记录置为 in-progress（幂等 upsert，不产生重复行）
func (s *freshnessService) MarkInProgress(ctx context.Context, entityType model.EntityType, scopeKey string) error {
	return s.repo.SyncRecord.Upsert(ctx, entityType, scopeKey, model.SyncInProgress, "")
}

// MarkComplete 记录同步完成状态（success 或 failed）
func (s *freshnessService) MarkComplete(ctx context.Context, entityType model.EntityType, scopeKey string, status model.SyncStatus, errMsg string) error {
	return s.repo.SyncRecord.Upsert(ctx, entityType, scopeKey, status, errMsg)
}
