package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
)

// SyncRecordRepository 同步记录数据访问接口
type SyncRecordRepository interface {
	Get(ctx context.Context, entityType model.EntityType, scopeKey string) (*model.SyncRecord, error)
	Upsert(ctx context.Context, entityType model.EntityType, scopeKey string, status model.SyncStatus, lastError string) error
	List(ctx context.Context, entityType model.EntityType) ([]model.SyncRecord, error)
	GetStaleScopes(ctx context.Context, entityType model.EntityType, ttl time.Duration) ([]string, error)
	Purge(ctx context.Context, entityType model.EntityType) (int64, error)
}

type syncRecordRepo struct {
	db *gorm.DB
}

// NewSyncRecordRepo 创建 SyncRecordRepository 实例
func NewSyncRecordRepo(db *gorm.DB) SyncRecordRepository {
	return &syncRecordRepo{db: db}
}

func (r *syncRecordRepo) Get(ctx context.Context, entityType model.EntityType, scopeKey string) (*model.SyncRecord, error) {
	var record model.SyncRecord
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND scope_key = ?", entityType, scopeKey).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert 幂等写入同步记录
// (entity_type, scope_key) 冲突时就地更新，绝不产生重复行
// status=success 时刷新 last_sync_at
func (r *syncRecordRepo) Upsert(ctx context.Context, entityType model.EntityType, scopeKey string, status model.SyncStatus, lastError string) error {
	record := model.SyncRecord{
		EntityType: entityType,
		ScopeKey:   scopeKey,
		Status:     status,
		LastError:  lastError,
	}

	assignments := map[string]interface{}{
		"status":     status,
		"last_error": lastError,
		"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
	}
	if status == model.SyncSuccess {
		now := time.Now()
		record.LastSyncAt = &now
		assignments["last_sync_at"] = now
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_type"}, {Name: "scope_key"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&record).Error
}

func (r *syncRecordRepo) List(ctx context.Context, entityType model.EntityType) ([]model.SyncRecord, error) {
	var records []model.SyncRecord
	q := r.db.WithContext(ctx).Order("updated_at DESC")
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetStaleScopes 返回超过 TTL 的作用域键（供后台刷新使用，不在请求路径上）
// 包含同步失败的作用域，便于下一轮刷新补救
func (r *syncRecordRepo) GetStaleScopes(ctx context.Context, entityType model.EntityType, ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	var scopes []string
	err := r.db.WithContext(ctx).
		Model(&model.SyncRecord{}).
		Where("entity_type = ?", entityType).
		Where("status = ? OR last_sync_at IS NULL OR last_sync_at < ?", model.SyncFailed, cutoff).
		Where("status <> ?", model.SyncInProgress).
		Pluck("scope_key", &scopes).Error
	if err != nil {
		return nil, err
	}
	return scopes, nil
}

// Purge 管理员清理：删除指定实体类型（为空则全部）的同步记录
func (r *syncRecordRepo) Purge(ctx context.Context, entityType model.EntityType) (int64, error) {
	q := r.db.WithContext(ctx)
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	} else {
		q = q.Where("1 = 1")
	}
	result := q.Delete(&model.SyncRecord{})
	return result.RowsAffected, result.Error
}
