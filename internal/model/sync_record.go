package model

import "time"

// ── 同步状态 ──

// SyncStatus 同步记录状态
// 合法转换：in-progress → success / failed；重新同步时先回到 in-progress
type SyncStatus string

const (
	// SyncInProgress 同步进行中
	SyncInProgress SyncStatus = "in-progress"
	// SyncSuccess 同步成功
	SyncSuccess SyncStatus = "success"
	// SyncFailed 同步失败
	SyncFailed SyncStatus = "failed"
)

// SyncRecord 每个 (实体类型, 作用域) 至多一条的同步记录
// 由 PopulationService 独占写入；仅管理员清理操作可删除
type SyncRecord struct {
	ID         uint       `gorm:"primaryKey"                                              json:"id"`
	EntityType EntityType `gorm:"type:varchar(32);not null;uniqueIndex:idx_sync_entity_scope" json:"entity_type"`
	ScopeKey   string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_sync_entity_scope" json:"scope_key"`
	LastSyncAt *time.Time `gorm:"index"                                                   json:"last_sync_at,omitempty"`
	Status     SyncStatus `gorm:"type:varchar(16);not null"                               json:"status"`
	LastError  string     `gorm:"type:text"                                               json:"last_error,omitempty"`
	BaseModel
}

// TableName 指定表名
func (SyncRecord) TableName() string {
	return "sync_records"
}

// Fresh 判断记录在给定 TTL 内是否仍然新鲜
// 仅 success 状态的记录可能新鲜
func (r *SyncRecord) Fresh(now time.Time, ttl time.Duration) bool {
	if r.Status != SyncSuccess || r.LastSyncAt == nil {
		return false
	}
	return now.Sub(*r.LastSyncAt) <= ttl
}
