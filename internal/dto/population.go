package dto

import (
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/breaker"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/cache"
)

// ── 数据填充 ──

// DataQuality 填充结果的数据质量分级
type DataQuality string

const (
	// QualityFull 数据完整
	QualityFull DataQuality = "full"
	// QualityPartial 数据可用但不完整（附带警告）
	QualityPartial DataQuality = "partial"
	// QualityDegraded 两条数据源均失败，仅返回空/残缺数据与警告
	QualityDegraded DataQuality = "degraded"
)

// PopulationSource 填充结果的最终来源
type PopulationSource string

const (
	// PopSourceCache 缓存命中（进程内一级或 Redis 二级）
	PopSourceCache PopulationSource = "cache"
	// PopSourceStore 同步记录仍新鲜，直接读库即可
	PopSourceStore PopulationSource = "store"
	// PopSourcePrimary 主连接器抓取
	PopSourcePrimary PopulationSource = "primary"
	// PopSourceFallback 备用连接器抓取
	PopSourceFallback PopulationSource = "fallback"
	// PopSourcePrimaryFallback 主连接器结果不可用，由备用连接器兜底
	PopSourcePrimaryFallback PopulationSource = "primary+fallback"
	// PopSourceNone 两条路径均失败
	PopSourceNone PopulationSource = "none"
)

// EnsureDataRequest 数据填充请求
type EnsureDataRequest struct {
	EntityType  model.EntityType `json:"entity_type" binding:"required"`
	Institution string           `json:"institution" binding:"required"`
	Term        string           `json:"term"`
	Subject     string           `json:"subject"`
	Professor   string           `json:"professor"`
}

// Scope 将请求转换为作用域
func (r *EnsureDataRequest) Scope() Scope {
	return Scope{
		EntityType:  r.EntityType,
		Institution: r.Institution,
		Term:        r.Term,
		Subject:     r.Subject,
		Professor:   r.Professor,
	}
}

// PopulationResult 数据填充结果（调用方唯一可见的返回结构）
// 两条数据源均失败时仍以 200 返回 QualityDegraded，绝不抛出异常
type PopulationResult struct {
	Success      bool             `json:"success"`
	Source       PopulationSource `json:"source"`
	FallbackUsed bool             `json:"fallback_used"`
	Warnings     []string         `json:"warnings,omitempty"`
	DataQuality  DataQuality      `json:"data_quality"`
	ItemCount    int              `json:"item_count"`
}

// ── 运维统计 ──

// PopulationStats 填充层运行统计（缓存 + 熔断器）
type PopulationStats struct {
	Cache    cache.Stats        `json:"cache"`
	Breakers []breaker.Snapshot `json:"breakers"`
}
