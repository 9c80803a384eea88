package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/config"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/dto"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/model"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/repository"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/scraper"
	"github.com/KBesada24/ScheduleFirst-AI-sub001/pkg/breaker"
)

// ── 质量门分级 ──

// gateClass 质量门对主连接器结果的分级
type gateClass int

const (
	// gateHealthy 有项且有子项，可直接采用
	gateHealthy gateClass = iota
	// gateEmptyValid 无项，且该作用域没有正的历史基线——空结果可信
	gateEmptyValid
	// gateIncomplete 有项但全部零子项，或无项但历史基线为正——结果可疑
	gateIncomplete
	// gateFailed 连接器自身失败或被熔断拒绝
	gateFailed
)

func (g gateClass) String() string {
	switch g {
	case gateHealthy:
		return "healthy"
	case gateEmptyValid:
		return "empty-valid"
	case gateIncomplete:
		return "incomplete"
	default:
		return "failed"
	}
}

// IngestOrchestrator 摄取编排器：主/备数据源仲裁
//
// 每次请求至多一次备用尝试，不做跨连接器的链式重试；
// 两条路径均失败时返回降级终态，绝不向上抛错
type IngestOrchestrator interface {
	FetchWithFallback(ctx context.Context, scope dto.Scope) dto.IngestionResult
	// BreakerSnapshots 返回两个连接器熔断器的状态快照
	BreakerSnapshots() []breaker.Snapshot
}

type ingestOrchestrator struct {
	cfg             *config.Config
	repo            *repository.Repository
	primary         scraper.Connector
	fallback        scraper.Connector
	primaryBreaker  *breaker.Breaker
	fallbackBreaker *breaker.Breaker
	logger          *zap.Logger
}

// NewIngestOrchestrator 创建摄取编排器
// 每个连接器独享一个熔断器，互不影响
func NewIngestOrchestrator(
	cfg *config.Config,
	repo *repository.Repository,
	primary scraper.Connector,
	fallback scraper.Connector,
	logger *zap.Logger,
) IngestOrchestrator {
	pThreshold, pRecovery := cfg.Breaker.For(cfg.Breaker.Primary)
	fThreshold, fRecovery := cfg.Breaker.For(cfg.Breaker.Fallback)

	return &ingestOrchestrator{
		cfg:             cfg,
		repo:            repo,
		primary:         primary,
		fallback:        fallback,
		primaryBreaker:  breaker.New("primary-connector", pThreshold, pRecovery),
		fallbackBreaker: breaker.New("fallback-connector", fThreshold, fRecovery),
		logger:          logger,
	}
}

// BreakerSnapshots 实现 IngestOrchestrator
func (o *ingestOrchestrator) BreakerSnapshots() []breaker.Snapshot {
	return []breaker.Snapshot{
		o.primaryBreaker.Snapshot(),
		o.fallbackBreaker.Snapshot(),
	}
}

// fetchThrough 经由熔断器调用连接器
// 熔断拒绝返回 breaker.ErrOpen（与真实抓取失败可区分）
func fetchThrough(ctx context.Context, b *breaker.Breaker, c scraper.Connector, scope dto.Scope) (dto.IngestionResult, error) {
	if err := b.Allow(); err != nil {
		return dto.IngestionResult{}, err
	}

	result := c.Fetch(ctx, scope)
	if result.Success {
		b.Success()
	} else {
		b.Failure()
	}
	return result, nil
}

// historicalBaseline 查询该作用域已持久化的项数（历史基线）
// 仅作参考信号：查询失败返回 -1（未知），绝不因此触发备用路径
func (o *ingestOrchestrator) historicalBaseline(ctx context.Context, scope dto.Scope) int64 {
	var count int64
	var err error

	switch scope.EntityType {
	case model.EntityCourseSections:
		count, err = o.repo.Course.CountByScope(ctx, scope.Institution, scope.Term, scope.Subject)
	case model.EntityProfessor, model.EntityReviews:
		count, err = o.repo.Professor.CountByName(ctx, scope.Institution, scope.Professor)
	default:
		return -1
	}
	if err != nil {
		o.logger.Warn("历史基线查询失败，按未知处理", zap.String("scope", scope.Key()), zap.Error(err))
		return -1
	}
	return count
}

// classify 质量门：判定主连接器结果是否可直接采用
func (o *ingestOrchestrator) classify(result dto.IngestionResult, baseline int64) gateClass {
	if !result.Success {
		return gateFailed
	}

	sig := result.Signals
	switch {
	case sig.Items > 0 && sig.SubItems > 0:
		return gateHealthy
	case sig.Items > 0 && sig.SubItems == 0:
		// 所有项都没有子项：典型的"展开步骤失效"形态
		return gateIncomplete
	case baseline > 0:
		// 以往有数据、这次为空：可疑
		return gateIncomplete
	default:
		// 无项且无正基线
		if o.cfg.Scraper.EmptyWithoutBaseline == config.EmptyFallback {
			return gateIncomplete
		}
		return gateEmptyValid
	}
}

// FetchWithFallback 实现 IngestOrchestrator
//
// 流程：主连接器（经熔断器）→ 质量门 → 视分级决定是否单次兜底备用连接器
func (o *ingestOrchestrator) FetchWithFallback(ctx context.Context, scope dto.Scope) dto.IngestionResult {
	var (
		primaryResult    dto.IngestionResult
		primaryAttempted bool
		primaryDesc      string
		class            = gateFailed
	)

	// 1. 主连接器
	switch {
	case !o.cfg.Scraper.PrimaryEnabled:
		primaryDesc = "主连接器已禁用"
	default:
		result, err := fetchThrough(ctx, o.primaryBreaker, o.primary, scope)
		if errors.Is(err, breaker.ErrOpen) {
			primaryDesc = "主连接器熔断器打开，调用被拒绝"
			o.logger.Warn("主连接器熔断中，直接走备用路径", zap.String("scope", scope.Key()))
		} else {
			primaryAttempted = true
			primaryResult = result

			// 2. 质量门
			baseline := o.historicalBaseline(ctx, scope)
			class = o.classify(result, baseline)
			o.logger.Debug("质量门分级",
				zap.String("scope", scope.Key()),
				zap.String("class", class.String()),
				zap.Int64("baseline", baseline),
				zap.Int("items", result.Signals.Items),
				zap.Int("sub_items", result.Signals.SubItems),
			)

			switch class {
			case gateHealthy, gateEmptyValid:
				if result.Signals.EmptyItems > 0 {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("%d 个数据项没有子项", result.Signals.EmptyItems))
				}
				o.maybeShadowCompare(scope, result)
				return result
			case gateIncomplete:
				primaryDesc = fmt.Sprintf("主连接器结果可疑（%s：%d 项 / %d 子项）",
					class, result.Signals.Items, result.Signals.SubItems)
			case gateFailed:
				primaryDesc = fmt.Sprintf("主连接器失败: %s", result.Error)
			}
		}
	}

	// 3. 备用连接器（单次兜底）
	if !o.cfg.Scraper.FallbackEnabled {
		// 备用被禁用：可疑但可用的主结果仍然返回，附警告
		if primaryAttempted && primaryResult.Success {
			primaryResult.Warnings = append(primaryResult.Warnings, primaryDesc+"；备用连接器已禁用")
			return primaryResult
		}
		return dto.FailedResult(dto.SourceNone, primaryDesc+"；备用连接器已禁用")
	}

	fbResult, err := fetchThrough(ctx, o.fallbackBreaker, o.fallback, scope)
	if errors.Is(err, breaker.ErrOpen) {
		return o.degraded(scope, primaryResult, primaryAttempted, primaryDesc, "备用连接器熔断器打开，调用被拒绝")
	}

	if fbResult.Success {
		// 主路径被配置禁用时才标记纯 fallback；熔断拒绝或失败都算走过主路径
		if o.cfg.Scraper.PrimaryEnabled {
			fbResult.Source = dto.SourcePrimaryFallback
		}
		fbResult.Warnings = append(fbResult.Warnings, fmt.Sprintf("触发备用路径: %s", primaryDesc))
		o.logger.Info("备用连接器兜底成功",
			zap.String("scope", scope.Key()),
			zap.String("reason", primaryDesc),
			zap.Int("items", fbResult.Signals.Items),
		)
		return fbResult
	}

	return o.degraded(scope, primaryResult, primaryAttempted, primaryDesc, fbResult.Error)
}

// degraded 构造两条路径均不可用时的降级终态
// 主结果虽可疑但成功时，降级为"带警告返回主结果"而非丢弃数据
func (o *ingestOrchestrator) degraded(scope dto.Scope, primaryResult dto.IngestionResult, primaryAttempted bool, primaryDesc, fallbackDesc string) dto.IngestionResult {
	if primaryAttempted && primaryResult.Success {
		primaryResult.Warnings = append(primaryResult.Warnings,
			primaryDesc,
			fmt.Sprintf("备用路径也不可用: %s", fallbackDesc),
		)
		return primaryResult
	}

	o.logger.Error("两条数据源路径均失败，返回降级终态",
		zap.String("scope", scope.Key()),
		zap.String("primary", primaryDesc),
		zap.String("fallback", fallbackDesc),
	)
	return dto.FailedResult(dto.SourceNone,
		fmt.Sprintf("主路径: %s；备用路径: %s", primaryDesc, fallbackDesc))
}

// maybeShadowCompare 影子模式：主结果已采用时，后台再跑一次备用路径做信号对比
// 只记日志，绝不改变已返回的结果
func (o *ingestOrchestrator) maybeShadowCompare(scope dto.Scope, served dto.IngestionResult) {
	if !o.cfg.Scraper.ShadowMode || !o.cfg.Scraper.FallbackEnabled {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("影子对比发生未预期缺陷", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Scraper.FallbackTimeout+5*time.Second)
		defer cancel()

		shadow := o.fallback.Fetch(ctx, scope)
		if !shadow.Success {
			o.logger.Info("影子对比：备用路径失败",
				zap.String("scope", scope.Key()),
				zap.String("error", shadow.Error),
			)
			return
		}

		o.logger.Info("影子对比完成",
			zap.String("scope", scope.Key()),
			zap.Int("served_items", served.Signals.Items),
			zap.Int("shadow_items", shadow.Signals.Items),
			zap.Int("served_sub_items", served.Signals.SubItems),
			zap.Int("shadow_sub_items", shadow.Signals.SubItems),
		)
	}()
}
