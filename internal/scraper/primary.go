package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/dto"
)

// PrimaryConnector 主连接器
//
// 驱动抓取后端的交互式多步流程（导航 → 筛选 → 枚举 → 展开 → 提取），
// 并要求结构化响应。速度快、覆盖全，但对站点改版敏感
type PrimaryConnector struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger
}

// NewPrimaryConnector 创建主连接器
func NewPrimaryConnector(baseURL string, limiter *rate.Limiter, timeout time.Duration, maxRetries int, logger *zap.Logger) *PrimaryConnector {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &PrimaryConnector{
		baseURL:    baseURL,
		client:     newHTTPClient(),
		limiter:    limiter,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Name 实现 Connector
func (c *PrimaryConnector) Name() string {
	return "primary-connector"
}

// Fetch 实现 Connector
// 有界重试仅针对传输层瞬时失败；后端明确上报的环节失败不重试
func (c *PrimaryConnector) Fetch(ctx context.Context, scope dto.Scope) (result dto.IngestionResult) {
	// 最后一道防线：任何意外缺陷都折叠进结果信封
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("主连接器发生未预期缺陷", zap.Any("panic", r))
			result = dto.FailedResult(dto.SourcePrimary, fmt.Sprintf("%s: 连接器内部缺陷: %v", ClassParse, r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(newFetchRequest(scope))
	if err != nil {
		return dto.FailedResult(dto.SourcePrimary, fmt.Sprintf("%s: 构造请求失败: %v", ClassParse, err))
	}

	url := c.baseURL + "/v1/interactive/fetch"

	var resp *backendResponse
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewConstant(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, callErr := doFetch(ctx, c.client, c.limiter, http.MethodPost, url, bytes.NewReader(body))
		if callErr != nil {
			var te *transientError
			if errors.As(callErr, &te) {
				c.logger.Warn("主连接器调用瞬时失败，准备重试",
					zap.String("scope", scope.Key()),
					zap.Error(callErr),
				)
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		resp = r
		return nil
	})
	if err != nil {
		class := classifyFetchError(err)
		c.logger.Warn("主连接器抓取失败",
			zap.String("scope", scope.Key()),
			zap.String("class", class),
			zap.Error(err),
		)
		return dto.FailedResult(dto.SourcePrimary, fmt.Sprintf("%s: %v", class, err))
	}

	result = resultFromBackend(dto.SourcePrimary, resp)
	if result.Success {
		c.logger.Debug("主连接器抓取完成",
			zap.String("scope", scope.Key()),
			zap.Int("items", result.Signals.Items),
			zap.Int("sub_items", result.Signals.SubItems),
		)
	}
	return result
}
