package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/dto"
)

// FallbackConnector 备用连接器
//
// 走抓取后端更慢但更确定的脚本化提取路径，仅在主连接器不可用
// 或结果可疑时使用
type FallbackConnector struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger
}

// NewFallbackConnector 创建备用连接器
func NewFallbackConnector(baseURL string, limiter *rate.Limiter, timeout time.Duration, maxRetries int, logger *zap.Logger) *FallbackConnector {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &FallbackConnector{
		baseURL:    baseURL,
		client:     newHTTPClient(),
		limiter:    limiter,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Name 实现 Connector
func (c *FallbackConnector) Name() string {
	return "fallback-connector"
}

// Fetch 实现 Connector
func (c *FallbackConnector) Fetch(ctx context.Context, scope dto.Scope) (result dto.IngestionResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("备用连接器发生未预期缺陷", zap.Any("panic", r))
			result = dto.FailedResult(dto.SourceFallback, fmt.Sprintf("%s: 连接器内部缺陷: %v", ClassParse, r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("entity_type", string(scope.EntityType))
	q.Set("institution", scope.Institution)
	if scope.Term != "" {
		q.Set("term", scope.Term)
	}
	if scope.Subject != "" {
		q.Set("subject", scope.Subject)
	}
	if scope.Professor != "" {
		q.Set("professor", scope.Professor)
	}
	fetchURL := c.baseURL + "/v1/static/fetch?" + q.Encode()

	var resp *backendResponse
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewConstant(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, callErr := doFetch(ctx, c.client, c.limiter, http.MethodGet, fetchURL, nil)
		if callErr != nil {
			var te *transientError
			if errors.As(callErr, &te) {
				c.logger.Warn("备用连接器调用瞬时失败，准备重试",
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
		c.logger.Warn("备用连接器抓取失败",
			zap.String("scope", scope.Key()),
			zap.String("class", class),
			zap.Error(err),
		)
		return dto.FailedResult(dto.SourceFallback, fmt.Sprintf("%s: %v", class, err))
	}

	result = resultFromBackend(dto.SourceFallback, resp)
	if result.Success {
		c.logger.Debug("备用连接器抓取完成",
			zap.String("scope", scope.Key()),
			zap.Int("items", result.Signals.Items),
			zap.Int("sub_items", result.Signals.SubItems),
		)
	}
	return result
}
