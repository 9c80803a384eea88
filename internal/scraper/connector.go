// Package scraper 封装对外部抓取后端的两条连接器路径
//
// 连接器契约：Fetch 在调用方给定的超时内返回统一的 IngestionResult 信封，
// 任何失败形态（超时、畸形响应、零结果）都编码在返回值里，绝不向上抛出
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/KBesada24/ScheduleFirst-AI-sub001/internal/dto"
)

// ── 失败分类 ──

const (
	// ClassNavigation 导航失败（页面不可达、自动化会话建立失败）
	ClassNavigation = "navigation-failure"
	// ClassFilterMismatch 筛选条件与站点选项不匹配
	ClassFilterMismatch = "filter-mismatch"
	// ClassExpansion 展开明细步骤失败
	ClassExpansion = "expansion-failure"
	// ClassParse 响应解析失败
	ClassParse = "parse-failure"
	// ClassTimeout 调用超时
	ClassTimeout = "timeout"
)

// Connector 数据源连接器统一契约
// Fetch 绝不返回 error、绝不 panic 越过边界；超时由 ctx 控制
type Connector interface {
	Name() string
	Fetch(ctx context.Context, scope dto.Scope) dto.IngestionResult
}

// ── 抓取后端响应 ──

// backendResponse 抓取后端的统一响应体
// 失败时 stage 标记出错环节：navigate / filter / expand / extract
type backendResponse struct {
	Success    bool                   `json:"success"`
	Stage      string                 `json:"stage,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Courses    []dto.ScrapedCourse    `json:"courses,omitempty"`
	Professors []dto.ScrapedProfessor `json:"professors,omitempty"`
}

// classifyStage 将后端上报的出错环节映射为失败分类
func classifyStage(stage string) string {
	switch stage {
	case "navigate":
		return ClassNavigation
	case "filter":
		return ClassFilterMismatch
	case "expand":
		return ClassExpansion
	case "extract", "parse":
		return ClassParse
	default:
		return ClassParse
	}
}

// fetchRequest 发往抓取后端的请求体
type fetchRequest struct {
	EntityType  string `json:"entity_type"`
	Institution string `json:"institution"`
	Term        string `json:"term,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Professor   string `json:"professor,omitempty"`
	Structured  bool   `json:"structured"`
}

func newFetchRequest(scope dto.Scope) fetchRequest {
	return fetchRequest{
		EntityType:  string(scope.EntityType),
		Institution: scope.Institution,
		Term:        scope.Term,
		Subject:     scope.Subject,
		Professor:   scope.Professor,
		Structured:  true,
	}
}

// ── HTTP 调用 ──

// transientError 可重试的传输层失败（网络错误、5xx）
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// doFetch 对抓取后端执行一次 HTTP 调用并解码响应
// 返回 *transientError 表示该次失败可以重试
func doFetch(ctx context.Context, client *http.Client, limiter *rate.Limiter, method, url string, body io.Reader) (*backendResponse, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &transientError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &transientError{err: fmt.Errorf("抓取后端返回 HTTP %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("抓取后端返回 HTTP %d", resp.StatusCode)
	}

	var decoded backendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析抓取后端响应失败: %w", err)
	}
	return &decoded, nil
}

// classifyFetchError 将传输层错误映射为失败分类
func classifyFetchError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var te *transientError
	if errors.As(err, &te) {
		return ClassNavigation
	}
	return ClassParse
}

// resultFromBackend 将后端响应归一化为 IngestionResult（含质量信号）
func resultFromBackend(source dto.IngestSource, resp *backendResponse) dto.IngestionResult {
	if !resp.Success {
		class := classifyStage(resp.Stage)
		msg := resp.Error
		if msg == "" {
			msg = "抓取后端未给出错误详情"
		}
		return dto.FailedResult(source, fmt.Sprintf("%s: %s", class, msg))
	}

	result := dto.IngestionResult{
		Success:    true,
		Source:     source,
		Courses:    resp.Courses,
		Professors: resp.Professors,
	}
	result.ComputeSignals()
	return result
}

// newHTTPClient 连接器专用 HTTP 客户端
// 总超时由每次 Fetch 的 ctx 控制，这里只兜底连接级超时
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
