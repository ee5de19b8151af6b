package abtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/rushteam/rankproxy/core"
)

// Router 把入站的排序请求转发到注册表选出的变体端点。
//
// 重试只覆盖传输层失败（连接拒绝、超时）；HTTP 层的错误状态码不重试，
// 只记日志并把原始响应体返回给调用方——兜底值的合成责任在调用方，不在路由器。
// 每次逻辑调用相互独立，底层连接由 HTTP 客户端池化，可安全并发使用。
type Router struct {
	// Registry 变体注册表
	Registry *Registry
	// Timeout 单次转发的超时
	Timeout time.Duration
	// Retries 传输层失败的重试次数（不含首次尝试）
	Retries uint

	httpClient *http.Client
	logger     zerolog.Logger
}

// RouterOption 配置 Router
type RouterOption func(*Router)

// WithRouterTimeout 设置单次转发超时
func WithRouterTimeout(timeout time.Duration) RouterOption {
	return func(rt *Router) {
		rt.Timeout = timeout
		if rt.httpClient != nil {
			rt.httpClient.Timeout = timeout
		}
	}
}

// WithRouterRetries 设置传输层重试次数
func WithRouterRetries(retries uint) RouterOption {
	return func(rt *Router) {
		rt.Retries = retries
	}
}

// WithRouterHTTPClient 设置自定义 HTTP 客户端
func WithRouterHTTPClient(client *http.Client) RouterOption {
	return func(rt *Router) {
		rt.httpClient = client
	}
}

// WithRouterLogger 设置日志
func WithRouterLogger(logger zerolog.Logger) RouterOption {
	return func(rt *Router) {
		rt.logger = logger
	}
}

// NewRouter 创建 AB 路由器。
func NewRouter(registry *Registry, opts ...RouterOption) *Router {
	rt := &Router{
		Registry: registry,
		Timeout:  10 * time.Second,
		Retries:  2,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.httpClient == nil {
		rt.httpClient = &http.Client{Timeout: rt.Timeout}
	}
	return rt
}

// Route 按 userID 解析端点并转发 payload（原始 JSON 请求体）。
// 返回实际命中的端点与其原始响应；只有重试耗尽后仍无法送达时才返回错误。
func (rt *Router) Route(ctx context.Context, userID string, payload []byte) (*core.EndpointResult, error) {
	endpoint := rt.Registry.Resolve(userID)

	var result *core.EndpointResult
	err := retry.Do(
		func() error {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			httpReq.Header.Set("Accept", "application/json")
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := rt.httpClient.Do(httpReq)
			if err != nil {
				return fmt.Errorf("route to %s: %w", endpoint.URL, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response from %s: %w", endpoint.URL, err)
			}

			result = &core.EndpointResult{
				Endpoint:   endpoint.URL,
				StatusCode: resp.StatusCode,
				Body:       body,
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(rt.Retries+1),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		rt.logger.Error().Err(err).
			Str("endpoint", endpoint.URL).
			Str("user_id", userID).
			Msg("ab route failed after retries")
		return nil, fmt.Errorf("%w: %v", core.ErrABUnavailable, err)
	}

	if result.StatusCode < 200 || result.StatusCode >= 300 {
		// 应用层错误不重试：原样交给调用方检视
		rt.logger.Error().
			Int("status", result.StatusCode).
			Str("endpoint", endpoint.URL).
			Str("user_id", userID).
			Msg("variant endpoint returned non-success status")
	}
	return result, nil
}
