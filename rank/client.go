package rank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/rankproxy/core"
)

// Payload 指定调用排序端点时的请求体形态。
const (
	// PayloadRequest 发送查询上下文（ids + query），端点自行构建特征。
	// 与 AB 代理和其他 reorder 服务互通时使用，是默认形态。
	PayloadRequest = "request"
	// PayloadRows 发送展开的特征行（{"inputs": [...]}），
	// 端点是直接消费特征的模型服务时使用。
	PayloadRows = "rows"
)

// Client 是排序调用的 HTTP 实现，实现 core.Predictor。
//
// 失败策略：排序是相关性优化而非正确性要求。端点未配置、不可达或返回非成功
// 状态码时，按候选的原始顺序降级返回，不向调用方抛错。
// 唯一的例外是 AB 信封结构不匹配：这说明变体之间协议发生偏移，必须显式报错。
type Client struct {
	// Endpoint 排序端点地址；为空表示未配置，直接降级
	Endpoint string
	// ABTest 为 true 时出站请求包一层信封，回程从信封中取出内层响应
	ABTest bool
	// UserID AB 测试的客户端标识（可选，信封中携带）
	UserID string
	// Payload 请求体形态：PayloadRequest（默认）或 PayloadRows
	Payload string
	// Timeout 请求超时
	Timeout time.Duration

	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientOption 配置 Client
type ClientOption func(*Client)

// WithABTest 开启 AB 测试信封，userID 为客户端标识（可为空）
func WithABTest(userID string) ClientOption {
	return func(c *Client) {
		c.ABTest = true
		c.UserID = userID
	}
}

// WithPayload 设置请求体形态：PayloadRequest 或 PayloadRows
func WithPayload(payload string) ClientOption {
	return func(c *Client) {
		if payload == PayloadRequest || payload == PayloadRows {
			c.Payload = payload
		}
	}
}

// WithTimeout 设置请求超时
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.Timeout = timeout
		if c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient 设置自定义 HTTP 客户端
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient 创建排序客户端。endpoint 为空时所有调用按原始顺序降级。
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		Endpoint: endpoint,
		Payload:  PayloadRequest,
		Timeout:  10 * time.Second,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

// 出站请求/响应结构，与 reorder 服务的对外接口保持一致
type wireRequest struct {
	IDs                      []string `json:"ids"`
	QueryPhrases             []string `json:"query_phrases"`
	QueryAnimalCategoryID    *int     `json:"query_animal_category_id"`
	QueryAnimalSubcategoryID *int     `json:"query_animal_subcategory_id"`
}

type wireRow struct {
	AnimalID                 string             `json:"animal_id"`
	AnimalCategoryID         int                `json:"animal_category_id"`
	AnimalSubcategoryID      int                `json:"animal_subcategory_id"`
	Name                     string             `json:"name"`
	Description              string             `json:"description"`
	QueryPhrases             string             `json:"query_phrases"`
	QueryAnimalCategoryID    *int               `json:"query_animal_category_id"`
	QueryAnimalSubcategoryID *int               `json:"query_animal_subcategory_id"`
	Features                 map[string]float64 `json:"features,omitempty"`
}

type wireResponse struct {
	IDs []string `json:"ids"`
}

type abEnvelopeRequest struct {
	UserID  string `json:"user_id,omitempty"`
	Request any    `json:"request"`
}

// Predict 实现 core.Predictor。
func (c *Client) Predict(ctx context.Context, req *core.RankRequest, rows []core.FeatureRow) ([]core.Prediction, error) {
	if c.Endpoint == "" {
		c.logger.Info().Msg("rank endpoint not configured, keep original order")
		return originalOrder(req.IDs), nil
	}

	payload, err := c.buildPayload(req, rows)
	if err != nil {
		// 构造失败属于本地缺陷，不应把请求打到线上；按原始顺序降级并记日志
		c.logger.Error().Err(err).Msg("build rank payload failed, keep original order")
		return originalOrder(req.IDs), nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error().Err(err).Msg("create rank request failed, keep original order")
		return originalOrder(req.IDs), nil
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", c.Endpoint).Msg("rank endpoint unreachable, keep original order")
		return originalOrder(req.IDs), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn().Err(err).Msg("read rank response failed, keep original order")
		return originalOrder(req.IDs), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", c.Endpoint).
			Msg("rank endpoint returned non-success status, keep original order")
		return originalOrder(req.IDs), nil
	}

	ids, err := c.parseResponse(body)
	if err != nil {
		if core.IsEnvelopeMismatch(err) {
			// 信封不匹配说明变体间协议偏移，显式暴露，不降级
			return nil, err
		}
		c.logger.Warn().Err(err).Msg("parse rank response failed, keep original order")
		return originalOrder(req.IDs), nil
	}

	predictions := make([]core.Prediction, 0, len(ids))
	for i, id := range ids {
		predictions = append(predictions, core.Prediction{AnimalID: id, Score: float64(i)})
	}
	return predictions, nil
}

func (c *Client) buildPayload(req *core.RankRequest, rows []core.FeatureRow) ([]byte, error) {
	var inner any
	switch c.Payload {
	case PayloadRows:
		wireRows := make([]wireRow, 0, len(rows))
		for _, row := range rows {
			wireRows = append(wireRows, wireRow{
				AnimalID:                 row.AnimalID,
				AnimalCategoryID:         row.AnimalCategoryID,
				AnimalSubcategoryID:      row.AnimalSubcategoryID,
				Name:                     row.Name,
				Description:              row.Description,
				QueryPhrases:             row.QueryPhrases,
				QueryAnimalCategoryID:    row.QueryAnimalCategoryID,
				QueryAnimalSubcategoryID: row.QueryAnimalSubcategoryID,
				Features:                 row.Features,
			})
		}
		inner = map[string]any{"inputs": wireRows}
	default:
		phrases := req.QueryPhrases
		if phrases == nil {
			phrases = []string{}
		}
		inner = wireRequest{
			IDs:                      req.IDs,
			QueryPhrases:             phrases,
			QueryAnimalCategoryID:    req.QueryAnimalCategoryID,
			QueryAnimalSubcategoryID: req.QueryAnimalSubcategoryID,
		}
	}

	if c.ABTest {
		return json.Marshal(abEnvelopeRequest{UserID: c.UserID, Request: inner})
	}
	return json.Marshal(inner)
}

func (c *Client) parseResponse(body []byte) ([]string, error) {
	if c.ABTest {
		// 信封形态：{"endpoint": "...", "response": {"ids": [...]}}
		var envelope struct {
			Endpoint string          `json:"endpoint"`
			Response json.RawMessage `json:"response"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrEnvelopeMismatch, err)
		}
		if len(envelope.Response) == 0 || string(envelope.Response) == "null" {
			return nil, fmt.Errorf("%w: missing response field", core.ErrEnvelopeMismatch)
		}
		var inner wireResponse
		if err := json.Unmarshal(envelope.Response, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrEnvelopeMismatch, err)
		}
		if inner.IDs == nil {
			return nil, fmt.Errorf("%w: response missing ids", core.ErrEnvelopeMismatch)
		}
		return inner.IDs, nil
	}

	var out wireResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode rank response: %w", err)
	}
	if len(out.IDs) == 0 {
		// 候选集非空时空的 ids 不可用，视同解析失败，交给调用侧降级
		return nil, fmt.Errorf("rank response missing ids")
	}
	return out.IDs, nil
}

func originalOrder(ids []string) []core.Prediction {
	predictions := make([]core.Prediction, 0, len(ids))
	for i, id := range ids {
		predictions = append(predictions, core.Prediction{AnimalID: id, Score: float64(i)})
	}
	return predictions
}

// 确保 Client 实现了 core.Predictor 接口
var _ core.Predictor = (*Client)(nil)
