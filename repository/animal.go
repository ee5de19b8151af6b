package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/rankproxy/core"
)

// HTTPAnimalRepository 是通过 HTTP 调用 data-manager 服务的 AnimalRepository 实现。
//
// 请求格式（JSON）：
//
//	{"ids": ["a", "b", ...]}
//
// 响应格式（JSON）：
//
//	[{"id": "a", "animal_category_id": 1, "animal_subcategory_id": 2,
//	  "name": "...", "description": "..."}, ...]
//
// 候选集可能大于单次查询上限，按 BatchSize 分片后并发拉取再合并。
type HTTPAnimalRepository struct {
	// Endpoint 数据源地址，如 "http://data-manager:8080/v0/animal/search"
	Endpoint string
	// BatchSize 单次查询的 id 上限，默认 200
	BatchSize int
	// MaxConcurrent 分片并发上限，默认 4
	MaxConcurrent int
	// Timeout 请求超时
	Timeout time.Duration

	client *http.Client
	logger zerolog.Logger
}

// HTTPAnimalRepositoryOption 配置 HTTPAnimalRepository
type HTTPAnimalRepositoryOption func(*HTTPAnimalRepository)

// WithBatchSize 设置单次查询的 id 上限
func WithBatchSize(n int) HTTPAnimalRepositoryOption {
	return func(r *HTTPAnimalRepository) {
		if n > 0 {
			r.BatchSize = n
		}
	}
}

// WithMaxConcurrent 设置分片并发上限
func WithMaxConcurrent(n int) HTTPAnimalRepositoryOption {
	return func(r *HTTPAnimalRepository) {
		if n > 0 {
			r.MaxConcurrent = n
		}
	}
}

// WithTimeout 设置请求超时
func WithTimeout(timeout time.Duration) HTTPAnimalRepositoryOption {
	return func(r *HTTPAnimalRepository) {
		r.Timeout = timeout
	}
}

// WithHTTPClient 设置自定义 HTTP 客户端
func WithHTTPClient(client *http.Client) HTTPAnimalRepositoryOption {
	return func(r *HTTPAnimalRepository) {
		r.client = client
	}
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) HTTPAnimalRepositoryOption {
	return func(r *HTTPAnimalRepository) {
		r.logger = logger
	}
}

func NewHTTPAnimalRepository(endpoint string, opts ...HTTPAnimalRepositoryOption) *HTTPAnimalRepository {
	r := &HTTPAnimalRepository{
		Endpoint:      endpoint,
		BatchSize:     200,
		MaxConcurrent: 4,
		Timeout:       10 * time.Second,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: r.Timeout}
	}
	return r
}

type animalRecord struct {
	ID                  string `json:"id"`
	AnimalCategoryID    int    `json:"animal_category_id"`
	AnimalSubcategoryID int    `json:"animal_subcategory_id"`
	Name                string `json:"name"`
	Description         string `json:"description"`
}

// SelectAll 实现 core.AnimalRepository。
// 分片并发拉取，任一分片失败则整体失败（没有物品数据就无法构建特征）。
func (r *HTTPAnimalRepository) SelectAll(ctx context.Context, query core.AnimalQuery) ([]core.Animal, error) {
	if len(query.IDs) == 0 {
		return nil, nil
	}

	chunks := chunkIDs(query.IDs, r.BatchSize)

	var (
		mu      sync.Mutex
		all     = make([]core.Animal, 0, len(query.IDs))
		eg, gtx = errgroup.WithContext(ctx)
	)
	eg.SetLimit(r.MaxConcurrent)

	for _, ids := range chunks {
		ids := ids
		eg.Go(func() error {
			animals, err := r.selectChunk(gtx, ids)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, animals...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		r.logger.Error().Err(err).Int("ids", len(query.IDs)).Msg("animal select_all failed")
		return nil, fmt.Errorf("%w: %v", core.ErrRepositoryUnavailable, err)
	}
	return all, nil
}

func (r *HTTPAnimalRepository) selectChunk(ctx context.Context, ids []string) ([]core.Animal, error) {
	reqBody := map[string]any{"ids": ids}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("select_all call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("select_all error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var records []animalRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	animals := make([]core.Animal, 0, len(records))
	for _, rec := range records {
		animals = append(animals, core.Animal{
			ID:                  rec.ID,
			AnimalCategoryID:    rec.AnimalCategoryID,
			AnimalSubcategoryID: rec.AnimalSubcategoryID,
			Name:                rec.Name,
			Description:         rec.Description,
		})
	}
	return animals, nil
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		return [][]string{ids}
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// 确保 HTTPAnimalRepository 实现了 core.AnimalRepository 接口
var _ core.AnimalRepository = (*HTTPAnimalRepository)(nil)
