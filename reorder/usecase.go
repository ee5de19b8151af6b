package reorder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/rankproxy/core"
	"github.com/rushteam/rankproxy/feature"
)

// Enricher 在特征行送入排序前做可选的补充（如特征仓库在线特征）。
// feature.FeastEnricher 实现此接口。
type Enricher interface {
	Enrich(ctx context.Context, rows []core.FeatureRow) []core.FeatureRow
}

// Usecase 是重排请求的顶层控制流：
//
//	推导缓存键 → 查缓存 → 命中直接返回
//	                    → 未命中：拉物品 → 构建特征行 → 调排序 → 返回 → 异步回写缓存
//
// 失败语义：
//   - 缓存 Get 失败等同未命中（只记日志/打点，不影响控制流）
//   - 物品拉取失败向上传播（没有物品数据连原始顺序兜底都给不出）
//   - 排序调用的降级在 Predictor 内部完成，到这一层的错误（如信封不匹配）直接传播
//   - 回写在响应路径之外执行，成败调用方均不感知
type Usecase struct {
	modelName string
	repo      core.AnimalRepository
	cache     core.Cache
	predictor core.Predictor

	enricher     Enricher
	writeTimeout time.Duration
	background   func(fn func())
	logger       zerolog.Logger
}

// UsecaseOption 配置 Usecase
type UsecaseOption func(*Usecase)

// WithEnricher 设置特征补充器（可选）
func WithEnricher(enricher Enricher) UsecaseOption {
	return func(u *Usecase) {
		u.enricher = enricher
	}
}

// WithWriteBackTimeout 设置异步回写的超时
func WithWriteBackTimeout(timeout time.Duration) UsecaseOption {
	return func(u *Usecase) {
		if timeout > 0 {
			u.writeTimeout = timeout
		}
	}
}

// WithBackground 设置后台任务的调度方式。默认直接起 goroutine；
// 测试中可注入同步执行器来观测回写。
func WithBackground(background func(fn func())) UsecaseOption {
	return func(u *Usecase) {
		if background != nil {
			u.background = background
		}
	}
}

// WithUsecaseLogger 设置日志
func WithUsecaseLogger(logger zerolog.Logger) UsecaseOption {
	return func(u *Usecase) {
		u.logger = logger
	}
}

// NewUsecase 创建重排用例。modelName 参与缓存键推导，变体之间不可混用。
func NewUsecase(
	modelName string,
	repo core.AnimalRepository,
	cache core.Cache,
	predictor core.Predictor,
	opts ...UsecaseOption,
) *Usecase {
	u := &Usecase{
		modelName:    modelName,
		repo:         repo,
		cache:        cache,
		predictor:    predictor,
		writeTimeout: 5 * time.Second,
		background:   func(fn func()) { go fn() },
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Reorder 执行一次重排。返回的 id 序列要么来自缓存，要么来自实时排序
//（可能是降级后的原始顺序，对调用方同样是成功响应）。
func (u *Usecase) Reorder(ctx context.Context, req *core.RankRequest) (*core.RankResponse, error) {
	phrases := feature.JoinPhrases(req.QueryPhrases)
	key := QueryKey(u.modelName, phrases, req.QueryAnimalCategoryID, req.QueryAnimalSubcategoryID)

	cached, err := u.cache.Get(ctx, key)
	if err == nil && cached != "" {
		cacheHits.Inc()
		u.logger.Debug().Str("key", key).Msg("cache hit")
		return &core.RankResponse{IDs: SplitIDs(cached)}, nil
	}
	if err != nil && !core.IsCacheNotFound(err) {
		// 缓存不可达与未命中走同一条路，只为可观测性区分
		cacheErrors.Inc()
		u.logger.Warn().Err(err).Str("key", key).Msg("cache lookup failed, treating as miss")
	}
	cacheMisses.Inc()

	animals, err := u.repo.SelectAll(ctx, core.AnimalQuery{IDs: req.IDs})
	if err != nil {
		return nil, err
	}

	rows := feature.BuildRows(animals, req)
	if u.enricher != nil {
		rows = u.enricher.Enrich(ctx, rows)
	}

	predictions, err := u.predictor.Predict(ctx, req, rows)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(predictions))
	for _, p := range predictions {
		ids = append(ids, p.AnimalID)
	}

	u.scheduleWriteBack(key, ids)
	return &core.RankResponse{IDs: ids}, nil
}

// scheduleWriteBack 在响应路径之外回写缓存。任务不继承请求的 context：
// 请求返回后任务仍要完成；同键并发回写按后写覆盖处理。
func (u *Usecase) scheduleWriteBack(key string, ids []string) {
	u.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), u.writeTimeout)
		defer cancel()
		if err := u.cache.Set(ctx, key, JoinIDs(ids)); err != nil {
			writeBackFailures.Inc()
			u.logger.Warn().Err(err).Str("key", key).Msg("cache write-back failed")
		}
	})
}
