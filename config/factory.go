package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/rankproxy/abtest"
	"github.com/rushteam/rankproxy/core"
	"github.com/rushteam/rankproxy/feature"
	"github.com/rushteam/rankproxy/rank"
	"github.com/rushteam/rankproxy/reorder"
	"github.com/rushteam/rankproxy/repository"
	"github.com/rushteam/rankproxy/store"
)

// BuildCache 根据配置构建结果缓存。
func BuildCache(cfg *Config) (core.Cache, error) {
	switch cfg.Cache.Backend {
	case "memory":
		var opts []store.MemoryStoreOption
		if cfg.Cache.TTL > 0 {
			opts = append(opts, store.WithMemoryTTL(time.Duration(cfg.Cache.TTL)*time.Second))
		}
		return store.NewMemoryStore(opts...), nil
	case "redis":
		var opts []store.RedisStoreOption
		if cfg.Cache.TTL > 0 {
			opts = append(opts, store.WithRedisTTL(time.Duration(cfg.Cache.TTL)*time.Second))
		}
		return store.NewRedisStore(cfg.Cache.Addr, cfg.Cache.DB, opts...)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}

// BuildRepository 根据配置构建物品数据源客户端。
func BuildRepository(cfg *Config, logger zerolog.Logger) *repository.HTTPAnimalRepository {
	opts := []repository.HTTPAnimalRepositoryOption{
		repository.WithLogger(logger),
	}
	if cfg.Repository.BatchSize > 0 {
		opts = append(opts, repository.WithBatchSize(cfg.Repository.BatchSize))
	}
	if cfg.Repository.MaxConcurrent > 0 {
		opts = append(opts, repository.WithMaxConcurrent(cfg.Repository.MaxConcurrent))
	}
	if cfg.Repository.Timeout > 0 {
		opts = append(opts, repository.WithTimeout(time.Duration(cfg.Repository.Timeout)*time.Second))
	}
	return repository.NewHTTPAnimalRepository(cfg.Repository.Endpoint, opts...)
}

// BuildPredictor 根据配置构建排序客户端。endpoint 为空时客户端按原始顺序降级。
func BuildPredictor(cfg *Config, logger zerolog.Logger) *rank.Client {
	opts := []rank.ClientOption{
		rank.WithLogger(logger),
		rank.WithPayload(cfg.Rank.Payload),
	}
	if cfg.Rank.ABTest {
		opts = append(opts, rank.WithABTest(cfg.Rank.UserID))
	}
	if cfg.Rank.Timeout > 0 {
		opts = append(opts, rank.WithTimeout(time.Duration(cfg.Rank.Timeout)*time.Second))
	}
	return rank.NewClient(cfg.Rank.Endpoint, opts...)
}

// BuildRegistry 根据配置构建变体注册表。规则在此编译，坏规则让启动失败。
func BuildRegistry(cfg *Config) (*abtest.Registry, error) {
	mappings := make(map[string]core.Endpoint, len(cfg.ABTest.UserIDs))
	for userID, ep := range cfg.ABTest.UserIDs {
		mappings[userID] = core.Endpoint{Name: ep.Name, URL: ep.URL}
	}
	rules := make([]abtest.Rule, 0, len(cfg.ABTest.Rules))
	for _, rc := range cfg.ABTest.Rules {
		rules = append(rules, abtest.Rule{
			Condition: rc.Condition,
			Endpoint:  core.Endpoint{Name: rc.Endpoint.Name, URL: rc.Endpoint.URL},
		})
	}
	return abtest.NewRegistry(
		core.Endpoint{Name: cfg.ABTest.DefaultEndpoint.Name, URL: cfg.ABTest.DefaultEndpoint.URL},
		mappings,
		rules,
	)
}

// BuildRouter 根据配置构建 AB 路由器。
func BuildRouter(registry *abtest.Registry, cfg *Config, logger zerolog.Logger) *abtest.Router {
	opts := []abtest.RouterOption{
		abtest.WithRouterLogger(logger),
	}
	if cfg.ABTest.Timeout > 0 {
		opts = append(opts, abtest.WithRouterTimeout(time.Duration(cfg.ABTest.Timeout)*time.Second))
	}
	if cfg.ABTest.Retries > 0 {
		opts = append(opts, abtest.WithRouterRetries(uint(cfg.ABTest.Retries)))
	}
	return abtest.NewRouter(registry, opts...)
}

// BuildEnricher 根据配置构建 Feast 特征补充器；未启用时返回 nil。
func BuildEnricher(cfg *Config, logger zerolog.Logger) (*feature.FeastEnricher, error) {
	if !cfg.Feast.Enabled {
		return nil, nil
	}
	return feature.NewFeastEnricher(
		cfg.Feast.Host,
		cfg.Feast.Port,
		cfg.Feast.Project,
		cfg.Feast.Features,
		feature.WithEntityKey(cfg.Feast.EntityKey),
		feature.WithEnricherLogger(logger),
	)
}

// BuildUsecase 组装重排用例。enricher 为 nil 时跳过特征补充。
func BuildUsecase(
	cfg *Config,
	repo core.AnimalRepository,
	cache core.Cache,
	predictor core.Predictor,
	enricher reorder.Enricher,
	logger zerolog.Logger,
) *reorder.Usecase {
	opts := []reorder.UsecaseOption{
		reorder.WithUsecaseLogger(logger),
	}
	if enricher != nil {
		opts = append(opts, reorder.WithEnricher(enricher))
	}
	return reorder.NewUsecase(cfg.Model.Name, repo, cache, predictor, opts...)
}
