package feature

import (
	"context"
	"fmt"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	feasttypes "github.com/feast-dev/feast/sdk/go/protos/feast/types"
	"github.com/rs/zerolog"

	"github.com/rushteam/rankproxy/core"
)

// FeastEnricher 从 Feast Feature Store 在线补充物品级数值特征（如曝光/点赞统计），
// 合并进特征行的 Features 字段。
//
// 补充是 best-effort 的：特征仓库不可达或返回缺失时，记日志并原样返回未补充的行，
// 不影响排序调用——与缓存同级的外部能力，不是数据源。
type FeastEnricher struct {
	client *feastsdk.GrpcClient

	// Project 项目名称
	Project string
	// EntityKey 实体键名称（实体行以物品 id 为值），默认 "animal_id"
	EntityKey string
	// Features 要拉取的特征名称列表，如 ["animal_stats:like_count"]
	Features []string

	logger zerolog.Logger
}

// FeastEnricherOption 配置 FeastEnricher
type FeastEnricherOption func(*FeastEnricher)

// WithEntityKey 设置实体键名称
func WithEntityKey(key string) FeastEnricherOption {
	return func(e *FeastEnricher) {
		if key != "" {
			e.EntityKey = key
		}
	}
}

// WithEnricherLogger 设置日志
func WithEnricherLogger(logger zerolog.Logger) FeastEnricherOption {
	return func(e *FeastEnricher) {
		e.logger = logger
	}
}

// NewFeastEnricher 创建 Feast 在线特征补充器。
// host/port 为 Feast Feature Server 的 gRPC 地址（默认端口 6565）。
func NewFeastEnricher(host string, port int, project string, features []string, opts ...FeastEnricherOption) (*FeastEnricher, error) {
	if port == 0 {
		port = 6565
	}
	client, err := feastsdk.NewGrpcClient(host, port)
	if err != nil {
		return nil, fmt.Errorf("create feast grpc client: %w", err)
	}
	e := &FeastEnricher{
		client:    client,
		Project:   project,
		EntityKey: "animal_id",
		Features:  features,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enrich 按物品 id 批量拉取在线特征并合并进行。失败时返回原始行。
func (e *FeastEnricher) Enrich(ctx context.Context, rows []core.FeatureRow) []core.FeatureRow {
	if e == nil || e.client == nil || len(rows) == 0 || len(e.Features) == 0 {
		return rows
	}

	entityRows := make([]feastsdk.Row, len(rows))
	for i, row := range rows {
		entityRows[i] = feastsdk.Row{
			e.EntityKey: feastsdk.StrVal(row.AnimalID),
		}
	}

	resp, err := e.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: e.Features,
		Entities: entityRows,
		Project:  e.Project,
	})
	if err != nil {
		e.logger.Warn().Err(err).Int("rows", len(rows)).Msg("feast enrichment skipped")
		return rows
	}

	featureRows := resp.Rows()
	if len(featureRows) != len(rows) {
		e.logger.Warn().
			Int("expected", len(rows)).
			Int("got", len(featureRows)).
			Msg("feast row count mismatch, enrichment skipped")
		return rows
	}

	return mergeFeatures(rows, featureRows, e.Features)
}

// mergeFeatures 把逐行拉到的特征值合并进对应特征行的 Features 字段。
// 缺失或非数值类型的特征跳过，不影响其他特征。
func mergeFeatures(rows []core.FeatureRow, values []feastsdk.Row, names []string) []core.FeatureRow {
	for i := range rows {
		rowValues := values[i]
		for _, name := range names {
			val, ok := rowValues[name]
			if !ok || val == nil {
				continue
			}
			f, ok := valueToFloat64(val)
			if !ok {
				continue
			}
			if rows[i].Features == nil {
				rows[i].Features = make(map[string]float64, len(names))
			}
			rows[i].Features[name] = f
		}
	}
	return rows
}

// Close 释放客户端资源。
func (e *FeastEnricher) Close() error {
	e.client = nil
	return nil
}

// valueToFloat64 把 Feast 的 Value oneof 转为 float64，非数值类型返回 false。
func valueToFloat64(v *feasttypes.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.GetVal().(type) {
	case *feasttypes.Value_DoubleVal:
		return val.DoubleVal, true
	case *feasttypes.Value_FloatVal:
		return float64(val.FloatVal), true
	case *feasttypes.Value_Int64Val:
		return float64(val.Int64Val), true
	case *feasttypes.Value_Int32Val:
		return float64(val.Int32Val), true
	case *feasttypes.Value_BoolVal:
		if val.BoolVal {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}
