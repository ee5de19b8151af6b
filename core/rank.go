package core

import "context"

// RankRequest 是一次重排请求：待排序的候选 id 集合加上查询上下文。
// 构造后不可变；未知字段在服务入口被拒绝。
type RankRequest struct {
	// IDs 候选物品 id（有序、非空）
	IDs []string
	// QueryPhrases 检索词（有序，可为空）
	QueryPhrases []string
	// QueryAnimalCategoryID 类目过滤（可选）
	QueryAnimalCategoryID *int
	// QueryAnimalSubcategoryID 子类目过滤（可选）
	QueryAnimalSubcategoryID *int
}

// RankResponse 是重排结果：候选 id 的一个排列（或已排序子集），无重复。
type RankResponse struct {
	IDs []string
}

// FeatureRow 是送入排序模型的一行特征：物品属性与请求级查询上下文的拼接。
// 每个候选物品一行。
type FeatureRow struct {
	AnimalID                 string
	AnimalCategoryID         int
	AnimalSubcategoryID      int
	Name                     string
	Description              string
	QueryPhrases             string // "."-joined
	QueryAnimalCategoryID    *int
	QueryAnimalSubcategoryID *int

	// Features 是可选的数值特征补充（如特征仓库在线特征），缺省为空
	Features map[string]float64
}

// Prediction 是排序模型对单个候选的输出。
// Score 为排序位次（0 为最相关）；模型只返回有序 id 列表时以位次充当分数。
type Prediction struct {
	AnimalID string
	Score    float64
}

// Predictor 是排序调用的领域接口。
//
// 实现方（rank.Client）的失败策略：上游不可达、非成功状态码或未配置端点时，
// 按输入行的原始顺序降级返回，不向调用方抛错——排序是相关性优化而非正确性要求。
// 唯一例外是 AB 信封结构不匹配（ErrEnvelopeMismatch），必须显式暴露。
type Predictor interface {
	// Predict 对一批特征行打分，返回按相关性降序排列的预测结果。
	// req 提供请求级查询上下文与候选的原始顺序（降级兜底用），
	// rows 为每个候选一行的特征输入。
	Predict(ctx context.Context, req *RankRequest, rows []FeatureRow) ([]Prediction, error)
}

// Rank 错误定义（使用统一的 DomainError）
var (
	// ErrEnvelopeMismatch 表示 AB 测试响应缺少约定的嵌套结构
	ErrEnvelopeMismatch = NewDomainError(ModuleRank, ErrorCodeEnvelopeMismatch, "rank: ab test envelope mismatch")

	// ErrRankUnavailable 表示排序端点不可用（内部降级用，不出 rank 包）
	ErrRankUnavailable = NewDomainError(ModuleRank, ErrorCodeUnavailable, "rank: endpoint unavailable")
)
