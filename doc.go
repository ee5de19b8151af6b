// Package rankproxy 是排序请求的路由与缓存代理（Ranking Proxy）。
//
// 设计要点：
// - Cache-first: 缓存键由查询意图（模型名 + 检索词 + 类目过滤）推导，命中直接返回有序 id
// - 降级优先: 排序端点未配置或不可达时按原始顺序返回，排序是优化而非正确性要求
// - AB 分流: 按客户端标识把请求路由到不同排序变体，请求/响应包一层信封互通
package rankproxy

import "github.com/rushteam/rankproxy/core"

// 轻量 facade：便于用户直接 import "rankproxy" 使用核心抽象。
type RankRequest = core.RankRequest
type RankResponse = core.RankResponse
type Predictor = core.Predictor
type Cache = core.Cache
type AnimalRepository = core.AnimalRepository
