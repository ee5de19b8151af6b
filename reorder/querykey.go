package reorder

import (
	"strconv"
	"strings"
)

// QueryKey 从 {模型名, 拼接后的检索词, 类目过滤, 子类目过滤} 推导缓存键。
//
// 候选 id 有意不参与推导：缓存按查询意图命中，而不是按候选集命中。
// 这意味着候选集变化后命中仍会返回旧候选集的排序——这是沿用上游系统的
// 刻意取舍（把 id 加入键会让轮换候选集的命中率塌掉），调用方需要自行
// 对结果与当前候选集求交。
func QueryKey(modelName, phrases string, categoryID, subcategoryID *int) string {
	return strings.Join([]string{
		modelName,
		phrases,
		formatFilter(categoryID),
		formatFilter(subcategoryID),
	}, "_")
}

func formatFilter(v *int) string {
	if v == nil {
		return "none"
	}
	return strconv.Itoa(*v)
}

// JoinIDs 把有序 id 序列编码为缓存值（逗号拼接）。
func JoinIDs(ids []string) string {
	return strings.Join(ids, ",")
}

// SplitIDs 把缓存值解码回有序 id 序列。与 JoinIDs 互为逆操作：
// 任何不含逗号的非空 id 序列经 Join/Split 往返后保持原序无损。
func SplitIDs(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, ",")
}
