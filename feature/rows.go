package feature

import (
	"strings"

	"github.com/rushteam/rankproxy/core"
)

// BuildRows 把物品属性与请求级查询上下文拼接为特征行，每个候选一行。
// 行的顺序跟随 animals 的顺序；请求中存在但数据源没有返回的 id 不产生行。
func BuildRows(animals []core.Animal, req *core.RankRequest) []core.FeatureRow {
	phrases := JoinPhrases(req.QueryPhrases)
	rows := make([]core.FeatureRow, 0, len(animals))
	for _, a := range animals {
		rows = append(rows, core.FeatureRow{
			AnimalID:                 a.ID,
			AnimalCategoryID:         a.AnimalCategoryID,
			AnimalSubcategoryID:      a.AnimalSubcategoryID,
			Name:                     a.Name,
			Description:              a.Description,
			QueryPhrases:             phrases,
			QueryAnimalCategoryID:    req.QueryAnimalCategoryID,
			QueryAnimalSubcategoryID: req.QueryAnimalSubcategoryID,
		})
	}
	return rows
}

// JoinPhrases 把检索词拼为 "."-joined 形式，与模型训练时的查询表示保持一致。
func JoinPhrases(phrases []string) string {
	return strings.Join(phrases, ".")
}
