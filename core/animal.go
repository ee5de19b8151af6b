package core

import "context"

// Animal 是物品数据源返回的单条记录，排序特征的原料。
type Animal struct {
	ID                  string
	AnimalCategoryID    int
	AnimalSubcategoryID int
	Name                string
	Description         string
}

// AnimalQuery 是按 id 集合批量查询的条件。
type AnimalQuery struct {
	IDs []string
}

// AnimalRepository 是物品数据源的领域接口。
//
// 数据源是外部协作方（data-manager 服务），本服务只消费 select_all 能力。
// 查询失败向上传播：没有物品数据就无法构建特征，也无法给出原始顺序兜底。
type AnimalRepository interface {
	// SelectAll 按 id 批量拉取物品记录，返回顺序不做保证
	SelectAll(ctx context.Context, query AnimalQuery) ([]Animal, error)
}

// ErrRepositoryUnavailable 表示物品数据源不可用
var ErrRepositoryUnavailable = NewDomainError(ModuleRepository, ErrorCodeUnavailable, "repository: animal data source unavailable")
