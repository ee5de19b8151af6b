package core

import "context"

// Cache 是结果缓存的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 缓存是 best-effort 的外部能力，不是数据源：Get 失败等同于未命中，
//     Set 失败只记日志，均不影响响应路径
//
// 实现：
//   - store.MemoryStore 实现此接口（测试/开发/原型）
//   - store.RedisStore 实现此接口（生产环境）
type Cache interface {
	// Name 返回缓存后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，key 不存在时返回 ErrCacheNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set 写入单个 key-value，覆盖旧值
	Set(ctx context.Context, key, value string) error

	// Close 关闭连接/释放资源
	Close() error
}

// ErrCacheNotFound 表示 key 不存在
var ErrCacheNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

// IsCacheNotFound 检查错误是否为 key 不存在
func IsCacheNotFound(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
