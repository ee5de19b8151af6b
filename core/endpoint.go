package core

// Endpoint 是一个排序服务变体的目标地址。
type Endpoint struct {
	// Name 变体名称（用于日志与 EndpointResult 标识）
	Name string
	// URL 变体端点地址
	URL string
}

// ErrABUnavailable 表示变体端点在重试耗尽后仍不可达
var ErrABUnavailable = NewDomainError(ModuleABTest, ErrorCodeUnavailable, "abtest: variant endpoint unavailable")

// EndpointResult 是 AB 路由的产物：实际命中的端点与其原始响应体。
// 路由器不代替调用方合成兜底值，非成功状态下也原样返回响应体。
type EndpointResult struct {
	// Endpoint 实际转发到的端点 URL
	Endpoint string
	// StatusCode 上游返回的 HTTP 状态码
	StatusCode int
	// Body 上游返回的原始响应体
	Body []byte
}
