package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX）
//
// 使用场景：
//   - Cache 错误：NOT_FOUND, UNAVAILABLE
//   - Rank 错误：ENVELOPE_MISMATCH, UNAVAILABLE
//   - Repository 错误：UNAVAILABLE
//   - 请求校验错误：INVALID_INPUT
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "ENVELOPE_MISMATCH"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "rank", "abtest"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// GetDomainError 获取 DomainError（支持 %w 包装链），如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound         = "NOT_FOUND"          // 资源不存在
	ErrorCodeUnavailable      = "UNAVAILABLE"        // 上游服务不可用
	ErrorCodeInvalidInput     = "INVALID_INPUT"      // 请求无效
	ErrorCodeEnvelopeMismatch = "ENVELOPE_MISMATCH"  // AB 测试响应结构不匹配
)

// 模块名称常量
const (
	ModuleStore      = "store"      // 结果缓存模块
	ModuleRank       = "rank"       // 排序调用模块
	ModuleABTest     = "abtest"     // AB 测试路由模块
	ModuleRepository = "repository" // 物品数据源模块
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeUnavailable
	}
	return false
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeInvalidInput
	}
	return false
}

// IsEnvelopeMismatch 检查错误是否为 ENVELOPE_MISMATCH。
// 该错误表示不同排序变体之间的协议结构发生偏移，必须显式暴露，不能静默回退。
func IsEnvelopeMismatch(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeEnvelopeMismatch
	}
	return false
}
