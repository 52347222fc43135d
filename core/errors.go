package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - Catalog 错误：NOT_FOUND, UNAVAILABLE
//   - Resolver 错误：INVALID_INPUT（请求校验失败，直接返回调用方）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "UNAVAILABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "catalog"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsDomainError 检查错误链中是否包含 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
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

// WrapDomainError 创建携带底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 上游不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore    = "store"    // 缓存存储
	ModuleCatalog  = "catalog"  // 商品/订单读取
	ModuleRecall   = "recall"   // 召回引擎
	ModuleResolver = "resolver" // 推荐编排
	ModuleFeedback = "feedback" // 点击/购买追踪
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
