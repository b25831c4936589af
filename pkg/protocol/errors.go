package protocol

// ErrorClass 错误分类，接口层据此映射状态码；调用方据此区分可重试与不可重试
type ErrorClass string

const (
	ClassValidation ErrorClass = "VALIDATION" // 输入数据非法或不一致
	ClassTemporal   ErrorClass = "TEMPORAL"   // 与调用时刻相关：过期、未开始、窗口外
	ClassEconomic   ErrorClass = "ECONOMIC"   // 业务规则拒绝：波动过高、熔断、行权不盈利
	ClassState      ErrorClass = "STATE"      // 重复操作保护：已行权、已执行完毕
	ClassNotFound   ErrorClass = "NOT_FOUND"
)

// Error 具名领域错误。每个哨兵错误都是唯一实例，使用 errors.Is 匹配。
type Error struct {
	Class   ErrorClass
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// NewError 创建具名错误
func NewError(class ErrorClass, code, message string) *Error {
	return &Error{Class: class, Code: code, Message: message}
}

var (
	ErrInvalidOrder   = NewError(ClassValidation, "INVALID_ORDER", "order making and taking amounts must be positive uint256 values")
	ErrInvalidPayload = NewError(ClassValidation, "INVALID_PAYLOAD", "strategy payload could not be decoded")
	ErrInvalidAmount  = NewError(ClassValidation, "INVALID_AMOUNT", "amount must be a non-negative uint256 integer")
)
