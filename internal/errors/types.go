package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer  ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"

	// 验证错误
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"

	// 计费错误
	ErrCodeInsufficientCredits ErrorCode = "INSUFFICIENT_CREDITS"

	// 数据库错误
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"

	// 外部服务错误
	ErrCodeProviderError ErrorCode = "PROVIDER_ERROR"
	ErrCodeTimeout       ErrorCode = "TIMEOUT"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Type      ErrorType   `json:"type"`
	HTTPCode  int         `json:"-"`
	Details   interface{} `json:"details,omitempty"`
	Cause     error       `json:"-"`
	RequestID string      `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithRequestID 添加请求ID
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// 错误构造函数

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewUnauthorizedError 创建未认证错误
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusUnauthorized,
	}
}

// NewForbiddenError 创建访问拒绝错误
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusForbidden,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// NewInsufficientCreditsError 创建积分不足错误
func NewInsufficientCreditsError(creditType string, remaining int) *AppError {
	return &AppError{
		Code:     ErrCodeInsufficientCredits,
		Message:  fmt.Sprintf("Insufficient %s credits", creditType),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusPaymentRequired,
		Details:  map[string]interface{}{"credit_type": creditType, "remaining": remaining},
	}
}

// NewRateLimitError 创建限流错误
func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:     ErrCodeTooManyRequests,
		Message:  "Rate limit exceeded. Please try again later.",
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusTooManyRequests,
		Details:  map[string]interface{}{"retry_after": retryAfter},
	}
}

// NewProviderError 创建上游服务错误
func NewProviderError(provider string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeProviderError,
		Message:  fmt.Sprintf("%s service error", provider),
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
		Cause:    cause,
	}
}

// NewDatabaseError 创建数据库错误
func NewDatabaseError(operation string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeDatabaseError,
		Message:  fmt.Sprintf("Database operation failed: %s", operation),
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
		Cause:    cause,
	}
}

// NewInvalidInputError 创建输入无效错误
func NewInvalidInputError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("Invalid input for field '%s': %s", field, reason),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// IsAppError 检查是否为AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// IsCode 判断错误是否为指定错误码的AppError
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}
