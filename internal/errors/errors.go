// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"

	// generation service failures
	ErrorTypeRequestRejected   ErrorType = "request_rejected"
	ErrorTypeTransport         ErrorType = "transport_failure"
	ErrorTypeMalformedResponse ErrorType = "malformed_response"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewRequestRejectedError reports a non-success status from the generation
// service. The message is fixed; server detail stays in Err for logs only.
func NewRequestRejectedError(originalError error) *AppError {
	return NewAppError(ErrorTypeRequestRejected, "Failed to generate script", originalError)
}

// NewTransportError reports a request that never produced a response. The
// user-facing message is the cause's own text.
func NewTransportError(originalError error) *AppError {
	message := "request failed"
	if originalError != nil {
		message = originalError.Error()
	}
	return &AppError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(ErrorTypeTransport),
	}
}

// NewTimeoutError reports an attempt cut off by the configured request
// timeout.
func NewTimeoutError(timeout time.Duration, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, fmt.Sprintf("Request timed out after %s", timeout), originalError)
}

// NewMalformedResponseError reports a success response whose body is not a
// usable script.
func NewMalformedResponseError(detail string, originalError error) *AppError {
	return NewAppError(ErrorTypeMalformedResponse, "Malformed script response: "+detail, originalError)
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

func IsRequestRejectedError(err error) bool {
	return isType(err, ErrorTypeRequestRejected)
}

func IsTransportError(err error) bool {
	return isType(err, ErrorTypeTransport)
}

func IsTimeoutError(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

func IsMalformedResponseError(err error) bool {
	return isType(err, ErrorTypeMalformedResponse)
}

func isType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// UserMessage returns the text shown to the end user for err: the AppError
// message when there is one, the error text otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Message
	}
	return err.Error()
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeRequestRejected:
		return "REQUEST_REJECTED"
	case ErrorTypeTransport:
		return "TRANSPORT_FAILURE"
	case ErrorTypeMalformedResponse:
		return "MALFORMED_RESPONSE"
	default:
		return "UNKNOWN_ERROR"
	}
}
