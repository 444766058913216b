package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// 验证错误
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeDimensionMismatch   ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeDuplicateChunk      ErrorCode = "DUPLICATE_CHUNK"
	ErrCodeInvalidFrontMatter  ErrorCode = "INVALID_FRONT_MATTER"
	ErrCodeUnknownDocumentType ErrorCode = "UNKNOWN_DOCUMENT_TYPE"

	// 资源错误
	ErrCodeDocumentNotFound ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeChunkNotFound    ErrorCode = "CHUNK_NOT_FOUND"

	// 持久化错误
	ErrCodeStorageError ErrorCode = "STORAGE_ERROR"
	ErrCodeIndexCorrupt ErrorCode = "INDEX_CORRUPT"

	// 外部服务错误
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeValidation
	ErrorTypeNotFound
	ErrorTypeStorage
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
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

// NewValidationErrorWithCode 创建带错误码的验证错误
func NewValidationErrorWithCode(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(code ErrorCode, resource string) *AppError {
	return &AppError{
		Code:     code,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeNotFound,
		HTTPCode: http.StatusNotFound,
	}
}

// NewStorageError 创建持久化错误
func NewStorageError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeStorageError,
		Message:  message,
		Type:     ErrorTypeStorage,
		HTTPCode: http.StatusInternalServerError,
		Cause:    cause,
	}
}

// NewExternalError 创建外部服务错误
func NewExternalError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
		Cause:    cause,
	}
}

// IsNotFound 判断是否为资源未找到错误
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidation 判断是否为验证错误
func IsValidation(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeValidation
	}
	return false
}

// HTTPStatus 返回错误对应的HTTP状态码
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPCode != 0 {
			return appErr.HTTPCode
		}
	}
	return http.StatusInternalServerError
}
