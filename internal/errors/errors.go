package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType 错误类型枚举
type ErrorType string

const (
	// 系统级错误
	ErrorTypeSystem   ErrorType = "SYSTEM"
	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeNetwork  ErrorType = "NETWORK"
	ErrorTypeConfig   ErrorType = "CONFIG"

	// 业务级错误
	ErrorTypeBusiness   ErrorType = "BUSINESS"
	ErrorTypeValidation ErrorType = "VALIDATION"

	// 集成错误
	ErrorTypeEmbedding ErrorType = "EMBEDDING"
	ErrorTypeVector    ErrorType = "VECTOR"
	ErrorTypeStorage   ErrorType = "STORAGE"
	ErrorTypeWebSocket ErrorType = "WEBSOCKET"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 系统错误码 (E1xxx)
	ErrCodeSystemGeneric   ErrorCode = "E1000"
	ErrCodeDatabaseConnect ErrorCode = "E1001"
	ErrCodeDatabaseQuery   ErrorCode = "E1002"
	ErrCodeNetworkTimeout  ErrorCode = "E1003"
	ErrCodeConfigMissing   ErrorCode = "E1004"
	ErrCodeConfigInvalid   ErrorCode = "E1005"

	// 业务错误码 (E2xxx)
	ErrCodeValidationFailed ErrorCode = "E2001"
	ErrCodeResourceNotFound ErrorCode = "E2002"
	ErrCodeInvalidInput     ErrorCode = "E2004"

	// 集成错误码 (E3xxx)
	ErrCodeWebSocketMessage     ErrorCode = "E3002"
	ErrCodeSearchUnavailable    ErrorCode = "E3004"
	ErrCodeEmbeddingUnavailable ErrorCode = "E3005"
	ErrCodeLogWriteFailed       ErrorCode = "E3006"
)

// FitrankError 统一错误结构
type FitrankError struct {
	Type      ErrorType   `json:"type"`
	Code      ErrorCode   `json:"code"`
	Message   string      `json:"message"`
	Details   string      `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Context   interface{} `json:"context,omitempty"`
	Cause     error       `json:"-"` // 原始错误，不序列化
}

// Error 实现error接口
func (e *FitrankError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s - %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap 支持错误链
func (e *FitrankError) Unwrap() error {
	return e.Cause
}

// NewFitrankError 创建新的错误
func NewFitrankError(errorType ErrorType, code ErrorCode, message string) *FitrankError {
	return &FitrankError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithDetails 添加详细信息
func (e *FitrankError) WithDetails(details string) *FitrankError {
	e.Details = details
	return e
}

// WithContext 添加上下文信息
func (e *FitrankError) WithContext(context interface{}) *FitrankError {
	e.Context = context
	return e
}

// WithCause 添加原始错误
func (e *FitrankError) WithCause(cause error) *FitrankError {
	e.Cause = cause
	return e
}

// IsType 检查错误类型
func (e *FitrankError) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

// IsCode 检查错误码
func (e *FitrankError) IsCode(code ErrorCode) bool {
	return e.Code == code
}

// As 沿错误链查找 FitrankError
func As(err error) (*FitrankError, bool) {
	var fe *FitrankError
	if stderrors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// HasCode 判断错误链中是否包含指定错误码
func HasCode(err error, code ErrorCode) bool {
	fe, ok := As(err)
	return ok && fe.Code == code
}

// IsNotFound 资源不存在
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeResourceNotFound)
}

// IsInvalidInput 参数错误（包括验证失败）
func IsInvalidInput(err error) bool {
	fe, ok := As(err)
	return ok && fe.Type == ErrorTypeValidation
}

// IsUnavailable 依赖服务不可用
func IsUnavailable(err error) bool {
	return HasCode(err, ErrCodeEmbeddingUnavailable) || HasCode(err, ErrCodeSearchUnavailable)
}

// 预定义常用错误

// ErrDatabaseConnection 数据库连接错误
func ErrDatabaseConnection(details string, cause error) *FitrankError {
	return NewFitrankError(ErrorTypeDatabase, ErrCodeDatabaseConnect, "Failed to connect to database").
		WithDetails(details).
		WithCause(cause)
}

// ErrDatabaseQuery 数据库查询错误
func ErrDatabaseQuery(details string, cause error) *FitrankError {
	return NewFitrankError(ErrorTypeDatabase, ErrCodeDatabaseQuery, "Database query failed").
		WithDetails(details).
		WithCause(cause)
}

// ErrValidationFailed 验证失败错误
func ErrValidationFailed(field, reason string) *FitrankError {
	return NewFitrankError(ErrorTypeValidation, ErrCodeValidationFailed, "Validation failed").
		WithDetails(fmt.Sprintf("Field '%s': %s", field, reason))
}

// ErrInvalidInput 请求参数错误
func ErrInvalidInput(field, reason string) *FitrankError {
	return NewFitrankError(ErrorTypeValidation, ErrCodeInvalidInput, "Invalid input").
		WithDetails(fmt.Sprintf("Field '%s': %s", field, reason))
}

// ErrConfigMissing 配置缺失错误
func ErrConfigMissing(configKey string) *FitrankError {
	return NewFitrankError(ErrorTypeConfig, ErrCodeConfigMissing, "Required configuration missing").
		WithDetails(fmt.Sprintf("Missing config key: %s", configKey))
}

// ErrConfigInvalid 配置无效错误
func ErrConfigInvalid(configKey, reason string) *FitrankError {
	return NewFitrankError(ErrorTypeConfig, ErrCodeConfigInvalid, "Invalid configuration").
		WithDetails(fmt.Sprintf("Config key '%s': %s", configKey, reason))
}

// ErrResourceNotFound 资源未找到错误
func ErrResourceNotFound(resourceType, resourceID string) *FitrankError {
	return NewFitrankError(ErrorTypeBusiness, ErrCodeResourceNotFound, "Resource not found").
		WithDetails(fmt.Sprintf("%s with ID '%s' not found", resourceType, resourceID))
}

// ErrEmbeddingUnavailable 向量化服务不可用
func ErrEmbeddingUnavailable(details string, cause error) *FitrankError {
	return NewFitrankError(ErrorTypeEmbedding, ErrCodeEmbeddingUnavailable, "Embedding provider unavailable").
		WithDetails(details).
		WithCause(cause)
}

// ErrSearchUnavailable 向量检索不可用
func ErrSearchUnavailable(details string, cause error) *FitrankError {
	return NewFitrankError(ErrorTypeVector, ErrCodeSearchUnavailable, "Vector search unavailable").
		WithDetails(details).
		WithCause(cause)
}

// ErrLogWriteFailed 交互日志写入失败
func ErrLogWriteFailed(details string, cause error) *FitrankError {
	return NewFitrankError(ErrorTypeStorage, ErrCodeLogWriteFailed, "Interaction log write failed").
		WithDetails(details).
		WithCause(cause)
}

// ErrWebSocketMessage WebSocket消息错误
func ErrWebSocketMessage(details string, cause error) *FitrankError {
	return NewFitrankError(ErrorTypeWebSocket, ErrCodeWebSocketMessage, "WebSocket message error").
		WithDetails(details).
		WithCause(cause)
}
