package handlers

import (
	"net/http"

	"fitrank/internal/errors"
	"fitrank/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// StatusFor 错误对应的HTTP状态码
func StatusFor(err error) int {
	switch {
	case errors.IsInvalidInput(err):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError 按错误类型写出响应
func respondError(c *gin.Context, log *logger.Logger, err error, msg string, fields logger.Fields) {
	status := StatusFor(err)

	resp := ErrorResponse{Success: false, Message: "Internal server error"}
	if fe, ok := errors.As(err); ok {
		resp.Code = string(fe.Code)
		resp.Message = fe.Message
		resp.Details = fe.Details
		log.LogFitrankError(fe, msg, fields)
	} else {
		logFields := logger.Fields{"error": err.Error()}
		for k, v := range fields {
			logFields[k] = v
		}
		log.Error(msg, logFields)
	}

	// 内部错误不向调用方暴露细节
	if status == http.StatusInternalServerError {
		resp.Details = ""
	}

	c.JSON(status, resp)
}

// badRequest 参数解析失败
func badRequest(c *gin.Context, field, reason string) {
	err := errors.ErrInvalidInput(field, reason)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Code:    string(err.Code),
		Message: err.Message,
		Details: err.Details,
	})
}
