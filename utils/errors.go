package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ApiError 自定义API错误
type ApiError struct {
	StatusCode int
	Message    string
	ErrorCode  string
	Err        error
}

// Error 实现error接口
func (e *ApiError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *ApiError) Unwrap() error {
	return e.Err
}

// NewApiError 创建API错误
func NewApiError(message string, statusCode int, errorCode string) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    message,
		ErrorCode:  errorCode,
	}
}

// CreateNotFoundError 创建资源不存在错误
func CreateNotFoundError(resource string) *ApiError {
	return NewApiError(resource+"不存在", http.StatusNotFound, "RESOURCE_NOT_FOUND")
}

// CreateBadRequestError 创建错误请求错误
func CreateBadRequestError(message string) *ApiError {
	return NewApiError(message, http.StatusBadRequest, "BAD_REQUEST")
}

// CreatePersistenceError 创建存储失败错误，不向调用方暴露驱动细节
func CreatePersistenceError(err error, unavailable bool) *ApiError {
	if unavailable {
		apiErr := NewApiError("数据存储暂不可用，请稍后重试", http.StatusServiceUnavailable, "PERSISTENCE_UNAVAILABLE")
		apiErr.Err = err
		return apiErr
	}
	apiErr := NewApiError("数据存储操作失败", http.StatusInternalServerError, "PERSISTENCE_FAILURE")
	apiErr.Err = err
	return apiErr
}

// HandleError 处理错误并返回适当的响应
func HandleError(c *gin.Context, err error) {
	if c == nil || err == nil {
		return
	}

	// 记录错误
	LogError(err, map[string]interface{}{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}, "API错误")

	// 挂到上下文上，供操作日志等后续中间件读取
	if last := c.Errors.Last(); last == nil || !errors.Is(last.Err, err) {
		_ = c.Error(err)
	}

	// 处理API错误
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		response := gin.H{"error": apiErr.Message}
		if apiErr.ErrorCode != "" {
			response["code"] = apiErr.ErrorCode
		}
		c.AbortWithStatusJSON(apiErr.StatusCode, response)
		return
	}

	// 其他未预期的错误
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": "服务器内部错误",
		"code":  "INTERNAL_ERROR",
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, message string, statusCode int) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
	})
}
