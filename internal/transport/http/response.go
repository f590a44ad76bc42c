package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imgconv-server-go/internal/platform/errors"
)

// APIResponse 定义统一的接口返回结构体
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// RespondSuccess 返回成功响应
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}
	c.JSON(httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondError 返回失败响应
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondKindError 按错误分类选择状态码。
func RespondKindError(c *gin.Context, err error) {
	kind := errors.KindOf(err)
	RespondError(c, StatusForKind(kind), err.Error(), gin.H{"kind": kind})
}

// StatusForKind 把错误分类映射为 HTTP 状态码。
func StatusForKind(kind errors.Kind) int {
	switch kind {
	case errors.KindDecode, errors.KindArchive:
		return http.StatusUnprocessableEntity
	case errors.KindUnsupported:
		return http.StatusBadRequest
	case errors.KindTransport:
		return http.StatusBadRequest
	case errors.KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
