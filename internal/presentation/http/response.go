package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	appErrors "go-dm/pkg/errors"
)

// statusOf 错误码到 HTTP 状态码
func statusOf(code appErrors.Code) int {
	switch code {
	case appErrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case appErrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case appErrors.CodePermissionDenied:
		return http.StatusForbidden
	case appErrors.CodeNotFound:
		return http.StatusNotFound
	case appErrors.CodeAlreadyExists, appErrors.CodeFailedPrecondition:
		return http.StatusConflict
	case appErrors.CodeResourceExhausted:
		return http.StatusTooManyRequests
	case appErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError 输出 {"code","error"}；非业务错误不向客户端暴露细节
func writeError(c *gin.Context, err error) {
	code := appErrors.CodeOf(err)
	status := statusOf(code)
	msg := err.Error()
	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{"path": c.FullPath(), "code": code}).WithError(err).Error("request failed")
		if code == appErrors.CodeUnknown {
			code, msg = appErrors.CodeInternal, "internal error"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": msg})
}

// currentUser 由 AuthMiddleware 写入
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString("userID")
	if userID == "" {
		writeError(c, appErrors.Unauthorized("未授权"))
		return "", false
	}
	return userID, true
}

// pageParams 解析 page/size，非法值返回 400
func pageParams(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		writeError(c, appErrors.InvalidArg("无效的page参数"))
		return 0, 0, false
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil {
		writeError(c, appErrors.InvalidArg("无效的size参数"))
		return 0, 0, false
	}
	return page, size, true
}
