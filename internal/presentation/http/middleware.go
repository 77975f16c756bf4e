package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"go-dm/internal/auth"
	appErrors "go-dm/pkg/errors"
)

// AuthMiddleware 校验 Authorization: Bearer <jwt>，并把用户ID放入上下文
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(c, appErrors.Unauthorized("缺少令牌"))
			return
		}
		claims, err := auth.ParseJWT(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(c, appErrors.Unauthorized("无效的令牌"))
			return
		}
		c.Set("userID", claims.UserID)
		c.Next()
	}
}

// AccessLog 请求日志
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
			"user":    c.GetString("userID"),
		}).Debug("http access")
	}
}
