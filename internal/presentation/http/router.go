package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-dm/internal/application/usecases"
)

// RouterConfig 路由依赖
type RouterConfig struct {
	Messaging     *usecases.MessagingUseCase
	JWTSecret     string
	EnableMetrics bool
	// WS 为空时不注册 /ws
	WS gin.HandlerFunc
	// Health 为空时 /healthz 恒为 ok
	Health func(ctx context.Context) error
}

// NewRouter 组装 gin 路由
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), AccessLog())

	r.GET("/healthz", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.EnableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if cfg.WS != nil {
		r.GET("/ws", cfg.WS)
	}

	messages := NewMessageHandler(cfg.Messaging)
	conversations := NewConversationHandler(cfg.Messaging)
	blocks := NewBlockHandler(cfg.Messaging)
	settings := NewSettingsHandler(cfg.Messaging.Preferences())

	api := r.Group("/api", AuthMiddleware(cfg.JWTSecret))
	{
		api.POST("/messages", messages.Send)
		api.POST("/messages/:id/withdraw", messages.Withdraw)
		api.DELETE("/messages/:id", messages.Delete)

		api.GET("/conversations", conversations.List)
		api.POST("/conversations/:otherId", conversations.GetOrCreate)
		api.DELETE("/conversations/:otherId", conversations.Delete)
		api.GET("/conversations/:otherId/messages", messages.List)
		api.POST("/conversations/:otherId/read", messages.MarkRead)
		api.GET("/conversations/:otherId/unread", conversations.Unread)
		api.POST("/conversations/:otherId/pin", conversations.Pin)
		api.POST("/conversations/:otherId/mute", conversations.Mute)
		api.GET("/unread/total", conversations.TotalUnread)

		api.POST("/users/:id/block", blocks.Block)
		api.DELETE("/users/:id/block", blocks.Unblock)
		api.GET("/users/:id/block-status", blocks.Status)
		api.GET("/blocks", blocks.List)
		api.GET("/blocks/count", blocks.Count)

		api.GET("/message-settings", settings.Get)
		api.PUT("/message-settings", settings.Update)
		api.POST("/message-settings/reset", settings.Reset)
	}
	return r
}
