package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-dm/internal/application/usecases"
	appErrors "go-dm/pkg/errors"
)

// MessageHandler 私信收发HTTP处理器
type MessageHandler struct {
	messaging *usecases.MessagingUseCase
}

// NewMessageHandler 创建私信HTTP处理器
func NewMessageHandler(messaging *usecases.MessagingUseCase) *MessageHandler {
	return &MessageHandler{messaging: messaging}
}

// Send 发送私信；被拦截同样返回 201
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req usecases.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, appErrors.InvalidArg(err.Error()))
		return
	}
	req.SenderID = userID

	resp, err := h.messaging.Send(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Withdraw 撤回消息
func (h *MessageHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	msg, err := h.messaging.Withdraw(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg.ToDTO())
}

// Delete 单侧删除消息
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.messaging.DeleteMessage(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// List 会话内历史消息
func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, size, ok := pageParams(c)
	if !ok {
		return
	}
	msgs, err := h.messaging.ListMessages(c.Request.Context(), userID, c.Param("otherId"), page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "page": page, "size": size})
}

// MarkRead 标记会话已读
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.messaging.MarkRead(c.Request.Context(), userID, c.Param("otherId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已读"})
}
