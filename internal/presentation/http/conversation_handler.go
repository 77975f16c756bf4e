package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-dm/internal/application/usecases"
	appErrors "go-dm/pkg/errors"
)

// ConversationHandler 会话列表HTTP处理器
type ConversationHandler struct {
	messaging *usecases.MessagingUseCase
}

// NewConversationHandler 创建会话HTTP处理器
func NewConversationHandler(messaging *usecases.MessagingUseCase) *ConversationHandler {
	return &ConversationHandler{messaging: messaging}
}

type flagRequest struct {
	Value *bool `json:"value"`
}

// List 会话列表
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, size, ok := pageParams(c)
	if !ok {
		return
	}
	items, err := h.messaging.ListConversations(c.Request.Context(), userID, page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": items, "page": page, "size": size})
}

// GetOrCreate 从资料页发起会话
func (h *ConversationHandler) GetOrCreate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	item, err := h.messaging.GetOrCreateConversation(c.Request.Context(), userID, c.Param("otherId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Delete 隐藏自己一侧的会话
func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.messaging.DeleteConversation(c.Request.Context(), userID, c.Param("otherId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
}

// Unread 单个会话未读数
func (h *ConversationHandler) Unread(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.messaging.GetUnreadCount(c.Request.Context(), userID, c.Param("otherId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// TotalUnread 未读总数
func (h *ConversationHandler) TotalUnread(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.messaging.TotalUnread(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// Pin 置顶/取消置顶，body 缺省视为置顶
func (h *ConversationHandler) Pin(c *gin.Context) {
	h.setFlag(c, h.messaging.SetPinned)
}

// Mute 免打扰/取消免打扰，body 缺省视为开启
func (h *ConversationHandler) Mute(c *gin.Context) {
	h.setFlag(c, h.messaging.SetMuted)
}

func (h *ConversationHandler) setFlag(c *gin.Context, set func(context.Context, string, string, bool) error) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req flagRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, appErrors.InvalidArg(err.Error()))
			return
		}
	}
	value := req.Value == nil || *req.Value
	if err := set(c.Request.Context(), userID, c.Param("otherId"), value); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}
