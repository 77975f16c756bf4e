package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-dm/internal/application/usecases"
)

// BlockHandler 拉黑HTTP处理器
type BlockHandler struct {
	messaging *usecases.MessagingUseCase
}

// NewBlockHandler 创建拉黑HTTP处理器
func NewBlockHandler(messaging *usecases.MessagingUseCase) *BlockHandler {
	return &BlockHandler{messaging: messaging}
}

// Block 拉黑用户
func (h *BlockHandler) Block(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.messaging.Block(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已拉黑"})
}

// Unblock 取消拉黑
func (h *BlockHandler) Unblock(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.messaging.Unblock(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已取消拉黑"})
}

// Status 双向拉黑状态
func (h *BlockHandler) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	st, err := h.messaging.BlockStatus(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// List 我的拉黑列表
func (h *BlockHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, size, ok := pageParams(c)
	if !ok {
		return
	}
	users, err := h.messaging.ListBlocked(c.Request.Context(), userID, page, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": users, "page": page, "size": size})
}

// Count 拉黑数量
func (h *BlockHandler) Count(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.messaging.CountBlocked(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}
