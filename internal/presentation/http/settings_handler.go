package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-dm/internal/application/usecases"
	appErrors "go-dm/pkg/errors"
)

// SettingsHandler 私信设置HTTP处理器
type SettingsHandler struct {
	prefs *usecases.PreferenceUseCase
}

// NewSettingsHandler 创建私信设置HTTP处理器
func NewSettingsHandler(prefs *usecases.PreferenceUseCase) *SettingsHandler {
	return &SettingsHandler{prefs: prefs}
}

// Get 获取私信设置
func (h *SettingsHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pref, err := h.prefs.GetSettings(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

// Update 部分更新
func (h *SettingsHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var patch usecases.PreferencePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, appErrors.InvalidArg(err.Error()))
		return
	}
	pref, err := h.prefs.Update(c.Request.Context(), userID, &patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

// Reset 恢复默认
func (h *SettingsHandler) Reset(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pref, err := h.prefs.Reset(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}
