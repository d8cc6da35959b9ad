package pantry

import (
	"errors"
	"net/http"

	pantryStore "pantry-chef/internal/core/pantry"
	"pantry-chef/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 食材庫處理程序
type Handler struct {
	store *pantryStore.MemoryStore
}

// NewHandler 創建食材庫處理程序
func NewHandler(store *pantryStore.MemoryStore) *Handler {
	return &Handler{store: store}
}

// AddIngredientRequest 加入食材請求
type AddIngredientRequest struct {
	Name string `json:"name" binding:"required"`
}

// HandleList 列出使用者的食材
func (h *Handler) HandleList(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	names, err := h.store.IngredientNames(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ingredients": names})
}

// HandleAdd 加入一項食材，沒有食材庫時會順便建立
func (h *Handler) HandleAdd(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req AddIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.store.Add(c.Request.Context(), user, req.Name); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "added", "name": req.Name})
}

// HandleRemove 移除一項食材
func (h *Handler) HandleRemove(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	name := c.Param("name")
	if err := h.store.Remove(c.Request.Context(), user, name); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed", "name": name})
}

func requireUser(c *gin.Context) (string, bool) {
	user := c.GetHeader("X-User")
	if user == "" {
		user = c.Query("user")
	}
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user identity"})
		return "", false
	}
	return user, true
}

func writeError(c *gin.Context, err error) {
	var ce *common.CustomError
	if errors.As(err, &ce) {
		c.JSON(ce.Status, gin.H{"error": ce.Message, "code": ce.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
		"code":  common.ErrCodeInternalError,
	})
}
