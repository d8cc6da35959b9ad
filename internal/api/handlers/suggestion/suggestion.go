package suggestion

import (
	"errors"
	"net/http"

	"pantry-chef/internal/core/suggest"
	"pantry-chef/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler 建議與食譜詳情處理程序
type Handler struct {
	suggestService *suggest.Service
}

// NewHandler 創建建議處理程序
func NewHandler(suggestService *suggest.Service) *Handler {
	return &Handler{
		suggestService: suggestService,
	}
}

// SuggestionsResponse 建議列表響應
type SuggestionsResponse struct {
	Recipes []common.Dish `json:"recipes"`
}

// HandleSuggestions 依使用者食材庫產生菜色建議
func (h *Handler) HandleSuggestions(c *gin.Context) {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
		c.Header("X-Request-ID", requestID)
	}

	user := c.GetHeader("X-User")
	if user == "" {
		user = c.Query("user")
	}
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user identity"})
		return
	}

	common.LogInfo("開始處理菜色建議請求",
		zap.String("request_id", requestID),
		zap.String("user", user),
	)

	dishes, err := h.suggestService.SuggestForUser(c.Request.Context(), user)
	if err != nil {
		writeError(c, requestID, err)
		return
	}

	// 空列表仍是成功結果，與模型失敗不同
	if dishes == nil {
		dishes = []common.Dish{}
	}

	common.LogInfo("菜色建議完成",
		zap.String("request_id", requestID),
		zap.Int("dish_count", len(dishes)),
	)

	c.JSON(http.StatusOK, SuggestionsResponse{Recipes: dishes})
}

// HandleRecipeDetail 取得單一菜色的完整食譜
func (h *Handler) HandleRecipeDetail(c *gin.Context) {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
		c.Header("X-Request-ID", requestID)
	}

	name := c.Param("name")

	common.LogInfo("開始處理食譜詳情請求",
		zap.String("request_id", requestID),
		zap.String("dish_name", name),
	)

	detail, err := h.suggestService.Detail(c.Request.Context(), name)
	if err != nil {
		writeError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// writeError 依錯誤分類回覆對應狀態碼與訊息
func writeError(c *gin.Context, requestID string, err error) {
	var ce *common.CustomError
	if errors.As(err, &ce) {
		common.LogWarn("請求失敗",
			zap.String("request_id", requestID),
			zap.String("code", ce.Code),
			zap.Error(err),
		)
		c.JSON(ce.Status, gin.H{
			"error": ce.Message,
			"code":  ce.Code,
		})
		return
	}

	common.LogError("請求處理發生未分類錯誤",
		zap.String("request_id", requestID),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Internal server error",
		"code":  common.ErrCodeInternalError,
	})
}
