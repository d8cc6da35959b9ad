package api

import (
	"context"
	"net/http"
	"time"

	healthHandler "pantry-chef/internal/api/handlers/health"
	pantryHandler "pantry-chef/internal/api/handlers/pantry"
	suggestionHandler "pantry-chef/internal/api/handlers/suggestion"
	"pantry-chef/internal/api/middleware"
	"pantry-chef/internal/core/ai"
	pantryStore "pantry-chef/internal/core/pantry"
	"pantry-chef/internal/core/suggest"
	"pantry-chef/internal/core/suggest/cache"
	"pantry-chef/internal/infrastructure/config"
	"pantry-chef/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// 請求體大小限制 (1MB)：本服務不收圖片，夠用
	maxBodySize = 1 << 20
)

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, store cache.Store) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 創建路由引擎
	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(requestid.New()) // 自動生成請求 ID

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-User"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	router.Use(middleware.BodySizeLimit(maxBodySize))

	// 限流
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	common.LogInfo("Initializing services",
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("model", cfg.Model.Name),
		zap.String("model_endpoint", cfg.Model.Endpoint),
	)

	// 初始化服務
	modelClient := ai.NewClient(cfg.Model)
	catalog := suggest.NewCatalog(cfg.Media)
	pantries := pantryStore.NewMemoryStore()
	suggestSvc := suggest.NewService(cfg, modelClient, store, catalog, pantries)

	// 全局超時：建議請求的模型逾時最長，外層再留緩衝
	timeoutDuration := cfg.Model.SuggestTimeout + 30*time.Second
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		// 檢查是否超時
		if ctx.Err() == context.DeadlineExceeded {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetHeader("X-Request-ID")),
				zap.Duration("timeout", timeoutDuration),
			)
			c.JSON(http.StatusGatewayTimeout, gin.H{
				"error": "Request timeout",
				"code":  common.ErrCodeRequestTimeout,
			})
			c.Abort()
			return
		}
	})

	// 健康檢查路由
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	{
		suggestionInstance := suggestionHandler.NewHandler(suggestSvc)
		pantryInstance := pantryHandler.NewHandler(pantries)

		// 菜色建議與食譜詳情
		api.GET("/suggestions", suggestionInstance.HandleSuggestions)
		api.GET("/recipes/:name", suggestionInstance.HandleRecipeDetail)

		// 食材庫；修改類請求在這裡做連點去重
		pantryGroup := api.Group("/pantry")
		pantryGroup.Use(middleware.Deduplication(cfg))
		{
			pantryGroup.GET("", pantryInstance.HandleList)
			pantryGroup.POST("/ingredients", pantryInstance.HandleAdd)
			pantryGroup.DELETE("/ingredients/:name", pantryInstance.HandleRemove)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
	)

	return router, nil
}
