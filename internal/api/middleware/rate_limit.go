package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"pantry-chef/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxTrackedKeys 限流表的清理門檻，超過後掃掉久未出現的使用者
const maxTrackedKeys = 10000

// bucket 單一使用者的令牌桶
type bucket struct {
	tokens   float64
	lastTime time.Time
}

// RateLimiter 以使用者為單位的限流器
//
// 建議與食材庫 API 都以使用者身分劃分，限流也跟著以使用者
// 計數，單一使用者打爆額度不會波及其他人
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	rate     float64 // 每秒補充的令牌數
	window   time.Duration
}

// NewRateLimiter 創建限流器，每個使用者有獨立的令牌桶
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(requests),
		rate:     float64(requests) / window.Seconds(),
		window:   window,
	}
}

// Allow 檢查指定使用者是否允許請求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= maxTrackedKeys {
			rl.pruneLocked(now)
		}
		b = &bucket{tokens: rl.capacity, lastTime: now}
		rl.buckets[key] = b
	}

	// 依經過時間補充令牌
	elapsed := now.Sub(b.lastTime).Seconds()
	b.lastTime = now
	b.tokens += elapsed * rl.rate
	if b.tokens > rl.capacity {
		b.tokens = rl.capacity
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// pruneLocked 移除兩個視窗內沒再出現的使用者；呼叫端須持有鎖
func (rl *RateLimiter) pruneLocked(now time.Time) {
	for key, b := range rl.buckets {
		if now.Sub(b.lastTime) > 2*rl.window {
			delete(rl.buckets, key)
		}
	}
}

// RateLimit 限流中間件
// 以 X-User（或 ?user）識別使用者，匿名請求退回以來源 IP 計數
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(requests, window)

	return func(c *gin.Context) {
		key := c.GetHeader("X-User")
		if key == "" {
			key = c.Query("user")
		}
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.Allow(key) {
			common.LogInfo("Rate limit exceeded",
				zap.String("user", key),
				zap.String("path", c.Request.URL.Path),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
				"code":  common.ErrCodeTooManyRequests,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
