package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"pantry-chef/internal/infrastructure/config"
	"pantry-chef/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxDedupEntries 去重表的清理門檻，超過後掃掉視窗外的紀錄
const maxDedupEntries = 4096

// deduplicator 記錄每個修改請求指紋最後出現的時間
type deduplicator struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

// Deduplication 食材庫修改去重中間件
//
// 同一使用者在視窗內重複送出的相同 POST（連點「加入食材」）
// 會被擋下；DELETE 本身冪等，重送無害，不做處理。指紋由
// 使用者身分、路徑與請求體雜湊組成，不同使用者送相同內容
// 互不影響
func Deduplication(cfg *config.Config) gin.HandlerFunc {
	window := time.Second
	if cfg != nil && cfg.DedupWindow > 0 {
		window = cfg.DedupWindow
	}
	d := &deduplicator{
		window: window,
		seen:   make(map[string]time.Time),
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key, err := requestKey(c)
		if err != nil {
			common.LogError("Failed to read request body", zap.Error(err))
			c.Next()
			return
		}

		if d.duplicate(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Duplicate request",
				"code":  common.ErrCodeTooManyRequests,
			})
			return
		}

		c.Next()
	}
}

// requestKey 以使用者、路徑與請求體雜湊組成請求指紋
func requestKey(c *gin.Context) (string, error) {
	user := c.GetHeader("X-User")
	if user == "" {
		user = c.Query("user")
	}

	bodyHash := ""
	if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		sum := sha256.Sum256(body)
		bodyHash = hex.EncodeToString(sum[:])

		// 恢復請求體給後續 handler 讀
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	return user + ":" + c.Request.URL.Path + ":" + bodyHash, nil
}

// duplicate 回報指紋是否在視窗內出現過，同時記錄本次出現
func (d *deduplicator) duplicate(key string) bool {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.seen) >= maxDedupEntries {
		for k, t := range d.seen {
			if now.Sub(t) > d.window {
				delete(d.seen, k)
			}
		}
	}

	if last, ok := d.seen[key]; ok && now.Sub(last) <= d.window {
		return true
	}
	d.seen[key] = now
	return false
}
