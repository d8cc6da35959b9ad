package cache

import (
	"context"
	"fmt"
	"time"

	"pantry-chef/internal/infrastructure/config"
	"pantry-chef/internal/pkg/common"
)

// Entry 一筆快取條目，寫入後不再修改
type Entry struct {
	Fingerprint string        `json:"fingerprint"`
	Payload     []common.Dish `json:"payload"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Store 建議快取後端
//
// Get 只回傳仍在有效視窗內、且為該指紋最新的一筆條目，
// 過期條目視同未命中（ErrCacheMiss）。Put 永遠新增、
// 不原地更新；同指紋重複寫入時以最新一筆為準。
type Store interface {
	Get(ctx context.Context, fingerprint string) (*Entry, error)
	Put(ctx context.Context, fingerprint string, payload []common.Dish) (*Entry, error)
	Close() error
}

// NewStore 依設定建立快取後端；快取停用時回傳 nil
func NewStore(cfg *config.Config) (Store, error) {
	if !cfg.Cache.Enabled {
		common.LogInfo("Cache disabled")
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case "memory":
		return NewMemoryStore(cfg.Cache), nil
	case "redis":
		return NewRedisStore(cfg.Cache)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}
