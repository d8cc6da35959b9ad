package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pantry-chef/internal/infrastructure/config"
	"pantry-chef/internal/pkg/common"

	"go.uber.org/zap"
)

// MemoryStore 行程內的建議快取
//
// 條目只增不改：同一指紋的重複寫入會追加在尾端，查詢時
// 從最新往回找仍在有效視窗內的那一筆。過期條目不擋在查詢
// 路徑上刪，由背景清理協程定期掃掉，避免無上限累積。
type MemoryStore struct {
	cfg   config.CacheConfig
	mu    sync.RWMutex
	store map[string][]Entry
	size  int
	stats cacheStats
	now   func() time.Time
	done  chan struct{}
}

// cacheStats 緩存統計；命中與未命中在讀鎖下累加，必須用原子計數
type cacheStats struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewMemoryStore 創建記憶體快取
func NewMemoryStore(cfg config.CacheConfig) *MemoryStore {
	m := &MemoryStore{
		cfg:   cfg,
		store: make(map[string][]Entry),
		now:   time.Now,
		done:  make(chan struct{}),
	}

	// 啟動清理過期條目的協程
	go m.startCleanup()

	common.LogInfo("快取已初始化",
		zap.Int("最大容量", cfg.MaxSize),
		zap.Duration("有效視窗", cfg.FreshnessWindow),
		zap.Duration("清理間隔", cfg.CleanupInterval),
	)

	return m
}

// Get 取得指紋對應的最新有效條目，過期或不存在皆視為未命中
func (m *MemoryStore) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.store[fingerprint]
	cutoff := m.now().Add(-m.cfg.FreshnessWindow)

	// 從尾端（最新寫入）往回找，重複寫入時保證拿到最新一筆
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].CreatedAt.After(cutoff) {
			m.stats.hits.Add(1)
			entry := entries[i]
			entry.Payload = append([]common.Dish(nil), entry.Payload...)
			common.LogCacheHit("suggestion", fingerprint)
			return &entry, nil
		}
	}

	m.stats.misses.Add(1)
	common.LogCacheMiss("suggestion", fingerprint)
	return nil, common.ErrCacheMiss
}

// Put 新增一筆條目，永不原地更新既有條目
func (m *MemoryStore) Put(ctx context.Context, fingerprint string, payload []common.Dish) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 容量滿時先掃過期條目，仍滿則淘汰最舊的一筆
	if m.size >= m.cfg.MaxSize {
		evicted := m.cleanupLocked()
		common.LogInfo("快取清理執行",
			zap.Int("清理數量", evicted),
		)
		for m.size >= m.cfg.MaxSize {
			m.evictOldestLocked()
		}
	}

	entry := Entry{
		Fingerprint: fingerprint,
		Payload:     append([]common.Dish(nil), payload...),
		CreatedAt:   m.now(),
	}
	m.store[fingerprint] = append(m.store[fingerprint], entry)
	m.size++

	common.LogInfo("快取已儲存",
		zap.String("指紋", fingerprint),
		zap.Int("菜色數", len(payload)),
	)
	return &entry, nil
}

// startCleanup 啟動清理過期條目的協程
func (m *MemoryStore) startCleanup() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			count := m.cleanupLocked()
			m.mu.Unlock()
			if count > 0 {
				common.LogInfo("Cleaned up expired cache entries",
					zap.Int("count", count),
				)
			}
		case <-m.done:
			return
		}
	}
}

// cleanupLocked 移除所有過期條目，回傳清掉的數量；呼叫端須持有寫鎖
func (m *MemoryStore) cleanupLocked() int {
	cutoff := m.now().Add(-m.cfg.FreshnessWindow)
	count := 0

	for fp, entries := range m.store {
		kept := entries[:0]
		for _, e := range entries {
			if e.CreatedAt.After(cutoff) {
				kept = append(kept, e)
			} else {
				count++
			}
		}
		if len(kept) == 0 {
			delete(m.store, fp)
		} else {
			m.store[fp] = kept
		}
	}

	m.size -= count
	m.stats.evictions.Add(int64(count))
	return count
}

// evictOldestLocked 淘汰建立時間最早的一筆條目；呼叫端須持有寫鎖
func (m *MemoryStore) evictOldestLocked() {
	var oldestFP string
	oldestIdx := -1
	var oldestAt time.Time

	for fp, entries := range m.store {
		for i, e := range entries {
			if oldestIdx == -1 || e.CreatedAt.Before(oldestAt) {
				oldestFP = fp
				oldestIdx = i
				oldestAt = e.CreatedAt
			}
		}
	}

	if oldestIdx == -1 {
		return
	}

	entries := m.store[oldestFP]
	m.store[oldestFP] = append(entries[:oldestIdx], entries[oldestIdx+1:]...)
	if len(m.store[oldestFP]) == 0 {
		delete(m.store, oldestFP)
	}
	m.size--
	m.stats.evictions.Add(1)
	common.LogInfo("快取已淘汰最舊條目",
		zap.String("指紋", oldestFP),
	)
}

// GetStats 獲取緩存統計信息
func (m *MemoryStore) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := m.stats.hits.Load()
	misses := m.stats.misses.Load()
	total := hits + misses
	hitRatio := 0.0
	if total > 0 {
		hitRatio = float64(hits) / float64(total)
	}
	return map[string]interface{}{
		"size":      m.size,
		"max_size":  m.cfg.MaxSize,
		"hits":      hits,
		"misses":    misses,
		"evictions": m.stats.evictions.Load(),
		"hit_ratio": hitRatio,
	}
}

// Close 關閉快取並輸出統計
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
	default:
		close(m.done)
	}

	m.store = make(map[string][]Entry)
	m.size = 0
	common.LogInfo("快取已關閉",
		zap.Int64("命中次數", m.stats.hits.Load()),
		zap.Int64("未命中次數", m.stats.misses.Load()),
		zap.Int64("淘汰次數", m.stats.evictions.Load()),
	)
	return nil
}
