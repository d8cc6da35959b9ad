package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pantry-chef/internal/infrastructure/config"
	"pantry-chef/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

// RedisStore 以 Redis 持久化的建議快取
//
// 以 suggest:<指紋> 為鍵存放序列化條目，TTL 設為有效視窗，
// 過期由 Redis 代勞。同指紋重寫會覆蓋舊值，查詢因此必然
// 拿到最新一筆。
type RedisStore struct {
	client *redis.Client
	cfg    config.CacheConfig
}

// NewRedisStore 創建 Redis 快取並測試連線
func NewRedisStore(cfg config.CacheConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	// 測試連接
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		cfg:    cfg,
	}, nil
}

// Get 取得指紋對應的有效條目
func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.key(fingerprint)).Bytes()
	if err != nil {
		if err == redis.Nil {
			common.LogCacheMiss("suggestion", fingerprint)
			return nil, common.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	// TTL 通常已擋掉過期條目，這裡再依建立時間把關一次
	if time.Since(entry.CreatedAt) > s.cfg.FreshnessWindow {
		common.LogCacheMiss("suggestion", fingerprint)
		return nil, common.ErrCacheMiss
	}

	common.LogCacheHit("suggestion", fingerprint)
	return &entry, nil
}

// Put 寫入一筆新條目，覆蓋同指紋的舊值
func (s *RedisStore) Put(ctx context.Context, fingerprint string, payload []common.Dish) (*Entry, error) {
	entry := Entry{
		Fingerprint: fingerprint,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := s.client.Set(ctx, s.key(fingerprint), data, s.cfg.FreshnessWindow).Err(); err != nil {
		return nil, fmt.Errorf("failed to set cache: %w", err)
	}

	return &entry, nil
}

// key 生成快取鍵
func (s *RedisStore) key(fingerprint string) string {
	return "suggest:" + fingerprint
}

// Close 關閉 Redis 連線
func (s *RedisStore) Close() error {
	return s.client.Close()
}
