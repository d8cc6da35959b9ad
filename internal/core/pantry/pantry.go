package pantry

import (
	"context"
	"strings"
	"sync"

	"pantry-chef/internal/pkg/common"
)

// Provider 提供使用者的食材集合
//
// 沒有食材庫紀錄（ErrNoPantry）與有紀錄但是空的
// 是兩種不同狀態，由呼叫端分別處理。
type Provider interface {
	IngredientNames(ctx context.Context, user string) ([]string, error)
}

// MemoryStore 行程內的食材庫
type MemoryStore struct {
	mu       sync.RWMutex
	pantries map[string][]string
}

// NewMemoryStore 創建食材庫
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pantries: make(map[string][]string),
	}
}

// Create 為使用者建立空的食材庫，已存在則不動作
func (m *MemoryStore) Create(ctx context.Context, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pantries[user]; !ok {
		m.pantries[user] = []string{}
	}
}

// IngredientNames 回傳使用者的食材名稱集合
// 沒有紀錄回傳 ErrNoPantry；空的食材庫回傳空切片，不是錯誤
func (m *MemoryStore) IngredientNames(ctx context.Context, user string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names, ok := m.pantries[user]
	if !ok {
		return nil, common.ErrNoPantry
	}
	return append([]string(nil), names...), nil
}

// Add 加入一項食材，使用者沒有食材庫時順便建立
// 名稱比對不分大小寫，重複加入不動作
func (m *MemoryStore) Add(ctx context.Context, user, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return common.ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	names := m.pantries[user]
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return nil
		}
	}
	m.pantries[user] = append(names, name)
	return nil
}

// Remove 移除一項食材，使用者沒有食材庫時回傳 ErrNoPantry
func (m *MemoryStore) Remove(ctx context.Context, user, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, ok := m.pantries[user]
	if !ok {
		return common.ErrNoPantry
	}
	for i, n := range names {
		if strings.EqualFold(n, name) {
			m.pantries[user] = append(names[:i], names[i+1:]...)
			return nil
		}
	}
	return nil
}
