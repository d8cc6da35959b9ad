package common

import (
	"sort"
	"strings"
)

// Dish AI 建議的一道菜，回傳後不再修改
type Dish struct {
	Name             string `json:"name"`
	ShortDescription string `json:"short_description"`
	Cuisine          string `json:"cuisine"`
	Difficulty       string `json:"difficulty"`
	ImageHint        string `json:"image_hint,omitempty"`
	Image            string `json:"image,omitempty"` // 由圖片解析器補上的路徑
}

// DetailIngredient 食譜詳情中的單一食材
type DetailIngredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

// InstructionStep 食譜詳情中的單一步驟
type InstructionStep struct {
	Step        string `json:"step"`
	TimeMinutes int    `json:"time_minutes,omitempty"`
}

// RecipeDetail 單一菜色的完整食譜，詳情查詢不進快取
type RecipeDetail struct {
	Name         string             `json:"name"`
	Ingredients  []DetailIngredient `json:"ingredients"`
	Instructions []InstructionStep  `json:"instructions"`
	TimeMinutes  int                `json:"time_minutes"`
	Image        string             `json:"image,omitempty"`
}

// NormalizeIngredients 正規化食材名稱集合：去空白、轉小寫、排序、去重
// 兩個使用者輸入順序或大小寫不同的相同集合會得到相同結果
func NormalizeIngredients(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
