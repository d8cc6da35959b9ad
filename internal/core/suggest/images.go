package suggest

import (
	"path"
	"strings"

	"pantry-chef/internal/infrastructure/config"

	"github.com/pmezard/go-difflib/difflib"
)

// fuzzyCutoff 模糊比對的相似度門檻
const fuzzyCutoff = 0.5

// seedImage 一筆種子菜名與圖片檔的對應
type seedImage struct {
	Name string
	File string
}

// defaultSeeds 啟動時載入的靜態圖片對照表，順序即比對順序
var defaultSeeds = []seedImage{
	{"Spaghetti Bolognese", "spaghetti.jpg"},
	{"Pancakes", "Pancakes.jpg"},
	{"Chicken Fried Rice", "Chicken.jpg"},
	{"Chocolate Cake", "Chocolate.jpg"},
	{"Caesar Salad", "Caesar.jpg"},
	{"Garlic Bread", "Garlic.jpg"},
	{"Mashed Potatoes", "potatoes.jpg"},
	{"Omelette", "Omelette.jpg"},
	{"Grilled Chicken", "grilled.jpg"},
	{"Beef Stew", "beef.jpg"},
	{"Fish Tacos", "Fish_Tacos.jpeg"},
	{"Vegetable Stir Fry", "stir_fry.jpeg"},
	{"Shrimp Alfredo Pasta", "shrimp_alfredo.jpeg"},
	{"Mushroom Risotto", "risotto.jpeg"},
	{"Greek Salad", "greek_salad.jpeg"},
	{"Lentil Soup", "lentil_soup.jpeg"},
	{"Stuffed Peppers", "stuffed_peppers.jpeg"},
}

// catalogEntry 內部條目：小寫鍵、預先切好的 token 與圖片檔名
type catalogEntry struct {
	key    string
	tokens map[string]struct{}
	file   string
}

// Catalog 菜名到示意圖的唯讀對照表，行程啟動時載入一次
type Catalog struct {
	entries      []catalogEntry // 保持插入順序
	basePath     string
	defaultImage string
}

// NewCatalog 以內建種子建立圖片對照表
func NewCatalog(cfg config.MediaConfig) *Catalog {
	return NewCatalogWithSeeds(cfg, defaultSeeds)
}

// NewCatalogWithSeeds 以指定種子建立圖片對照表，鍵一律轉小寫
func NewCatalogWithSeeds(cfg config.MediaConfig, seeds []seedImage) *Catalog {
	c := &Catalog{
		basePath:     cfg.BasePath,
		defaultImage: cfg.DefaultImage,
	}
	for _, s := range seeds {
		key := strings.ToLower(strings.TrimSpace(s.Name))
		if key == "" {
			continue
		}
		tokens := make(map[string]struct{})
		for _, tok := range strings.Fields(key) {
			tokens[tok] = struct{}{}
		}
		c.entries = append(c.entries, catalogEntry{key: key, tokens: tokens, file: s.File})
	}
	return c
}

// Resolve 為菜名找出最合適的示意圖路徑，永不失敗
// 先做 token 完全比對（插入順序第一個命中者勝出），
// 再退回 Ratcliff/Obershelp 相似度比對（門檻 0.5，
// 同分取字典序較小的鍵），最後回傳預設圖片
func (c *Catalog) Resolve(dishName string) string {
	name := strings.ToLower(strings.TrimSpace(dishName))
	words := strings.Fields(name)

	// token 比對：便宜又精準的第一關
	for _, entry := range c.entries {
		for _, w := range words {
			if _, ok := entry.tokens[w]; ok {
				return c.imagePath(entry.file)
			}
		}
	}

	// 模糊比對：吃掉模型常見的拼字偏差與複數形
	bestRatio := 0.0
	bestKey := ""
	bestFile := ""
	for _, entry := range c.entries {
		ratio := similarity(name, entry.key)
		if ratio > bestRatio || (ratio == bestRatio && bestKey != "" && entry.key < bestKey) {
			bestRatio = ratio
			bestKey = entry.key
			bestFile = entry.file
		}
	}
	if bestRatio >= fuzzyCutoff {
		return c.imagePath(bestFile)
	}

	return c.imagePath(c.defaultImage)
}

// DefaultImage 回傳預設圖片路徑
func (c *Catalog) DefaultImage() string {
	return c.imagePath(c.defaultImage)
}

func (c *Catalog) imagePath(file string) string {
	return path.Join(c.basePath, file)
}

// similarity 逐字元的序列相似度（Ratcliff/Obershelp）
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}
