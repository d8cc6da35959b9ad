package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"pantry-chef/internal/core/ai"
	"pantry-chef/internal/core/pantry"
	"pantry-chef/internal/core/suggest/cache"
	"pantry-chef/internal/infrastructure/config"
	"pantry-chef/internal/pkg/common"

	"go.uber.org/zap"
)

// suggestionPromptTemplate 建議提示詞；措辭固定，同一組食材必產生同一個 prompt
const suggestionPromptTemplate = "You are a creative chef. Based on these ingredients: %s, " +
	"suggest 5 unique, realistic dishes I can cook. " +
	"Return ONLY valid JSON with a top-level array called 'dishes'. " +
	"Each dish must have keys: name, short_description, cuisine, difficulty, image_hint. " +
	"Return raw JSON, no markdown or code fences."

// detailPromptTemplate 食譜詳情提示詞
const detailPromptTemplate = "You are a master chef. Give detailed step-by-step instructions for cooking '%s'. " +
	"Return valid JSON with these keys: " +
	"{'name', 'ingredients' (list of dicts with 'name', 'amount', 'unit'), " +
	"'instructions' (list of dicts with 'step' and optional 'time_minutes'), 'time_minutes'}. " +
	"Return ONLY raw JSON, no markdown, code fences, or comments."

// Service 菜色建議服務
//
// 負責整條流程：指紋、快取查詢、組 prompt、呼叫模型、
// 擷取紀錄、補圖片、回寫快取。共享的快取與圖片對照表
// 都是讀多寫少，單一請求之間彼此獨立。
type Service struct {
	cfg     *config.Config
	model   ai.Provider
	store   cache.Store
	catalog *Catalog
	pantry  pantry.Provider
}

// NewService 創建建議服務
func NewService(cfg *config.Config, model ai.Provider, store cache.Store, catalog *Catalog, pantryProvider pantry.Provider) *Service {
	return &Service{
		cfg:     cfg,
		model:   model,
		store:   store,
		catalog: catalog,
		pantry:  pantryProvider,
	}
}

// SuggestForUser 取出使用者的食材庫後產生建議
func (s *Service) SuggestForUser(ctx context.Context, user string) ([]common.Dish, error) {
	names, err := s.pantry.IngredientNames(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.Suggest(ctx, names)
}

// Suggest 為一組食材產生菜色建議
//
// 快取命中時原封不動回傳先前的結果（圖片在寫入時就已解析）。
// 未命中才呼叫模型；擷取不到任何菜色仍是成功的空結果，
// 與傳輸層失敗（ErrModelUnavailable）是兩回事。
// 同指紋的並發未命中可能重複呼叫模型並各自寫入，
// 查詢以最新一筆為準，這裡不做 single-flight。
func (s *Service) Suggest(ctx context.Context, ingredientNames []string) ([]common.Dish, error) {
	normalized := common.NormalizeIngredients(ingredientNames)
	if len(normalized) == 0 {
		return nil, common.ErrEmptyPantry
	}

	fingerprint := Fingerprint(normalized)

	if s.store != nil {
		entry, err := s.store.Get(ctx, fingerprint)
		if err == nil {
			return entry.Payload, nil
		}
		// 未命中照走模型；快取後端故障也不擋建議，但要留下紀錄
		if !common.IsCode(err, common.ErrCodeCacheMiss) {
			common.LogWarn("快取查詢失敗",
				zap.Error(err),
				zap.String("fingerprint", fingerprint),
			)
		}
	}

	prompt := fmt.Sprintf(suggestionPromptTemplate, strings.Join(normalized, ", "))
	common.LogDebug("組裝建議 prompt",
		zap.String("prompt", prompt),
		zap.String("fingerprint", fingerprint),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Model.SuggestTimeout)
	defer cancel()

	content, err := s.model.Chat(callCtx, prompt)
	if err != nil {
		return nil, err
	}

	dishes := Extract(content)
	if len(dishes) == 0 {
		common.LogWarn("模型回覆擷取不到任何菜色",
			zap.String("fingerprint", fingerprint),
			zap.String("raw_response", content),
		)
	}

	for i := range dishes {
		dishes[i].Image = s.catalog.Resolve(dishes[i].Name)
	}

	if s.store != nil {
		if _, err := s.store.Put(ctx, fingerprint, dishes); err != nil {
			common.LogWarn("快取寫入失敗",
				zap.Error(err),
				zap.String("fingerprint", fingerprint),
			)
		}
	}

	return dishes, nil
}

// looseDetail 寬鬆版中繼結構：time_minutes 可能是整數、浮點或字串
type looseDetail struct {
	Name        string                    `json:"name"`
	Ingredients []common.DetailIngredient `json:"ingredients"`
	Instructions []struct {
		Step        string      `json:"step"`
		TimeMinutes json.Number `json:"time_minutes"`
	} `json:"instructions"`
	TimeMinutes json.Number `json:"time_minutes"`
}

// Detail 取得單一菜色的完整食譜；每次都是即時呼叫，不進快取
//
// 詳情回應應該是單一 JSON 物件：先剝掉 code fence，
// 嚴格解析失敗時用「還原內嵌引號」的備援再試一次，
// 仍失敗才回報 ErrResponseParse（附上原文供除錯）。
func (s *Service) Detail(ctx context.Context, dishName string) (*common.RecipeDetail, error) {
	dishName = strings.TrimSpace(dishName)
	if dishName == "" {
		return nil, common.ErrInvalidRequest
	}

	prompt := fmt.Sprintf(detailPromptTemplate, dishName)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Model.DetailTimeout)
	defer cancel()

	content, err := s.model.Chat(callCtx, prompt)
	if err != nil {
		return nil, err
	}

	body := stripFences(content)

	var loose looseDetail
	if perr := common.ParseJSON(body, &loose); perr != nil {
		// 模型偶爾會多包一層逸出引號或照 Python dict 寫鍵名，修補後重試一次
		retry := common.QuoteJSONKeys(unescapeEmbeddedQuotes(body))
		if rerr := common.ParseJSON(retry, &loose); rerr != nil {
			common.LogError("食譜詳情解析失敗",
				zap.Error(perr),
				zap.String("dish_name", dishName),
				zap.String("raw_response", content),
			)
			return nil, common.WrapError(common.ErrResponseParse,
				fmt.Errorf("failed to parse detail response: %w (raw: %s)", perr, content))
		}
	}

	detail := &common.RecipeDetail{
		Name:        loose.Name,
		Ingredients: loose.Ingredients,
		TimeMinutes: numberToMinutes(loose.TimeMinutes),
	}
	if detail.Name == "" {
		detail.Name = dishName
	}
	for _, step := range loose.Instructions {
		detail.Instructions = append(detail.Instructions, common.InstructionStep{
			Step:        step.Step,
			TimeMinutes: numberToMinutes(step.TimeMinutes),
		})
	}
	detail.Image = s.catalog.Resolve(dishName)

	return detail, nil
}

// stripFences 剝掉 markdown code fence，保留第一個 { 到最後一個 }
func stripFences(content string) string {
	txt := strings.TrimSpace(content)
	txt = strings.TrimPrefix(txt, "```json")
	txt = strings.TrimPrefix(txt, "```")
	txt = strings.TrimSuffix(txt, "```")
	txt = strings.TrimSpace(txt)
	if start, end := strings.Index(txt, "{"), strings.LastIndex(txt, "}"); start != -1 && end != -1 && end > start {
		txt = txt[start : end+1]
	}
	return txt
}

// unescapeEmbeddedQuotes 還原多包一層的逸出引號
func unescapeEmbeddedQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted
		}
	}
	return strings.NewReplacer(`\"`, `"`, `\'`, `'`).Replace(s)
}

// numberToMinutes 將 json.Number 轉成整數分鐘，無法轉換時為 0
func numberToMinutes(n json.Number) int {
	if n == "" {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return int(v)
	}
	if f, err := n.Float64(); err == nil {
		return int(f)
	}
	return 0
}
