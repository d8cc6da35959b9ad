package suggest

import (
	"strings"

	"pantry-chef/internal/pkg/common"

	"go.uber.org/zap"
)

// fragment 單一片段的候選結構：可能是一道菜，也可能是包了 dishes 的封套
type fragment struct {
	Name             string        `json:"name"`
	ShortDescription string        `json:"short_description"`
	Cuisine          string        `json:"cuisine"`
	Difficulty       string        `json:"difficulty"`
	ImageHint        string        `json:"image_hint"`
	Dishes           []common.Dish `json:"dishes"`
}

// Extract 從原始模型輸出擷取菜色紀錄
// 模型回覆可能夾雜說明文字、code fence 或格式錯誤的 JSON 片段；
// 壞掉的片段直接略過，部分成功也是有效結果，完全擷取不到
// 就回傳空切片，由呼叫端決定是否視為錯誤
func Extract(raw string) []common.Dish {
	content := strings.TrimSpace(raw)
	// 模型可能把同一個 JSON 物件折行，先移除換行再掃描
	content = strings.ReplaceAll(content, "\n", "")

	var dishes []common.Dish
	for _, frag := range scanObjects(content) {
		var f fragment
		if err := common.ParseJSON(frag, &f); err != nil {
			common.LogDebug("略過無法解析的片段",
				zap.Error(err),
				zap.Int("fragment_length", len(frag)),
			)
			continue
		}
		switch {
		case f.Name != "":
			// 片段同時帶 name 與 dishes 時以 name 為準，視為單一紀錄
			dishes = append(dishes, common.Dish{
				Name:             f.Name,
				ShortDescription: f.ShortDescription,
				Cuisine:          f.Cuisine,
				Difficulty:       f.Difficulty,
				ImageHint:        f.ImageHint,
			})
		case len(f.Dishes) > 0:
			// 模型有時會把結果包在 dishes 封套裡，攤平成獨立紀錄
			dishes = append(dishes, f.Dishes...)
		}
	}
	return dishes
}

// scanObjects 掃描文字中所有頂層的大括號物件，依出現順序回傳
// 追蹤括號深度與字串逸出狀態，巢狀物件會留在外層片段內而不會被
// 拆開。掃到結尾仍未閉合時，丟掉那個落單的開括號、從它的下一個
// 字元重掃，散文裡的雜散 { 才不會吞掉後面完整的物件
func scanObjects(s string) []string {
	var frags []string
	offset := 0

	for offset < len(s) {
		depth := 0
		start := -1
		inString := false
		escaped := false

		for i := offset; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				// 只在物件內追蹤字串，物件外的引號是散文，不影響掃描
				if depth > 0 {
					inString = true
				}
			case '{':
				if depth == 0 {
					start = i
				}
				depth++
			case '}':
				if depth > 0 {
					depth--
					if depth == 0 && start >= 0 {
						frags = append(frags, s[start:i+1])
						start = -1
					}
				}
			}
		}

		if depth > 0 && start >= 0 {
			offset = start + 1
			continue
		}
		break
	}
	return frags
}
