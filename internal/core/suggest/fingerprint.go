package suggest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"pantry-chef/internal/pkg/common"
)

// fingerprintDelimiter 正規化食材串接時使用的固定分隔符
const fingerprintDelimiter = ", "

// Fingerprint 計算食材集合的指紋，作為建議快取的鍵
// 名稱先去空白、轉小寫、排序、去重，因此同一組食材
// 不論輸入順序或大小寫都會得到相同指紋
func Fingerprint(names []string) string {
	normalized := common.NormalizeIngredients(names)
	joined := strings.Join(normalized, fingerprintDelimiter)
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
