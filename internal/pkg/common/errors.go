package common

import (
	"errors"
	"net/http"
)

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap 支援 errors.Is / errors.As 鏈
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// WrapError 以預定義錯誤為基底附加原始錯誤
func WrapError(base *CustomError, err error) *CustomError {
	return &CustomError{
		Code:    base.Code,
		Message: base.Message,
		Status:  base.Status,
		Err:     err,
	}
}

// IsCode 檢查錯誤鏈中是否有指定錯誤代碼
func IsCode(err error, code string) bool {
	var ce *CustomError
	for errors.As(err, &ce) {
		if ce.Code == code {
			return true
		}
		err = ce.Err
		if err == nil {
			return false
		}
	}
	return false
}

// 預定義錯誤代碼
const (
	// 通用錯誤
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeRequestTimeout  = "REQUEST_TIMEOUT"   // 請求整體逾時
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429
	ErrCodeInternalError   = "INTERNAL_ERROR"    // 500

	// 業務錯誤
	ErrCodeEmptyPantry      = "EMPTY_PANTRY"      // 食材庫存在但沒有任何食材
	ErrCodeNoPantry         = "NO_PANTRY"         // 使用者沒有食材庫紀錄
	ErrCodeModelUnavailable = "MODEL_UNAVAILABLE" // 模型服務網路錯誤、逾時或非 2xx
	ErrCodeResponseParse    = "RESPONSE_PARSE"    // 模型有回覆但完全解析不出結果
	ErrCodeCacheMiss        = "CACHE_MISS"        // 快取未命中（含已過期條目）
)

// 預定義錯誤
var (
	ErrInvalidRequest = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)

	// 業務錯誤
	ErrEmptyPantry      = NewError(ErrCodeEmptyPantry, "Your pantry is empty! Add ingredients first.", http.StatusBadRequest, nil)
	ErrNoPantry         = NewError(ErrCodeNoPantry, "No pantry record found for this user.", http.StatusNotFound, nil)
	ErrModelUnavailable = NewError(ErrCodeModelUnavailable, "AI 模型服務暫時不可用", http.StatusServiceUnavailable, nil)
	ErrResponseParse    = NewError(ErrCodeResponseParse, "無法解析 AI 回應", http.StatusBadGateway, nil)
	ErrCacheMiss        = NewError(ErrCodeCacheMiss, "快取未命中", http.StatusNotFound, nil)
)
