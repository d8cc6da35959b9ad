package ai

import (
	"context"
	"fmt"
	"time"

	"pantry-chef/internal/infrastructure/config"
	"pantry-chef/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Provider 定義模型客戶端介面，服務層只依賴這個介面
type Provider interface {
	// Chat 以單輪對話取得模型的文字回覆
	Chat(ctx context.Context, prompt string) (string, error)

	// Close 關閉客戶端連接
	Close() error
}

// Client 與 OpenAI 相容端點（如 LM Studio）溝通的客戶端
type Client struct {
	http *resty.Client
	cfg  config.ModelConfig
}

// NewClient 創建模型客戶端
func NewClient(cfg config.ModelConfig) *Client {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0) // 單次嘗試，逾時或錯誤即回報，不在客戶端重試
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Client{
		http: client,
		cfg:  cfg,
	}
}

// Chat 發送 chat/completions 請求並取回第一個選擇的內容
// 逾時由呼叫端透過 ctx 控制；網路錯誤、非 2xx、空回覆皆回報 ErrModelUnavailable
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	req := &Request{
		Model: c.cfg.Name,
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
	}

	common.LogInfo("發送模型請求",
		zap.String("model", req.Model),
		zap.Int("prompt_length", len(prompt)),
	)

	start := time.Now()
	var envelope Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&envelope).
		Post(c.cfg.Endpoint)
	if err != nil {
		common.LogError("模型請求失敗",
			zap.Error(err),
			zap.String("model", req.Model),
			zap.Duration("耗時", time.Since(start)),
		)
		return "", common.WrapError(common.ErrModelUnavailable, fmt.Errorf("failed to send request: %w", err))
	}

	if resp.IsError() {
		common.LogError("模型端點回傳錯誤狀態",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("model", req.Model),
			zap.String("raw_response", resp.String()),
		)
		return "", common.WrapError(common.ErrModelUnavailable,
			fmt.Errorf("model endpoint error (status %d)", resp.StatusCode()))
	}

	if len(envelope.Choices) == 0 {
		common.LogError("模型回應缺少 choices",
			zap.String("model", req.Model),
			zap.String("raw_response", resp.String()),
		)
		return "", common.WrapError(common.ErrModelUnavailable, fmt.Errorf("empty choices in response"))
	}

	content := envelope.Choices[0].Message.Content
	if content == "" {
		common.LogError("模型回應內容為空",
			zap.String("model", req.Model),
			zap.String("raw_response", resp.String()),
		)
		return "", common.WrapError(common.ErrModelUnavailable, fmt.Errorf("empty content in response"))
	}

	common.LogInfo("模型回應成功",
		zap.String("model", req.Model),
		zap.Int("content_length", len(content)),
		zap.Duration("耗時", time.Since(start)),
	)

	return content, nil
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}
