package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
)

// Notifier 外部 webhook 通知器（尽力而为）
// 向协作方（Discord 桥接、审计系统等）推送状态变更；失败重试后放弃，不影响核心操作
type Notifier struct {
	client  *resty.Client
	url     string
	enabled bool
	logger  *zap.Logger
}

// NewNotifier 创建webhook通知器
func NewNotifier(cfg config.WebhookConfig, logger *zap.Logger) *Notifier {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Notifier{
		client:  client,
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		logger:  logger,
	}
}

// Payload webhook 消息体
type Payload struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notify 推送事件；禁用时为 no-op
func (n *Notifier) Notify(ctx context.Context, event string, data interface{}) {
	if !n.enabled {
		return
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(Payload{Event: event, Data: data, Timestamp: time.Now().UTC()}).
		Post(n.url)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("event", event), zap.Error(err))
		return
	}
	if resp.IsError() {
		n.logger.Warn("webhook returned error status",
			zap.String("event", event), zap.Int("status", resp.StatusCode()))
	}
}
