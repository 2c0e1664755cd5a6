package broadcast

import "context"

// 广播事件名：通知协作方（websocket 网关等）刷新对应视图
const (
	EventUnitStatusChanged = "unit-status-changed"
	EventPanicOn           = "panic-on"
	EventPanicOff          = "panic-off"
	EventCallUpdated       = "call-updated"
	EventIncidentUpdated   = "incident-updated"
	EventRefreshLEO        = "refresh-leo"
	EventRefreshEMSFD      = "refresh-ems-fd"
)

// Gateway 广播网关接口
// 广播是尽力而为的：发布失败由实现记录日志，不向调用方传播
type Gateway interface {
	Publish(ctx context.Context, event string, payload interface{})
	Close() error
}

// NopGateway 空实现（广播禁用时使用）
type NopGateway struct{}

func (NopGateway) Publish(ctx context.Context, event string, payload interface{}) {}
func (NopGateway) Close() error                                                   { return nil }
