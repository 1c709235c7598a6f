package events

import (
	"context"

	"github.com/langchou/stationos/pkg/ws"
)

// 事件主题
const (
	TopicStationsUpdate  = ws.MsgTypeStationsUpdate
	TopicSignalReceived  = ws.MsgTypeSignalReceived
	TopicDecisionCreated = ws.MsgTypeDecisionCreated
	TopicStationAlert    = "station-alert"
	TopicTicketReceived  = "maintenance-ticket"
	TopicRerouteReceived = "reroute-notification"
)

// Publisher 事件发布者，发布失败只记录日志
type Publisher interface {
	Publish(ctx context.Context, topic string, data interface{})
}

// Deduplicated 可去重的事件
type Deduplicated interface {
	DedupKey() string
}

// HubPublisher 通过 WebSocket Hub 推送事件
type HubPublisher struct {
	hub *ws.Hub
}

// NewHubPublisher 创建 WebSocket 发布者
func NewHubPublisher(hub *ws.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// Publish 广播到所有 WebSocket 客户端
func (p *HubPublisher) Publish(ctx context.Context, topic string, data interface{}) {
	p.hub.BroadcastMessage(topic, data)
}

// Multi 把事件发给多个发布者
type Multi []Publisher

// Publish 依次发布
func (m Multi) Publish(ctx context.Context, topic string, data interface{}) {
	for _, p := range m {
		p.Publish(ctx, topic, data)
	}
}

// Nop 丢弃所有事件
type Nop struct{}

// Publish 不做任何事
func (Nop) Publish(context.Context, string, interface{}) {}
