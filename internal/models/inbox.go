package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPayload 收到的工单或改道通知无法接受
var ErrInvalidPayload = errors.New("invalid payload")

// TicketStatus 维修工单状态
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in-progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// ParseTicketStatus 解析工单状态
func ParseTicketStatus(s string) (TicketStatus, error) {
	switch st := TicketStatus(s); st {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown ticket status %q", ErrInvalidPayload, s)
}

// ForwardStatus 转发到下游工作流的结果
type ForwardStatus string

const (
	ForwardSkipped  ForwardStatus = "received"       // 未配置下游
	ForwardSent     ForwardStatus = "forwarded"      // 下游 2xx
	ForwardRejected ForwardStatus = "forward_error"  // 下游非 2xx
	ForwardFailed   ForwardStatus = "forward_failed" // 网络错误
)

// Ticket 收到的维修工单
type Ticket struct {
	ID            string          `json:"id"`
	Status        TicketStatus    `json:"status"`
	AssignedTo    string          `json:"assigned_to,omitempty"`
	Resolution    string          `json:"resolution,omitempty"`
	ForwardStatus ForwardStatus   `json:"forward_status"`
	ForwardError  string          `json:"forward_error,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

// Clone 深拷贝
func (t *Ticket) Clone() *Ticket {
	c := *t
	if t.UpdatedAt != nil {
		u := *t.UpdatedAt
		c.UpdatedAt = &u
	}
	return &c
}

// RerouteNotification 收到的改道通知
type RerouteNotification struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Status    ForwardStatus   `json:"status"`
	Mode      string          `json:"mode"`
	Payload   json.RawMessage `json:"payload"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}
