package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action 推荐动作
type Action string

const (
	ActionRerouteDrivers     Action = "Reroute Drivers"
	ActionInventoryRebalance Action = "Initiate Inventory Rebalance"
	ActionMaintenanceTicket  Action = "Create Maintenance Ticket"
	ActionAlertMaintenance   Action = "Alert Maintenance Team"
	ActionEscalate           Action = "Escalate to On-Call Manager"
)

// Executable 是否可以由执行器自动下发
func (a Action) Executable() bool {
	switch a {
	case ActionRerouteDrivers, ActionMaintenanceTicket, ActionAlertMaintenance:
		return true
	}
	return false
}

// Valid 检查动作是否已知
func (a Action) Valid() bool {
	switch a {
	case ActionRerouteDrivers, ActionInventoryRebalance, ActionMaintenanceTicket, ActionAlertMaintenance, ActionEscalate:
		return true
	}
	return false
}

// Mode 执行模式
type Mode string

const (
	ModeConservative Mode = "conservative" // 需要人工审批
	ModeAggressive   Mode = "aggressive"   // 自动执行
)

// ParseMode 解析执行模式，空值默认为 conservative
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeConservative:
		return ModeConservative, nil
	case ModeAggressive:
		return ModeAggressive, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// DeliveryMode 通知下发模式
type DeliveryMode string

const (
	DeliverySimulation DeliveryMode = "simulation"
	DeliveryLiveDemo   DeliveryMode = "live_demo"
)

// ParseDeliveryMode 解析下发模式，空值默认为 simulation
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch DeliveryMode(s) {
	case "", DeliverySimulation:
		return DeliverySimulation, nil
	case DeliveryLiveDemo:
		return DeliveryLiveDemo, nil
	}
	return "", fmt.Errorf("unknown delivery mode %q", s)
}

// Confidence 置信度
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// DecisionStatus 决策状态
type DecisionStatus string

const (
	DecisionPendingApproval   DecisionStatus = "pending-approval"
	DecisionAutoExecuted      DecisionStatus = "auto-executed"
	DecisionApproved          DecisionStatus = "approved"
	DecisionExecuted          DecisionStatus = "executed"
	DecisionAutoExecuteFailed DecisionStatus = "auto-execute-failed"
	DecisionExecuteFailed     DecisionStatus = "execute-failed"
)

// 决策来源
const (
	SourceRules   = "rules"
	SourceAdvisor = "advisor"
)

// Explanation 决策解释
type Explanation struct {
	Why                   string     `json:"why"`
	ExpectedImpact        string     `json:"expectedImpact"`
	Confidence            Confidence `json:"confidence"`
	ProbableRootCause     string     `json:"probableRootCause,omitempty"`
	TimeToStockoutMinutes *int       `json:"timeToStockoutMinutes,omitempty"`
}

// ExecutionResult 执行器返回的结构化结果，失败时不抛错
type ExecutionResult struct {
	Success      bool            `json:"success"`
	DeliveryMode DeliveryMode    `json:"deliveryMode,omitempty"`
	Attempts     int             `json:"attempts"`
	StatusCode   int             `json:"statusCode,omitempty"`
	Response     json.RawMessage `json:"response,omitempty"`
	RawResponse  string          `json:"rawResponse,omitempty"`
	Error        string          `json:"error,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Decision 由单个触发器产生的推荐或已执行动作
type Decision struct {
	ID          string         `json:"id"`
	StationID   string         `json:"stationId"`
	StationName string         `json:"stationName"`
	Trigger     TriggerName    `json:"trigger"`
	Severity    Severity       `json:"severity"`
	Action      Action         `json:"action"`
	Mode        Mode           `json:"mode"`
	Source      string         `json:"source"`
	Explanation Explanation    `json:"explanation"`
	Status      DecisionStatus `json:"status"`
	Metrics     *Metrics       `json:"metrics,omitempty"`
	CreatedAt   time.Time      `json:"timestamp"`

	ApprovedAt      *time.Time       `json:"approvedAt,omitempty"`
	ExecutedAt      *time.Time       `json:"executedAt,omitempty"`
	ExecutionResult *ExecutionResult `json:"executionResult,omitempty"`
}

// Clone 深拷贝
func (d *Decision) Clone() *Decision {
	c := *d
	if d.Metrics != nil {
		m := *d.Metrics
		c.Metrics = &m
	}
	if d.ApprovedAt != nil {
		t := *d.ApprovedAt
		c.ApprovedAt = &t
	}
	if d.ExecutedAt != nil {
		t := *d.ExecutedAt
		c.ExecutedAt = &t
	}
	if d.ExecutionResult != nil {
		r := *d.ExecutionResult
		c.ExecutionResult = &r
	}
	return &c
}
