package models

// TriggerName 触发器名称
type TriggerName string

const (
	TriggerCongestion      TriggerName = "Congestion"
	TriggerDemandSurge     TriggerName = "Demand Surge"
	TriggerStockoutRisk    TriggerName = "Stockout Risk"
	TriggerRecurringFault  TriggerName = "Recurring Fault"
	TriggerChargerFault    TriggerName = "Charger Fault"
	TriggerChargerDowntime TriggerName = "Charger Downtime"
	TriggerMultiFailure    TriggerName = "Multi-Failure Escalation"
)

// Severity 严重程度
type Severity string

const (
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// Trigger 一次评估中命中的规则
type Trigger struct {
	Name      TriggerName `json:"name"`
	Severity  Severity    `json:"severity"`
	Metric    string      `json:"metric"`
	Value     float64     `json:"value"`
	Threshold float64     `json:"threshold"`
	Reason    string      `json:"reason"`

	ErrorCode             string `json:"errorCode,omitempty"`             // Recurring Fault
	TimeToStockoutMinutes *int   `json:"timeToStockoutMinutes,omitempty"` // Stockout Risk
}
