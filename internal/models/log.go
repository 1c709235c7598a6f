package models

import (
	"encoding/json"
	"time"
)

// LogEntryType 决策日志条目类型
type LogEntryType string

const (
	LogDecision                       LogEntryType = "decision"
	LogNotificationFailure            LogEntryType = "notification_failure"
	LogMaintenanceNotificationFailure LogEntryType = "maintenance_notification_failure"
	LogPersistenceFailure             LogEntryType = "persistence_failure"
)

// Failure 下发或持久化失败记录
type Failure struct {
	ID         string          `json:"id"`
	DecisionID string          `json:"decisionId,omitempty"`
	StationID  string          `json:"stationId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error"`
	Attempts   int             `json:"attempts,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// LogEntry 决策日志条目
type LogEntry struct {
	Type     LogEntryType `json:"type"`
	Decision *Decision    `json:"decision,omitempty"`
	Failure  *Failure     `json:"failure,omitempty"`
}
