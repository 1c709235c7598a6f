package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSignal 信号类型或负载不合法
var ErrInvalidSignal = errors.New("invalid signal")

// SignalType 信号类型
type SignalType string

const (
	SignalSwapEvent        SignalType = "swap_event"
	SignalChargerStatus    SignalType = "charger_status"
	SignalBatteryInventory SignalType = "battery_inventory"
	SignalErrorLog         SignalType = "error_log"
)

// Valid 检查信号类型是否已知
func (t SignalType) Valid() bool {
	switch t {
	case SignalSwapEvent, SignalChargerStatus, SignalBatteryInventory, SignalErrorLog:
		return true
	}
	return false
}

// 充电桩状态
const (
	ChargerUp   = "up"
	ChargerDown = "down"
)

// SwapEventData 换电事件
type SwapEventData struct {
	DriverID     string `json:"driverId,omitempty"`
	OldBatteryID string `json:"oldBatteryId,omitempty"`
	NewBatteryID string `json:"newBatteryId,omitempty"`
	SwapTime     int    `json:"swapTime,omitempty"` // 分钟
	Status       string `json:"status,omitempty"`
}

// ChargerStatusData 充电桩状态上报
type ChargerStatusData struct {
	ChargerID   string   `json:"chargerId,omitempty"`
	Status      string   `json:"status"` // up, down
	ErrorCode   string   `json:"errorCode,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// BatteryInventoryData 电池库存
type BatteryInventoryData struct {
	Charged       *int `json:"charged,omitempty"`
	Uncharged     int  `json:"uncharged,omitempty"`
	TotalCapacity int  `json:"totalCapacity,omitempty"`
}

// ErrorLogData 错误日志
type ErrorLogData struct {
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	Severity  string `json:"severity,omitempty"`
}

// GroupKey 用于重复故障归类的错误标识
func (e *ErrorLogData) GroupKey() string {
	switch {
	case e.ErrorCode != "":
		return e.ErrorCode
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return e.Code
	}
	return "UNKNOWN"
}

// Signal 单条遥测信号，按 Type 只有一个负载字段非空
type Signal struct {
	ID        string
	Type      SignalType
	Timestamp time.Time

	SwapEvent        *SwapEventData
	ChargerStatus    *ChargerStatusData
	BatteryInventory *BatteryInventoryData
	ErrorLog         *ErrorLogData
}

// NewSignal 解析并校验原始负载，构造信号
func NewSignal(id string, typ SignalType, raw json.RawMessage, ts time.Time) (*Signal, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidSignal, typ)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	sig := &Signal{ID: id, Type: typ, Timestamp: ts}

	var err error
	switch typ {
	case SignalSwapEvent:
		sig.SwapEvent = &SwapEventData{}
		err = json.Unmarshal(raw, sig.SwapEvent)
	case SignalChargerStatus:
		sig.ChargerStatus = &ChargerStatusData{}
		if err = json.Unmarshal(raw, sig.ChargerStatus); err == nil {
			if s := sig.ChargerStatus.Status; s != ChargerUp && s != ChargerDown {
				err = fmt.Errorf("charger status must be %q or %q, got %q", ChargerUp, ChargerDown, s)
			}
		}
	case SignalBatteryInventory:
		sig.BatteryInventory = &BatteryInventoryData{}
		if err = json.Unmarshal(raw, sig.BatteryInventory); err == nil {
			if c := sig.BatteryInventory.Charged; c != nil && *c < 0 {
				err = fmt.Errorf("charged must not be negative, got %d", *c)
			}
		}
	case SignalErrorLog:
		sig.ErrorLog = &ErrorLogData{}
		err = json.Unmarshal(raw, sig.ErrorLog)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSignal, typ, err)
	}

	return sig, nil
}

// Data 返回当前类型对应的负载
func (s *Signal) Data() interface{} {
	switch s.Type {
	case SignalSwapEvent:
		return s.SwapEvent
	case SignalChargerStatus:
		return s.ChargerStatus
	case SignalBatteryInventory:
		return s.BatteryInventory
	case SignalErrorLog:
		return s.ErrorLog
	}
	return nil
}

type signalJSON struct {
	ID        string          `json:"id"`
	Type      SignalType      `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// MarshalJSON 输出 {id, type, data, timestamp}
func (s Signal) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(s.Data())
	if err != nil {
		return nil, err
	}
	return json.Marshal(signalJSON{ID: s.ID, Type: s.Type, Data: data, Timestamp: s.Timestamp})
}

// UnmarshalJSON 按类型解析负载
func (s *Signal) UnmarshalJSON(b []byte) error {
	var v signalJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := NewSignal(v.ID, v.Type, v.Data, v.Timestamp)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
