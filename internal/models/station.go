package models

import "time"

// 容量常量
const (
	SignalBufferCapacity    = 100 // 每个站点保留的最近信号数
	SwapRateHistoryCapacity = 24  // 换电率基线样本数
)

// StationStatus 站点状态
type StationStatus string

const (
	StatusNormal   StationStatus = "Normal"
	StatusWarning  StationStatus = "Warning"
	StatusCritical StationStatus = "Critical"
)

// Rank 排序权重，Critical 最靠前
func (s StationStatus) Rank() int {
	switch s {
	case StatusCritical:
		return 0
	case StatusWarning:
		return 1
	}
	return 2
}

// Coordinates 经纬度
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Metrics 由信号窗口推导出的运营指标
type Metrics struct {
	SwapRate             int       `json:"swapRate"`         // 最近 15 分钟换电次数
	SwapRateBaseline     float64   `json:"swapRateBaseline"` // 最近 24 次采样均值
	QueueLength          int       `json:"queueLength"`
	ChargedBatteries     int       `json:"chargedBatteries"`
	ChargerUptimePercent int       `json:"chargerUptimePercent"`
	ErrorFrequency       int       `json:"errorFrequency"`
	Timestamp            time.Time `json:"timestamp"`
}

// Station 换电站
type Station struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	City        string        `json:"city"`
	Location    string        `json:"location"`
	Coordinates *Coordinates  `json:"coordinates,omitempty"`
	Status      StationStatus `json:"status"`
	Metrics     *Metrics      `json:"metrics,omitempty"`
	Triggers    []Trigger     `json:"triggers"`
	LastUpdate  time.Time     `json:"lastUpdate"`

	RecentSignals   []*Signal `json:"recentSignals"`
	SwapRateHistory []int     `json:"-"`
}

// AppendSignal 追加信号，超出容量时丢弃最旧的
func (s *Station) AppendSignal(sig *Signal) {
	s.RecentSignals = append(s.RecentSignals, sig)
	if over := len(s.RecentSignals) - SignalBufferCapacity; over > 0 {
		s.RecentSignals = append([]*Signal(nil), s.RecentSignals[over:]...)
	}
}

// RecordSwapRate 追加换电率样本，超出容量时丢弃最旧的
func (s *Station) RecordSwapRate(rate int) {
	s.SwapRateHistory = append(s.SwapRateHistory, rate)
	if over := len(s.SwapRateHistory) - SwapRateHistoryCapacity; over > 0 {
		s.SwapRateHistory = append([]int(nil), s.SwapRateHistory[over:]...)
	}
}

// Clone 返回可以安全脱离存储锁使用的副本
// 信号本身不可变，只复制切片
func (s *Station) Clone() *Station {
	c := *s
	if s.Coordinates != nil {
		coords := *s.Coordinates
		c.Coordinates = &coords
	}
	if s.Metrics != nil {
		m := *s.Metrics
		c.Metrics = &m
	}
	c.Triggers = append([]Trigger(nil), s.Triggers...)
	c.RecentSignals = append([]*Signal(nil), s.RecentSignals...)
	c.SwapRateHistory = append([]int(nil), s.SwapRateHistory...)
	return &c
}

// Summary 站点的简要信息，用于对外负载
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Summary 返回站点简要信息
func (s *Station) Summary() Summary {
	return Summary{ID: s.ID, Name: s.Name, City: s.City}
}
