package monitoring

import (
	"math"
	"time"

	"github.com/langchou/stationos/internal/models"
)

const (
	// SwapRateWindow 换电率统计窗口
	SwapRateWindow = 15 * time.Minute
	// DefaultChargedBatteries 没有库存信号时假定的满电电池数
	DefaultChargedBatteries = 5
	// DefaultChargerUptime 没有充电桩信号时假定的在线率
	DefaultChargerUptime = 100
)

// Deriver 从信号窗口计算站点指标
type Deriver struct {
	now func() time.Time
}

// NewDeriver 创建指标计算器，now 为空时使用 time.Now
func NewDeriver(now func() time.Time) *Deriver {
	if now == nil {
		now = time.Now
	}
	return &Deriver{now: now}
}

// Derive 基于站点当前信号窗口做一次完整重算
// 唯一的副作用是向站点的换电率历史追加一个样本
func (d *Deriver) Derive(st *models.Station) models.Metrics {
	now := d.now()
	cutoff := now.Add(-SwapRateWindow)

	var (
		swapRate     int
		chargerTotal int
		chargerUp    int
		errorCount   int
		charged      = DefaultChargedBatteries
	)

	for _, sig := range st.RecentSignals {
		switch sig.Type {
		case models.SignalSwapEvent:
			if sig.Timestamp.After(cutoff) {
				swapRate++
			}
		case models.SignalChargerStatus:
			chargerTotal++
			if sig.ChargerStatus != nil && sig.ChargerStatus.Status == models.ChargerUp {
				chargerUp++
			}
		case models.SignalBatteryInventory:
			// 取最新一条库存信号
			if sig.BatteryInventory != nil && sig.BatteryInventory.Charged != nil {
				charged = *sig.BatteryInventory.Charged
			} else {
				charged = DefaultChargedBatteries
			}
		case models.SignalErrorLog:
			errorCount++
		}
	}

	uptime := DefaultChargerUptime
	if chargerTotal > 0 {
		uptime = int(roundHalfUp(float64(chargerUp) / float64(chargerTotal) * 100))
	}

	st.RecordSwapRate(swapRate)

	return models.Metrics{
		SwapRate:             swapRate,
		SwapRateBaseline:     baseline(st.SwapRateHistory),
		QueueLength:          QueueLength(swapRate, charged),
		ChargedBatteries:     charged,
		ChargerUptimePercent: uptime,
		ErrorFrequency:       errorCount,
		Timestamp:            now,
	}
}

// EmptyWindowMetrics 空信号窗口对应的指标，不写入换电率历史
func EmptyWindowMetrics(now time.Time) models.Metrics {
	return models.Metrics{
		QueueLength:          QueueLength(0, DefaultChargedBatteries),
		ChargedBatteries:     DefaultChargedBatteries,
		ChargerUptimePercent: DefaultChargerUptime,
		Timestamp:            now,
	}
}

// QueueLength 需求/供给的简单代理: max(0, round(swapRate - charged/2))
func QueueLength(swapRate, chargedBatteries int) int {
	q := roundHalfUp(float64(swapRate) - float64(chargedBatteries)/2)
	if q < 0 {
		return 0
	}
	return int(q)
}

func baseline(history []int) float64 {
	if len(history) == 0 {
		return 0
	}
	sum := 0
	for _, v := range history {
		sum += v
	}
	return roundTo1(float64(sum) / float64(len(history)))
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

func roundTo1(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}
