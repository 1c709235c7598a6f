package monitoring

import (
	"fmt"

	"github.com/langchou/stationos/internal/models"
)

// 规则阈值
const (
	CongestionQueueThreshold   = 3
	SurgeMultiplier            = 2.0
	SurgeMinSwapRate           = 4
	StockoutBatteryThreshold   = 4
	StockoutCriticalBatteries  = 2
	StockoutSwapRateThreshold  = 4
	RecurringFaultWindow       = 20
	RecurringFaultMinCount     = 3
	ChargerFaultErrorThreshold = 3
	DowntimeUptimeThreshold    = 90
	EscalationMinTriggers      = 2
)

// EvaluateTriggers 按固定顺序评估所有规则，Multi-Failure Escalation 总在最后
// 站点没有指标时返回空列表
func EvaluateTriggers(st *models.Station) []models.Trigger {
	m := st.Metrics
	if m == nil {
		return nil
	}

	triggers := make([]models.Trigger, 0, 4)

	// 拥堵
	if m.QueueLength > CongestionQueueThreshold {
		triggers = append(triggers, models.Trigger{
			Name:      models.TriggerCongestion,
			Severity:  models.SeverityWarning,
			Metric:    "queueLength",
			Value:     float64(m.QueueLength),
			Threshold: CongestionQueueThreshold,
			Reason:    fmt.Sprintf("Queue length (%d) exceeds threshold (%d)", m.QueueLength, CongestionQueueThreshold),
		})
	}

	// 需求激增，基线过小时要求最低换电率
	if m.SwapRateBaseline > 0 &&
		float64(m.SwapRate) >= SurgeMultiplier*m.SwapRateBaseline &&
		m.SwapRate >= SurgeMinSwapRate {
		triggers = append(triggers, models.Trigger{
			Name:      models.TriggerDemandSurge,
			Severity:  models.SeverityWarning,
			Metric:    "swapRate",
			Value:     float64(m.SwapRate),
			Threshold: SurgeMultiplier * m.SwapRateBaseline,
			Reason: fmt.Sprintf("Swap rate (%d/15min) is at least %.0fx the rolling baseline (%.1f)",
				m.SwapRate, SurgeMultiplier, m.SwapRateBaseline),
		})
	}

	// 缺货风险
	if m.ChargedBatteries < StockoutBatteryThreshold && m.SwapRate > StockoutSwapRateThreshold {
		severity := models.SeverityWarning
		if m.ChargedBatteries < StockoutCriticalBatteries {
			severity = models.SeverityCritical
		}
		minutes := TimeToStockout(m.ChargedBatteries, m.SwapRate)
		triggers = append(triggers, models.Trigger{
			Name:      models.TriggerStockoutRisk,
			Severity:  severity,
			Metric:    "chargedBatteries",
			Value:     float64(m.ChargedBatteries),
			Threshold: StockoutBatteryThreshold,
			Reason: fmt.Sprintf("Low battery inventory (%d) with high demand (%d swaps/15min)",
				m.ChargedBatteries, m.SwapRate),
			TimeToStockoutMinutes: &minutes,
		})
	}

	// 重复故障优先于笼统的充电桩故障
	if code, count, ok := recurringError(st.RecentSignals); ok {
		triggers = append(triggers, models.Trigger{
			Name:      models.TriggerRecurringFault,
			Severity:  models.SeverityWarning,
			Metric:    "errorCode",
			Value:     float64(count),
			Threshold: RecurringFaultMinCount,
			Reason:    fmt.Sprintf("Error %s occurred %d times in the last %d error logs", code, count, RecurringFaultWindow),
			ErrorCode: code,
		})
	} else if m.ErrorFrequency >= ChargerFaultErrorThreshold {
		triggers = append(triggers, models.Trigger{
			Name:      models.TriggerChargerFault,
			Severity:  models.SeverityWarning,
			Metric:    "errorFrequency",
			Value:     float64(m.ErrorFrequency),
			Threshold: ChargerFaultErrorThreshold,
			Reason:    fmt.Sprintf("Multiple charger errors detected (%d errors)", m.ErrorFrequency),
		})
	}

	// 在线率
	if m.ChargerUptimePercent < DowntimeUptimeThreshold {
		triggers = append(triggers, models.Trigger{
			Name:      models.TriggerChargerDowntime,
			Severity:  models.SeverityWarning,
			Metric:    "chargerUptimePercent",
			Value:     float64(m.ChargerUptimePercent),
			Threshold: DowntimeUptimeThreshold,
			Reason:    fmt.Sprintf("Charger uptime (%d%%) below acceptable level (%d%%)", m.ChargerUptimePercent, DowntimeUptimeThreshold),
		})
	}

	// 升级，只统计前面已命中的触发器
	if n := len(triggers); n >= EscalationMinTriggers {
		triggers = append(triggers, models.Trigger{
			Name:      models.TriggerMultiFailure,
			Severity:  models.SeverityCritical,
			Metric:    "multiple",
			Value:     float64(n),
			Threshold: EscalationMinTriggers,
			Reason:    fmt.Sprintf("Multiple issues detected simultaneously at station (%d triggers)", n),
		})
	}

	return triggers
}

// TimeToStockout 按当前换电速度估算满电电池耗尽的分钟数
func TimeToStockout(chargedBatteries, swapRate int) int {
	if swapRate <= 0 {
		return 0
	}
	perMinute := float64(swapRate) / SwapRateWindow.Minutes()
	return int(roundHalfUp(float64(chargedBatteries) / perMinute))
}

// recurringError 在最近的错误日志中查找出现次数最多且达到阈值的错误码
// 次数相同时取最早出现的
func recurringError(signals []*models.Signal) (string, int, bool) {
	recent := make([]*models.ErrorLogData, 0, RecurringFaultWindow)
	for i := len(signals) - 1; i >= 0 && len(recent) < RecurringFaultWindow; i-- {
		if sig := signals[i]; sig.Type == models.SignalErrorLog && sig.ErrorLog != nil {
			recent = append(recent, sig.ErrorLog)
		}
	}

	counts := make(map[string]int)
	var order []string
	for i := len(recent) - 1; i >= 0; i-- {
		key := recent[i].GroupKey()
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	best, bestCount := "", 0
	for _, key := range order {
		if counts[key] > bestCount {
			best, bestCount = key, counts[key]
		}
	}
	if bestCount < RecurringFaultMinCount {
		return "", 0, false
	}
	return best, bestCount, true
}

// StatusFromTriggers 根据触发器严重程度推导站点状态
func StatusFromTriggers(triggers []models.Trigger) models.StationStatus {
	if len(triggers) == 0 {
		return models.StatusNormal
	}
	for _, t := range triggers {
		if t.Severity == models.SeverityCritical {
			return models.StatusCritical
		}
	}
	return models.StatusWarning
}
