package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/reroute"
)

// 模拟模式最多通知的司机数
const maxSimulatedDrivers = 3

// 工单错误详情最多携带的条数
const maxErrorDetails = 5

type driverRef struct {
	DriverID string `json:"driver_id"`
	Phone    string `json:"phone,omitempty"`
}

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// reroutePayload 改道通知
type reroutePayload struct {
	Type        string              `json:"type"`
	Source      string              `json:"source"`
	Mode        models.DeliveryMode `json:"mode"`
	Drivers     []driverRef         `json:"drivers,omitempty"`
	Driver      *driverRef          `json:"driver,omitempty"`
	StationFrom models.Summary      `json:"station_from"`
	StationTo   models.Summary      `json:"station_to"`
	Reason      string              `json:"reason"`
	DecisionID  string              `json:"decision_id"`

	DistanceKm          *float64  `json:"distance_km,omitempty"`
	ExpectedWaitTimeMin *int      `json:"expected_wait_time_min,omitempty"`
	Confidence          *float64  `json:"confidence,omitempty"`
	TargetLocation      *location `json:"target_location,omitempty"`
}

type maintenanceStation struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Address     string              `json:"address"`
	City        string              `json:"city"`
	Coordinates *models.Coordinates `json:"coordinates,omitempty"`
}

type maintenanceIssue struct {
	Type              models.TriggerName `json:"type"`
	Severity          models.Severity    `json:"severity"`
	CurrentUptime     int                `json:"current_uptime"`
	ErrorCount        int                `json:"error_count"`
	ErrorDetails      []string           `json:"error_details"`
	ProbableRootCause string             `json:"probable_root_cause"`
}

type maintenanceImpact struct {
	AffectedChargers       int    `json:"affected_chargers"`
	ReducedCapacity        string `json:"reduced_capacity"`
	EstimatedQueueIncrease int    `json:"estimated_queue_increase"`
	CurrentQueue           int    `json:"current_queue"`
}

// maintenancePayload 维护工单
type maintenancePayload struct {
	Action         string              `json:"action"`
	Mode           models.DeliveryMode `json:"mode"`
	DecisionID     string              `json:"decision_id"`
	Station        maintenanceStation  `json:"station"`
	Issue          maintenanceIssue    `json:"issue"`
	Impact         maintenanceImpact   `json:"impact"`
	SLA            string              `json:"sla"`
	Trigger        models.TriggerName  `json:"trigger"`
	Reason         string              `json:"reason"`
	ExpectedImpact string              `json:"expected_impact"`
	Confidence     models.Confidence   `json:"confidence"`
	Timestamp      string              `json:"timestamp"`
}

func (e *Executor) buildReroutePayload(d *models.Decision, source *models.Station, target *reroute.Target, mode models.DeliveryMode) reroutePayload {
	p := reroutePayload{
		Type:        "reroute_driver",
		Source:      "stationos",
		Mode:        mode,
		StationFrom: source.Summary(),
		StationTo: models.Summary{
			ID:   target.StationID,
			Name: target.StationName,
			City: target.City,
		},
		Reason:     d.Explanation.Why,
		DecisionID: d.ID,
	}

	if mode == models.DeliverySimulation {
		n := maxSimulatedDrivers
		if source.Metrics != nil && source.Metrics.QueueLength < n {
			n = source.Metrics.QueueLength
		}
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			p.Drivers = append(p.Drivers, driverRef{DriverID: syntheticDriverID()})
		}
		return p
	}

	distance := target.DistanceKm
	wait := target.ExpectedWaitMinutes
	confidence := e.rerouteConfidence(d.Explanation.Confidence)
	p.Driver = &driverRef{DriverID: syntheticDriverID(), Phone: e.cfg.DemoDriverPhone}
	p.DistanceKm = &distance
	p.ExpectedWaitTimeMin = &wait
	p.Confidence = &confidence
	if target.Coordinates != nil {
		p.TargetLocation = &location{Lat: target.Coordinates.Lat, Lng: target.Coordinates.Lng}
	}
	return p
}

func (e *Executor) rerouteConfidence(c models.Confidence) float64 {
	if v, ok := e.cfg.RerouteConfidence[c]; ok {
		return v
	}
	return e.cfg.DefaultRerouteConfidence
}

func (e *Executor) buildMaintenancePayload(d *models.Decision, st *models.Station, mode models.DeliveryMode) maintenancePayload {
	m := models.Metrics{ChargerUptimePercent: 100}
	if st.Metrics != nil {
		m = *st.Metrics
	}

	affected := downChargers(st.RecentSignals)
	sla := "4 hours"
	if d.Severity == models.SeverityCritical {
		sla = "2 hours"
	}

	return maintenancePayload{
		Action:     "maintenance_ticket",
		Mode:       mode,
		DecisionID: d.ID,
		Station: maintenanceStation{
			ID:          st.ID,
			Name:        st.Name,
			Address:     st.Location,
			City:        st.City,
			Coordinates: st.Coordinates,
		},
		Issue: maintenanceIssue{
			Type:              d.Trigger,
			Severity:          d.Severity,
			CurrentUptime:     m.ChargerUptimePercent,
			ErrorCount:        m.ErrorFrequency,
			ErrorDetails:      errorDetails(st.RecentSignals),
			ProbableRootCause: d.Explanation.ProbableRootCause,
		},
		Impact: maintenanceImpact{
			AffectedChargers:       affected,
			ReducedCapacity:        fmt.Sprintf("%d%%", 100-m.ChargerUptimePercent),
			EstimatedQueueIncrease: affected * 2,
			CurrentQueue:           m.QueueLength,
		},
		SLA:            sla,
		Trigger:        d.Trigger,
		Reason:         d.Explanation.Why,
		ExpectedImpact: d.Explanation.ExpectedImpact,
		Confidence:     d.Explanation.Confidence,
		Timestamp:      e.now().UTC().Format(time.RFC3339),
	}
}

// downChargers 统计最新状态为 down 的充电桩数量
// 未携带 chargerId 的上报各自计一台
func downChargers(signals []*models.Signal) int {
	latest := make(map[string]string)
	anonymous := 0
	for _, sig := range signals {
		if sig.ChargerStatus == nil {
			continue
		}
		if sig.ChargerStatus.ChargerID == "" {
			if sig.ChargerStatus.Status == models.ChargerDown {
				anonymous++
			}
			continue
		}
		latest[sig.ChargerStatus.ChargerID] = sig.ChargerStatus.Status
	}

	count := anonymous
	for _, status := range latest {
		if status == models.ChargerDown {
			count++
		}
	}
	return count
}

// errorDetails 最近几条错误日志的摘要，新的在前
func errorDetails(signals []*models.Signal) []string {
	details := make([]string, 0, maxErrorDetails)
	for i := len(signals) - 1; i >= 0 && len(details) < maxErrorDetails; i-- {
		e := signals[i].ErrorLog
		if e == nil {
			continue
		}
		parts := make([]string, 0, 2)
		if key := e.GroupKey(); key != "" {
			parts = append(parts, key)
		}
		if e.Message != "" && e.Message != e.GroupKey() {
			parts = append(parts, e.Message)
		}
		details = append(details, strings.Join(parts, ": "))
	}
	return details
}

func syntheticDriverID() string {
	return "DR_" + strings.ToUpper(uuid.NewString()[:8])
}
