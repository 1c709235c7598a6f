package reroute

import (
	"fmt"
	"math"

	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/repository"
)

const earthRadiusKm = 6371.0

// 评分权重，分数越低越好
const (
	weightDistance = 0.8
	weightQueue    = 2.0
	weightBattery  = 0.7
	weightUptime   = 0.5
)

// Target 改道目标站点
type Target struct {
	StationID           string              `json:"stationId"`
	StationName         string              `json:"stationName"`
	City                string              `json:"city"`
	Coordinates         *models.Coordinates `json:"coordinates,omitempty"`
	DistanceKm          float64             `json:"distanceKm"`
	ExpectedWaitMinutes int                 `json:"expectedWaitMinutes"`
	QueueLength         int                 `json:"queueLength"`
	ChargedBatteries    int                 `json:"chargedBatteries"`
	Score               float64             `json:"score"`
}

// DistanceKm 计算两点的大圆距离，任一坐标缺失时返回 +Inf
func DistanceKm(a, b *models.Coordinates) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Score 候选站点评分：近、排队少、电池多、可靠
func Score(distanceKm float64, m models.Metrics) float64 {
	return weightDistance*distanceKm +
		weightQueue*float64(m.QueueLength) -
		weightBattery*float64(m.ChargedBatteries) +
		weightUptime*math.Max(0, float64(100-m.ChargerUptimePercent))
}

// ExpectedWait 目标站点的预计等待分钟数
func ExpectedWait(queueLength int) int {
	wait := queueLength / 2
	if wait < 1 {
		return 1
	}
	return wait
}

// SelectTarget 从候选中选出分数最低的站点，没有可用候选时返回 nil
// 分数相同时保留先出现的候选
func SelectTarget(source *models.Station, candidates []*models.Station) *Target {
	var best *Target
	for _, c := range candidates {
		if c.ID == source.ID || c.Metrics == nil {
			continue
		}
		dist := DistanceKm(source.Coordinates, c.Coordinates)
		if math.IsInf(dist, 1) {
			continue
		}

		score := Score(dist, *c.Metrics)
		if best != nil && score >= best.Score {
			continue
		}
		best = &Target{
			StationID:           c.ID,
			StationName:         c.Name,
			City:                c.City,
			Coordinates:         c.Coordinates,
			DistanceKm:          math.Round(dist*10) / 10,
			ExpectedWaitMinutes: ExpectedWait(c.Metrics.QueueLength),
			QueueLength:         c.Metrics.QueueLength,
			ChargedBatteries:    c.Metrics.ChargedBatteries,
			Score:               score,
		}
	}
	return best
}

// Selector 基于站点仓库的改道目标选择器
type Selector struct {
	stations repository.StationStore
}

// NewSelector 创建选择器
func NewSelector(stations repository.StationStore) *Selector {
	return &Selector{stations: stations}
}

// Best 为拥堵站点选择最佳改道目标，没有候选时返回 nil
func (s *Selector) Best(sourceID string) (*Target, error) {
	source, err := s.stations.Get(sourceID)
	if err != nil {
		return nil, fmt.Errorf("get source station: %w", err)
	}
	return SelectTarget(source, s.stations.List()), nil
}
