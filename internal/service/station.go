package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/decision"
	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/monitoring"
	"github.com/langchou/stationos/internal/repository"
	"github.com/langchou/stationos/internal/telemetry"
	"github.com/langchou/stationos/pkg/events"
)

// Archiver 持久化归档，未配置数据库时为空实现
type Archiver interface {
	SaveSignal(stationID string, sig *models.Signal)
	SaveDecision(d *models.Decision)
	SaveFailure(typ models.LogEntryType, f *models.Failure)
}

type nopArchiver struct{}

func (nopArchiver) SaveSignal(string, *models.Signal) {}
func (nopArchiver) SaveDecision(*models.Decision) {}
func (nopArchiver) SaveFailure(models.LogEntryType, *models.Failure) {}

// StationService 站点服务：信号接入、指标、评估和审批
type StationService struct {
	logger    *zap.Logger
	stations  repository.StationStore
	log       repository.DecisionLog
	deriver   *monitoring.Deriver
	engine    *decision.Engine
	publisher events.Publisher
	archive   Archiver
	metrics   *telemetry.Metrics
	logView   int
	now       func() time.Time
}

// NewStationService 创建站点服务，archive 可以为 nil
func NewStationService(
	logger *zap.Logger,
	stations repository.StationStore,
	log repository.DecisionLog,
	deriver *monitoring.Deriver,
	engine *decision.Engine,
	publisher events.Publisher,
	archive Archiver,
	metrics *telemetry.Metrics,
	logView int,
) *StationService {
	if archive == nil {
		archive = nopArchiver{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if metrics == nil {
		metrics = telemetry.New(nil)
	}
	if logView <= 0 {
		logView = 50
	}
	return &StationService{
		logger:    logger,
		stations:  stations,
		log:       log,
		deriver:   deriver,
		engine:    engine,
		publisher: publisher,
		archive:   archive,
		metrics:   metrics,
		logView:   logView,
		now:       time.Now,
	}
}

// SetClock 替换时钟
func (s *StationService) SetClock(now func() time.Time) {
	s.now = now
}

// SignalInput 一条待接入的信号
// 单条接口使用 signalType，批量接口使用 type，两者都接受
type SignalInput struct {
	StationID  string            `json:"stationId"`
	Type       models.SignalType `json:"type"`
	SignalType models.SignalType `json:"signalType"`
	Data       json.RawMessage   `json:"data"`
}

func (in SignalInput) signalType() models.SignalType {
	if in.Type != "" {
		return in.Type
	}
	return in.SignalType
}

// IngestResult 批量接入中单条的结果
type IngestResult struct {
	StationID string `json:"stationId"`
	Success   bool   `json:"success"`
	SignalID  string `json:"signalId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SignalEvent 推送给前端的新信号事件
type SignalEvent struct {
	StationID string         `json:"stationId"`
	Signal    *models.Signal `json:"signal"`
	Timestamp time.Time      `json:"timestamp"`
}

// Ingest 接入单条信号
func (s *StationService) Ingest(ctx context.Context, in SignalInput) (*models.Signal, error) {
	now := s.now()
	sig, err := models.NewSignal(uuid.NewString(), in.signalType(), in.Data, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.stations.Update(in.StationID, func(st *models.Station) error {
		st.AppendSignal(sig)
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Debug("Signal received",
		zap.String("station_id", in.StationID),
		zap.String("type", string(sig.Type)),
		zap.String("signal_id", sig.ID))

	s.archive.SaveSignal(in.StationID, sig)
	s.metrics.SignalIngested(sig.Type)
	s.publisher.Publish(ctx, events.TopicSignalReceived, SignalEvent{
		StationID: in.StationID,
		Signal:    sig,
		Timestamp: now,
	})
	return sig, nil
}

// IngestBatch 批量接入，单条失败不影响其它信号
func (s *StationService) IngestBatch(ctx context.Context, inputs []SignalInput) []IngestResult {
	results := make([]IngestResult, 0, len(inputs))
	for _, in := range inputs {
		sig, err := s.Ingest(ctx, in)
		if err != nil {
			results = append(results, IngestResult{StationID: in.StationID, Error: ingestError(err)})
			continue
		}
		results = append(results, IngestResult{StationID: in.StationID, Success: true, SignalID: sig.ID})
	}
	return results
}

func ingestError(err error) string {
	if errors.Is(err, repository.ErrStationNotFound) {
		return "Station not found"
	}
	return err.Error()
}

// RecentSignals 站点最近的信号，旧的在前
func (s *StationService) RecentSignals(stationID string) ([]*models.Signal, error) {
	st, err := s.stations.Get(stationID)
	if err != nil {
		return nil, err
	}
	return st.RecentSignals, nil
}

// Stations 全部站点
func (s *StationService) Stations() []*models.Station {
	return s.stations.List()
}

// Station 单个站点
func (s *StationService) Station(id string) (*models.Station, error) {
	return s.stations.Get(id)
}

// refresh 重新计算指标、触发器和状态
func (s *StationService) refresh(st *models.Station) error {
	metrics := s.deriver.Derive(st)
	st.Metrics = &metrics
	st.Triggers = monitoring.EvaluateTriggers(st)
	st.Status = monitoring.StatusFromTriggers(st.Triggers)
	st.LastUpdate = s.now()
	return nil
}

// RefreshMetrics 重新计算单个站点的指标
func (s *StationService) RefreshMetrics(stationID string) (*models.Station, error) {
	st, err := s.stations.Update(stationID, s.refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh metrics: %w", err)
	}
	return st, nil
}

// RefreshAll 重新计算所有站点的指标
func (s *StationService) RefreshAll() []*models.Station {
	out := make([]*models.Station, 0)
	for _, st := range s.stations.List() {
		updated, err := s.stations.Update(st.ID, s.refresh)
		if err != nil {
			s.logger.Warn("Failed to refresh station", zap.String("station_id", st.ID), zap.Error(err))
			continue
		}
		out = append(out, updated)
	}
	return out
}

// Alert 站点告警
type Alert struct {
	StationID   string           `json:"stationId"`
	StationName string           `json:"stationName"`
	Status      string           `json:"status"`
	Triggers    []models.Trigger `json:"triggers"`
}

// DedupKey 同一站点同一组触发器只推送一次
func (a Alert) DedupKey() string {
	names := make([]string, 0, len(a.Triggers))
	for _, t := range a.Triggers {
		names = append(names, string(t.Name))
	}
	return a.StationID + ":" + strings.Join(names, ",")
}

func alertFor(st *models.Station) Alert {
	return Alert{
		StationID:   st.ID,
		StationName: st.Name,
		Status:      strings.ToLower(string(st.Status)),
		Triggers:    st.Triggers,
	}
}

// Alerts 有触发器的站点，Critical 在前
func (s *StationService) Alerts() []Alert {
	stations := s.stations.List()
	sort.SliceStable(stations, func(i, j int) bool {
		return stations[i].Status.Rank() < stations[j].Status.Rank()
	})

	alerts := make([]Alert, 0)
	for _, st := range stations {
		if len(st.Triggers) == 0 {
			continue
		}
		alerts = append(alerts, alertFor(st))
	}
	return alerts
}
