package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/decision"
	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/pkg/events"
)

// Evaluation 一次站点评估的结果
type Evaluation struct {
	StationID       string                    `json:"stationId"`
	StationName     string                    `json:"stationName"`
	Status          models.StationStatus      `json:"status"`
	Triggers        []models.Trigger          `json:"triggers"`
	TriggerCount    int                       `json:"triggerCount"`
	ActionCount     int                       `json:"actionCount"`
	Source          string                    `json:"source"`
	Recommendations []decision.Recommendation `json:"recommendations"`
}

// Evaluate 评估单个站点：重算指标和触发器，再生成决策
func (s *StationService) Evaluate(ctx context.Context, stationID string, mode models.Mode) (*Evaluation, error) {
	eval, err := s.evaluate(ctx, stationID, mode)
	if err != nil {
		return nil, err
	}
	s.publishStations(ctx)
	return eval, nil
}

// EvaluateAll 逐个评估所有站点
func (s *StationService) EvaluateAll(ctx context.Context, mode models.Mode) []*Evaluation {
	results := make([]*Evaluation, 0)
	for _, st := range s.stations.List() {
		eval, err := s.evaluate(ctx, st.ID, mode)
		if err != nil {
			s.logger.Warn("Failed to evaluate station", zap.String("station_id", st.ID), zap.Error(err))
			continue
		}
		results = append(results, eval)
	}
	s.publishStations(ctx)
	return results
}

func (s *StationService) evaluate(ctx context.Context, stationID string, mode models.Mode) (*Evaluation, error) {
	st, err := s.stations.Update(stationID, s.refresh)
	if err != nil {
		return nil, fmt.Errorf("evaluate station: %w", err)
	}

	// 顾问查询和通知下发都在锁外进行
	outcome := s.engine.Decide(ctx, st, st.Triggers, mode)

	for _, d := range outcome.Decisions {
		s.archive.SaveDecision(d)
		s.metrics.DecisionCreated(d)
		s.publisher.Publish(ctx, events.TopicDecisionCreated, d)
	}
	if len(st.Triggers) > 0 {
		s.publisher.Publish(ctx, events.TopicStationAlert, alertFor(st))
	}
	s.metrics.Evaluated(st.Status)

	s.logger.Info("Station evaluated",
		zap.String("station_id", st.ID),
		zap.String("status", string(st.Status)),
		zap.Int("triggers", len(st.Triggers)),
		zap.Int("decisions", len(outcome.Decisions)),
		zap.String("source", outcome.Source),
		zap.String("mode", string(mode)))

	return &Evaluation{
		StationID:       st.ID,
		StationName:     st.Name,
		Status:          st.Status,
		Triggers:        st.Triggers,
		TriggerCount:    len(st.Triggers),
		ActionCount:     len(outcome.Decisions),
		Source:          outcome.Source,
		Recommendations: s.engine.Recommendations(outcome.Decisions),
	}, nil
}

func (s *StationService) publishStations(ctx context.Context) {
	s.publisher.Publish(ctx, events.TopicStationsUpdate, s.stations.List())
}

// Explain 获取决策详情
func (s *StationService) Explain(decisionID string) (*models.Decision, error) {
	return s.log.Get(decisionID)
}

// Approve 审批并下发决策
func (s *StationService) Approve(ctx context.Context, decisionID string, mode models.DeliveryMode) (*models.Decision, error) {
	d, err := s.engine.Approve(ctx, decisionID, mode)
	if err != nil {
		return nil, err
	}

	s.archive.SaveDecision(d)
	s.metrics.Delivered(d)
	s.logger.Info("Decision approved",
		zap.String("decision_id", d.ID),
		zap.String("station_id", d.StationID),
		zap.String("status", string(d.Status)),
		zap.String("delivery_mode", string(mode)))
	return d, nil
}

// DecisionLog 最近的日志条目，n <= 0 时使用默认窗口
func (s *StationService) DecisionLog(n int) []models.LogEntry {
	if n <= 0 {
		n = s.logView
	}
	return s.log.Recent(n)
}

// Decisions 最近的决策
func (s *StationService) Decisions(n int) []*models.Decision {
	if n <= 0 {
		n = s.logView
	}
	return s.log.Decisions(n)
}

// Failures 最近的失败记录
func (s *StationService) Failures(n int) []models.LogEntry {
	if n <= 0 {
		n = s.logView
	}
	return s.log.Failures(n)
}
