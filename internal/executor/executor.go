package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/reroute"
	"github.com/langchou/stationos/internal/repository"
)

// ErrNoRerouteTarget 没有可用的改道目标
var ErrNoRerouteTarget = errors.New("no reroute target available")

// Endpoint 外部通知地址
type Endpoint struct {
	URL   string
	Token string
}

// Config 执行器配置
type Config struct {
	Reroute     Endpoint
	Maintenance Endpoint

	DemoDriverPhone string

	MaxAttempts    int
	InitialBackoff time.Duration
	Timeout        time.Duration

	RerouteConfidence        map[models.Confidence]float64
	DefaultRerouteConfidence float64
}

// DefaultConfig 默认配置：3 次尝试，退避从 1 秒开始翻倍
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		Timeout:        10 * time.Second,
		RerouteConfidence: map[models.Confidence]float64{
			models.ConfidenceHigh:   0.89,
			models.ConfidenceMedium: 0.72,
			models.ConfidenceLow:    0.75,
		},
		DefaultRerouteConfidence: 0.75,
	}
}

// FailureRecorder 记录下发失败
type FailureRecorder interface {
	RecordFailure(typ models.LogEntryType, f *models.Failure)
}

// Sleeper 可被 ctx 取消的等待
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Executor 把决策下发到外部通知端点
type Executor struct {
	cfg        Config
	httpClient *http.Client
	stations   repository.StationStore
	selector   *reroute.Selector
	failures   FailureRecorder
	logger     *zap.Logger
	sleep      Sleeper
	now        func() time.Time
}

// New 创建执行器
func New(cfg Config, stations repository.StationStore, selector *reroute.Selector, failures FailureRecorder, logger *zap.Logger) *Executor {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RerouteConfidence == nil {
		cfg.RerouteConfidence = defaults.RerouteConfidence
	}
	if cfg.DefaultRerouteConfidence == 0 {
		cfg.DefaultRerouteConfidence = defaults.DefaultRerouteConfidence
	}

	return &Executor{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		stations: stations,
		selector: selector,
		failures: failures,
		logger:   logger,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// SetSleeper 替换退避等待实现
func (e *Executor) SetSleeper(s Sleeper) {
	e.sleep = s
}

// SetClock 替换时钟
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// Execute 执行决策动作，失败以结构化结果返回
func (e *Executor) Execute(ctx context.Context, d *models.Decision, mode models.DeliveryMode) *models.ExecutionResult {
	switch d.Action {
	case models.ActionRerouteDrivers:
		return e.executeReroute(ctx, d, mode)
	case models.ActionMaintenanceTicket, models.ActionAlertMaintenance:
		return e.executeMaintenance(ctx, d, mode)
	}
	return &models.ExecutionResult{
		DeliveryMode: mode,
		Error:        fmt.Sprintf("action %q is not executable", d.Action),
	}
}

func (e *Executor) executeReroute(ctx context.Context, d *models.Decision, mode models.DeliveryMode) *models.ExecutionResult {
	source, err := e.stations.Get(d.StationID)
	if err != nil {
		return &models.ExecutionResult{DeliveryMode: mode, Error: err.Error()}
	}

	target, err := e.selector.Best(d.StationID)
	if err != nil {
		return &models.ExecutionResult{DeliveryMode: mode, Error: err.Error()}
	}
	if target == nil {
		e.logger.Warn("No reroute target available", zap.String("station_id", d.StationID), zap.String("decision_id", d.ID))
		return &models.ExecutionResult{DeliveryMode: mode, Error: ErrNoRerouteTarget.Error()}
	}

	payload, err := json.Marshal(e.buildReroutePayload(d, source, target, mode))
	if err != nil {
		return &models.ExecutionResult{DeliveryMode: mode, Error: fmt.Sprintf("marshal reroute payload: %v", err)}
	}

	result := e.deliver(ctx, e.cfg.Reroute, payload)
	result.DeliveryMode = mode
	if !result.Success {
		e.recordFailure(models.LogNotificationFailure, d, result)
	} else {
		e.logger.Info("Reroute notification sent",
			zap.String("decision_id", d.ID),
			zap.String("from", source.ID),
			zap.String("to", target.StationID),
			zap.Float64("distance_km", target.DistanceKm))
	}
	return result
}

func (e *Executor) executeMaintenance(ctx context.Context, d *models.Decision, mode models.DeliveryMode) *models.ExecutionResult {
	st, err := e.stations.Get(d.StationID)
	if err != nil {
		return &models.ExecutionResult{DeliveryMode: mode, Error: err.Error()}
	}

	payload, err := json.Marshal(e.buildMaintenancePayload(d, st, mode))
	if err != nil {
		return &models.ExecutionResult{DeliveryMode: mode, Error: fmt.Sprintf("marshal maintenance payload: %v", err)}
	}

	result := e.deliver(ctx, e.cfg.Maintenance, payload)
	result.DeliveryMode = mode
	if !result.Success {
		e.recordFailure(models.LogMaintenanceNotificationFailure, d, result)
	} else {
		e.logger.Info("Maintenance ticket sent", zap.String("decision_id", d.ID), zap.String("station_id", st.ID))
	}
	return result
}

// deliver 带重试的 POST，退避时间每次翻倍
func (e *Executor) deliver(ctx context.Context, ep Endpoint, payload []byte) *models.ExecutionResult {
	result := &models.ExecutionResult{Payload: payload}
	if ep.URL == "" {
		result.Error = "notification endpoint not configured"
		return result
	}

	backoff := e.cfg.InitialBackoff
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		status, body, err := e.post(ctx, ep, payload)
		result.StatusCode = status
		if err == nil {
			result.Success = true
			result.Error = ""
			if json.Valid(body) {
				result.Response = body
			} else {
				result.RawResponse = string(body)
			}
			return result
		}
		result.Error = err.Error()

		if attempt == e.cfg.MaxAttempts {
			break
		}
		e.logger.Warn("Notification delivery failed, retrying",
			zap.String("url", ep.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if err := e.sleep(ctx, backoff); err != nil {
			result.Error = fmt.Sprintf("%s; retry aborted: %v", result.Error, err)
			break
		}
		backoff *= 2
	}

	e.logger.Error("Notification delivery exhausted",
		zap.String("url", ep.URL),
		zap.Int("attempts", result.Attempts),
		zap.String("error", result.Error))
	return result
}

func (e *Executor) post(ctx context.Context, ep Endpoint, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", ep.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ep.Token)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("notification request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read notification response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, fmt.Errorf("notification failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return resp.StatusCode, body, nil
}

func (e *Executor) recordFailure(typ models.LogEntryType, d *models.Decision, result *models.ExecutionResult) {
	if e.failures == nil {
		return
	}
	e.failures.RecordFailure(typ, &models.Failure{
		ID:         uuid.NewString(),
		DecisionID: d.ID,
		StationID:  d.StationID,
		Payload:    result.Payload,
		Error:      result.Error,
		Attempts:   result.Attempts,
		Timestamp:  e.now(),
	})
}
