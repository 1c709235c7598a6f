package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/advisor"
	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/repository"
	"github.com/langchou/stationos/internal/state"
)

// Executor 下发可执行动作
type Executor interface {
	Execute(ctx context.Context, d *models.Decision, mode models.DeliveryMode) *models.ExecutionResult
}

// Outcome 一次决策的结果
type Outcome struct {
	Source    string
	Decisions []*models.Decision
}

// Engine 决策引擎：优先询问顾问，失败时回退到规则表
type Engine struct {
	advisor   advisor.Advisor
	executor  Executor
	log       repository.DecisionLog
	lifecycle *state.Lifecycle
	scores    ConfidenceScores
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine 创建决策引擎，adv 为 nil 时只使用规则表
func NewEngine(
	adv advisor.Advisor,
	executor Executor,
	log repository.DecisionLog,
	lifecycle *state.Lifecycle,
	scores ConfidenceScores,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		advisor:   adv,
		executor:  executor,
		log:       log,
		lifecycle: lifecycle,
		scores:    scores,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock 替换时钟
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Decide 为站点的每个触发器生成决策并写入日志
// aggressive 模式下可执行的动作会立即以模拟方式下发
func (e *Engine) Decide(ctx context.Context, st *models.Station, triggers []models.Trigger, mode models.Mode) *Outcome {
	out := &Outcome{Source: models.SourceRules}
	if len(triggers) == 0 {
		return out
	}

	recs := e.recommend(ctx, st, triggers, out)

	status := models.DecisionPendingApproval
	if mode == models.ModeAggressive {
		status = models.DecisionAutoExecuted
	}

	for _, rec := range recs {
		d := &models.Decision{
			ID:          uuid.NewString(),
			StationID:   st.ID,
			StationName: st.Name,
			Trigger:     rec.Trigger,
			Severity:    rec.Severity,
			Action:      rec.Action,
			Mode:        mode,
			Source:      out.Source,
			Explanation: rec.Explanation,
			Status:      status,
			CreatedAt:   e.now(),
		}
		if st.Metrics != nil {
			m := *st.Metrics
			d.Metrics = &m
		}
		e.log.Append(d)

		if mode == models.ModeAggressive && d.Action.Executable() {
			if executed, err := e.execute(ctx, d, models.DeliverySimulation); err != nil {
				e.logger.Error("Failed to record auto execution", zap.String("decision_id", d.ID), zap.Error(err))
			} else {
				d = executed
			}
		}
		out.Decisions = append(out.Decisions, d)
	}

	return out
}

func (e *Engine) recommend(ctx context.Context, st *models.Station, triggers []models.Trigger, out *Outcome) []advisor.Recommendation {
	if e.advisor != nil {
		req := advisor.Request{
			StationID:   st.ID,
			StationName: st.Name,
			City:        st.City,
			Triggers:    triggers,
		}
		if st.Metrics != nil {
			req.Metrics = *st.Metrics
		}

		recs, err := e.advisor.Advise(ctx, req)
		if err == nil {
			recs, err = advisor.Validate(recs, triggers)
		}
		if err == nil {
			out.Source = models.SourceAdvisor
			return recs
		}
		e.logger.Warn("Advisor unavailable, falling back to rules",
			zap.String("station_id", st.ID),
			zap.Error(err))
	}

	out.Source = models.SourceRules
	return ruleRecommendations(st, triggers)
}

// Approve 审批决策并下发，返回带执行结果的最新决策
func (e *Engine) Approve(ctx context.Context, id string, mode models.DeliveryMode) (*models.Decision, error) {
	approved, err := e.log.Update(id, func(d *models.Decision) error {
		if err := e.lifecycle.Fire(d, state.EventApprove); err != nil {
			return err
		}
		now := e.now()
		d.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approve decision: %w", err)
	}

	if !approved.Action.Executable() {
		return approved, nil
	}

	executed, err := e.execute(ctx, approved, mode)
	if err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}
	return executed, nil
}

// execute 调用执行器并把结果写回日志
func (e *Engine) execute(ctx context.Context, d *models.Decision, mode models.DeliveryMode) (*models.Decision, error) {
	result := e.executor.Execute(ctx, d, mode)

	return e.log.Update(d.ID, func(d *models.Decision) error {
		event := state.EventExecuteFailed
		if result.Success {
			event = state.EventExecuteSucceeded
		}
		if err := e.lifecycle.Fire(d, event); err != nil {
			return err
		}
		d.ExecutionResult = result
		if result.Success {
			now := e.now()
			d.ExecutedAt = &now
		}
		return nil
	})
}
