package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/langchou/stationos/internal/models"
)

// 事件常量
const (
	EventApprove          = "approve"
	EventExecuteSucceeded = "execute_succeeded"
	EventExecuteFailed    = "execute_failed"
)

// ErrInvalidTransition 当前状态不允许该事件，决策和工单共用
var ErrInvalidTransition = errors.New("invalid status transition")

var decisionEvents = fsm.Events{
	// 人工审批
	{Name: EventApprove, Src: []string{string(models.DecisionPendingApproval)}, Dst: string(models.DecisionApproved)},

	// 执行成功
	{Name: EventExecuteSucceeded, Src: []string{
		string(models.DecisionApproved),
		string(models.DecisionAutoExecuted),
	}, Dst: string(models.DecisionExecuted)},

	// 执行失败，按来源区分
	{Name: EventExecuteFailed, Src: []string{string(models.DecisionAutoExecuted)}, Dst: string(models.DecisionAutoExecuteFailed)},
	{Name: EventExecuteFailed, Src: []string{string(models.DecisionApproved)}, Dst: string(models.DecisionExecuteFailed)},
}

// Lifecycle 决策状态机
type Lifecycle struct {
	onChange func(decisionID string, from, to models.DecisionStatus)
}

// NewLifecycle 创建决策状态机，onChange 可以为空
func NewLifecycle(onChange func(decisionID string, from, to models.DecisionStatus)) *Lifecycle {
	return &Lifecycle{onChange: onChange}
}

func (l *Lifecycle) machine(d *models.Decision) *fsm.FSM {
	return fsm.NewFSM(
		string(d.Status),
		decisionEvents,
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if l.onChange != nil && e.Src != e.Dst {
					l.onChange(d.ID, models.DecisionStatus(e.Src), models.DecisionStatus(e.Dst))
				}
			},
		},
	)
}

// Fire 对决策触发事件并更新其状态
func (l *Lifecycle) Fire(d *models.Decision, event string) error {
	m := l.machine(d)
	if err := m.Event(context.Background(), event); err != nil {
		return fmt.Errorf("%w: %s from %s: %v", ErrInvalidTransition, event, d.Status, err)
	}
	d.Status = models.DecisionStatus(m.Current())
	return nil
}

// Can 检查当前状态是否允许该事件
func (l *Lifecycle) Can(d *models.Decision, event string) bool {
	return l.machine(d).Can(event)
}
