package state

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/langchou/stationos/internal/models"
)

// 工单事件
const (
	EventStartWork = "start_work"
	EventResolve   = "resolve"
	EventClose     = "close"
	EventReopen    = "reopen"
)

var ticketEvents = fsm.Events{
	{Name: EventStartWork, Src: []string{string(models.TicketOpen)}, Dst: string(models.TicketInProgress)},
	{Name: EventResolve, Src: []string{
		string(models.TicketOpen),
		string(models.TicketInProgress),
	}, Dst: string(models.TicketResolved)},
	{Name: EventClose, Src: []string{string(models.TicketResolved)}, Dst: string(models.TicketClosed)},
	{Name: EventReopen, Src: []string{
		string(models.TicketResolved),
		string(models.TicketClosed),
	}, Dst: string(models.TicketOpen)},
}

// 目标状态对应的事件
var ticketEventFor = map[models.TicketStatus]string{
	models.TicketInProgress: EventStartWork,
	models.TicketResolved:   EventResolve,
	models.TicketClosed:     EventClose,
	models.TicketOpen:       EventReopen,
}

// TicketLifecycle 维修工单状态机
type TicketLifecycle struct{}

// NewTicketLifecycle 创建工单状态机
func NewTicketLifecycle() *TicketLifecycle {
	return &TicketLifecycle{}
}

// MoveTo 把工单推进到目标状态，目标与当前相同时不做任何事
func (l *TicketLifecycle) MoveTo(t *models.Ticket, to models.TicketStatus) error {
	if t.Status == to {
		return nil
	}
	event, ok := ticketEventFor[to]
	if !ok {
		return fmt.Errorf("%w: unknown ticket status %q", models.ErrInvalidPayload, to)
	}

	m := fsm.NewFSM(string(t.Status), ticketEvents, fsm.Callbacks{})
	if err := m.Event(context.Background(), event); err != nil {
		return fmt.Errorf("%w: ticket %s to %s: %v", ErrInvalidTransition, t.Status, to, err)
	}
	t.Status = models.TicketStatus(m.Current())
	return nil
}
