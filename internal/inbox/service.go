package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/repository"
	"github.com/langchou/stationos/internal/state"
	"github.com/langchou/stationos/internal/telemetry"
	"github.com/langchou/stationos/pkg/events"
)

// Service 接收端：维修工单和改道通知
// 执行器发出的通知可以直接指向这里，再由 Forwarder 交给下游工作流
type Service struct {
	logger         *zap.Logger
	tickets        repository.TicketStore
	history        repository.RerouteHistory
	lifecycle      *state.TicketLifecycle
	ticketForward  *Forwarder
	rerouteForward *Forwarder
	publisher      events.Publisher
	metrics        *telemetry.Metrics
	now            func() time.Time
}

// NewService 创建接收服务，forwarder 和 publisher 可以为 nil
func NewService(
	logger *zap.Logger,
	tickets repository.TicketStore,
	history repository.RerouteHistory,
	lifecycle *state.TicketLifecycle,
	ticketForward *Forwarder,
	rerouteForward *Forwarder,
	publisher events.Publisher,
	metrics *telemetry.Metrics,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if metrics == nil {
		metrics = telemetry.New(nil)
	}
	return &Service{
		logger:         logger,
		tickets:        tickets,
		history:        history,
		lifecycle:      lifecycle,
		ticketForward:  ticketForward,
		rerouteForward: rerouteForward,
		publisher:      publisher,
		metrics:        metrics,
		now:            time.Now,
	}
}

// SetClock 替换时钟
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ReceiveTicket 登记维修工单并转发，转发失败不影响登记
func (s *Service) ReceiveTicket(ctx context.Context, payload json.RawMessage) (*models.Ticket, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' || !json.Valid(payload) {
		return nil, fmt.Errorf("%w: ticket must be a JSON object", models.ErrInvalidPayload)
	}

	ticket := &models.Ticket{
		ID:        fmt.Sprintf("TICKET_%d_%s", s.now().UnixMilli(), strings.ToUpper(uuid.NewString()[:7])),
		Status:    models.TicketOpen,
		Payload:   payload,
		CreatedAt: s.now(),
	}

	// 请求方断开不应中止转发
	status, _, err := s.ticketForward.Forward(context.WithoutCancel(ctx), payload)
	ticket.ForwardStatus = status
	if err != nil {
		ticket.ForwardError = err.Error()
		s.logger.Warn("Failed to forward maintenance ticket", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.tickets.Add(ticket)
	s.metrics.InboxReceived("ticket", status)
	s.publisher.Publish(ctx, events.TopicTicketReceived, ticket)

	s.logger.Info("Maintenance ticket received",
		zap.String("ticket_id", ticket.ID),
		zap.String("forward_status", string(status)))
	return ticket, nil
}

// Tickets 最新在前
func (s *Service) Tickets() []*models.Ticket {
	return s.tickets.List()
}

// Ticket 获取工单
func (s *Service) Ticket(id string) (*models.Ticket, error) {
	return s.tickets.Get(id)
}

// TicketUpdate 工单更新，空字段不修改
type TicketUpdate struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution"`
	Technician string `json:"technician"`
}

// UpdateTicket 更新工单，状态变化经过状态机校验
func (s *Service) UpdateTicket(id string, upd TicketUpdate) (*models.Ticket, error) {
	var target models.TicketStatus
	if upd.Status != "" {
		st, err := models.ParseTicketStatus(upd.Status)
		if err != nil {
			return nil, err
		}
		target = st
	}

	ticket, err := s.tickets.Update(id, func(t *models.Ticket) error {
		if target != "" {
			if err := s.lifecycle.MoveTo(t, target); err != nil {
				return err
			}
		}
		if upd.Resolution != "" {
			t.Resolution = upd.Resolution
		}
		if upd.Technician != "" {
			t.AssignedTo = upd.Technician
		}
		now := s.now()
		t.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	s.logger.Info("Maintenance ticket updated",
		zap.String("ticket_id", ticket.ID),
		zap.String("status", string(ticket.Status)))
	return ticket, nil
}

// ClearTickets 清空工单
func (s *Service) ClearTickets() int {
	n := s.tickets.Clear()
	s.logger.Info("Maintenance tickets cleared", zap.Int("count", n))
	return n
}

// reroutePayloadHeader 改道通知必须具备的字段
type reroutePayloadHeader struct {
	Mode        string          `json:"mode"`
	StationFrom json.RawMessage `json:"station_from"`
	StationTo   json.RawMessage `json:"station_to"`
}

// ReceiveReroute 登记改道通知并转发
func (s *Service) ReceiveReroute(ctx context.Context, payload json.RawMessage) (*models.RerouteNotification, error) {
	var head reroutePayloadHeader
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidPayload, err)
	}
	if head.Mode == "" || isEmptyJSON(head.StationFrom) || isEmptyJSON(head.StationTo) {
		return nil, fmt.Errorf("%w: mode, station_from and station_to are required", models.ErrInvalidPayload)
	}

	n := &models.RerouteNotification{
		ID:        "notif_" + uuid.NewString(),
		Timestamp: s.now(),
		Mode:      head.Mode,
		Payload:   payload,
	}

	status, response, err := s.rerouteForward.Forward(context.WithoutCancel(ctx), payload)
	n.Status = status
	n.Response = response
	if err != nil {
		n.Error = err.Error()
		s.logger.Warn("Failed to forward reroute notification", zap.String("notification_id", n.ID), zap.Error(err))
	}

	s.history.Add(n)
	s.metrics.InboxReceived("reroute", status)
	s.publisher.Publish(ctx, events.TopicRerouteReceived, n)

	s.logger.Info("Reroute notification received",
		zap.String("notification_id", n.ID),
		zap.String("mode", n.Mode),
		zap.String("forward_status", string(status)))
	return n, nil
}

// RerouteHistory 最近的改道通知和总数
func (s *Service) RerouteHistory() ([]*models.RerouteNotification, int) {
	return s.history.List()
}

// ClearRerouteHistory 清空改道通知
func (s *Service) ClearRerouteHistory() int {
	return s.history.Clear()
}

func isEmptyJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
